package task

import (
	"fmt"
	"log/slog"
	"reflect"
	"regexp"
	"runtime"
	"slices"
	"strings"
	"sync"
)

// anonymousFunc matches runtime names of closures ("pkg.Outer.func1",
// "pkg.init.func2.1") and method values ("pkg.(*T).M-fm"), whose names are
// not stable identities.
var anonymousFunc = regexp.MustCompile(`(\.func\d+(\.\d+)*|-fm)$`)

// RegisterOption customizes a registration.
type RegisterOption func(*Descriptor)

// WithPath sets an explicit identity path instead of deriving it from the
// function's package and name.
func WithPath(path string) RegisterOption {
	return func(d *Descriptor) {
		d.path = path
	}
}

// WithName sets the human-readable name used for automatic task naming.
func WithName(name string) RegisterOption {
	return func(d *Descriptor) {
		d.name = name
	}
}

// WithDefaults sets options applied to every Task built from the descriptor,
// before per-call options.
func WithDefaults(opts ...Option) RegisterOption {
	return func(d *Descriptor) {
		d.defaults = append(d.defaults, opts...)
	}
}

// Registry maps identity paths to task descriptors. Registration happens at
// startup; lookups are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	tasks  map[string]*Descriptor
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tasks:  make(map[string]*Descriptor),
		logger: logger.With("component", "task_registry"),
	}
}

// Register binds fn to a stable identity and returns its descriptor.
// Registering a path twice fails with ErrDuplicateTask.
func (r *Registry) Register(fn Func, opts ...RegisterOption) (*Descriptor, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: nil function", ErrAnonymousTask)
	}

	d := &Descriptor{fn: fn}
	for _, opt := range opts {
		opt(d)
	}

	if d.path == "" {
		path, err := funcPath(fn)
		if err != nil {
			return nil, err
		}
		d.path = path
	}
	if d.name == "" {
		d.name = shortName(d.path)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[d.path]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateTask, d.path)
	}
	r.tasks[d.path] = d

	r.logger.Debug("task registered", "task_path", d.path, "task_name", d.name)
	return d, nil
}

// MustRegister is like Register but panics on error. It is intended for
// package-level task declarations.
func (r *Registry) MustRegister(fn Func, opts ...RegisterOption) *Descriptor {
	d, err := r.Register(fn, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

// Resolve returns the descriptor registered under path.
func (r *Registry) Resolve(path string) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.tasks[path]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTaskNotFound, path)
	}
	return d, nil
}

// Paths returns all registered paths in sorted order.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	paths := make([]string, 0, len(r.tasks))
	for path := range r.tasks {
		paths = append(paths, path)
	}
	slices.Sort(paths)
	return paths
}

// funcPath derives "<import path>.<function name>" from the runtime symbol.
func funcPath(fn Func) (string, error) {
	rf := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if rf == nil {
		return "", ErrAnonymousTask
	}
	name := rf.Name()
	if anonymousFunc.MatchString(name) {
		return "", fmt.Errorf("%w: %s; use WithPath", ErrAnonymousTask, name)
	}
	return name, nil
}

// shortName returns the part of a path after its last dot.
func shortName(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[i+1:]
	}
	return path
}
