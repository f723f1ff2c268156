package task

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// Func is the signature of a task function. req describes the delivery that
// triggered the execution and args holds the keyword arguments the task was
// created with, as plain JSON values.
type Func func(ctx context.Context, req *Request, args Args) (any, error)

// Args holds task keyword arguments.
type Args map[string]any

// Bind decodes the arguments into the struct pointed to by v, matching keys
// against json tags. Strings are converted into types that implement
// encoding.TextUnmarshaler (time.Time, uuid.UUID, decimal.Decimal) and into
// time.Duration.
func (a Args) Bind(v any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           v,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.TextUnmarshallerHookFunc(),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create argument decoder: %w", err)
	}
	if err := dec.Decode(map[string]any(a)); err != nil {
		return fmt.Errorf("failed to bind task arguments: %w", err)
	}
	return nil
}

// String returns the string argument stored under key, or "" when missing or
// of another type.
func (a Args) String(key string) string {
	s, _ := a[key].(string)
	return s
}

// Descriptor is the immutable identity of a registered task function.
type Descriptor struct {
	path     string
	name     string
	fn       Func
	defaults []Option
}

// Path returns the globally unique identity used on the wire.
func (d *Descriptor) Path() string { return d.path }

// Name returns the human-readable name, also used for automatic task naming.
func (d *Descriptor) Name() string { return d.name }

// Invoke runs the task function. A panic is recovered and reported, like a
// returned error, wrapped with ErrExecution.
func (d *Descriptor) Invoke(ctx context.Context, req *Request, args Args) (result any, err error) {
	if args == nil {
		args = Args{}
	}

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %s: panicked: %v\n%s", ErrExecution, d.path, rec, debug.Stack())
			result = nil
		}
		observeExecution(d.path, start, err)
	}()

	result, err = d.fn(ctx, req, args)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrExecution, d.path, err)
	}
	return result, nil
}
