package task

import (
	"fmt"
	"regexp"
)

// validTaskName matches the character set and length the push-queue accepts
// for task IDs.
var validTaskName = regexp.MustCompile(`^[A-Za-z0-9_-]{1,500}$`)

type namingMode int

const (
	namingNone namingMode = iota
	namingAuto
	namingExplicit
)

// Naming controls whether a dispatched task carries a resource name. Named
// tasks are deduplicated by the backend: a second enqueue with the same name
// fails with ErrDuplicateDispatch.
type Naming struct {
	mode namingMode
	name string
}

// NoName leaves the task unnamed so the backend assigns an ID. This is the
// default.
func NoName() Naming { return Naming{mode: namingNone} }

// AutoName names the task after its descriptor's Name.
func AutoName() Naming { return Naming{mode: namingAuto} }

// Named gives the task an explicit name.
func Named(name string) Naming { return Naming{mode: namingExplicit, name: name} }

// resolve returns the task name for descriptor d, or "" when unnamed.
func (n Naming) resolve(d *Descriptor) (string, error) {
	var name string
	switch n.mode {
	case namingNone:
		return "", nil
	case namingAuto:
		name = d.Name()
	case namingExplicit:
		name = n.name
	}

	if !validTaskName.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTaskName, name)
	}
	return name, nil
}

// String renders the naming mode for logs.
func (n Naming) String() string {
	switch n.mode {
	case namingAuto:
		return "auto"
	case namingExplicit:
		return "named:" + n.name
	default:
		return "none"
	}
}
