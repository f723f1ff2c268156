package task

import "errors"

// Registration errors.
var (
	// ErrDuplicateTask is returned when a path is registered twice.
	ErrDuplicateTask = errors.New("task already registered")

	// ErrAnonymousTask is returned when no stable path can be derived from a
	// function (closures and method values) and none was supplied.
	ErrAnonymousTask = errors.New("cannot derive a stable path for task function")

	// ErrTaskNotFound is returned when a path does not resolve to a registered
	// task. On the callback side it signals deployment skew between the
	// producer and the consumer.
	ErrTaskNotFound = errors.New("task not found")
)

// Construction errors.
var (
	// ErrReservedArgument is returned when an argument key collides with a
	// payload envelope key.
	ErrReservedArgument = errors.New("reserved argument name")

	// ErrInvalidTaskName is returned when an explicit task name does not match
	// the push-queue naming rules.
	ErrInvalidTaskName = errors.New("invalid task name")
)

// Dispatch and execution errors.
var (
	// ErrDispatch is returned when the outbound call to the push-queue or the
	// broker fails. It is never retried internally.
	ErrDispatch = errors.New("task dispatch failed")

	// ErrDuplicateDispatch is returned, wrapped with ErrDispatch, when a named
	// task was already enqueued under the same name.
	ErrDuplicateDispatch = errors.New("task with this name already exists")

	// ErrUnsupportedOperation is returned when the active backend cannot
	// perform the requested operation, such as scheduling.
	ErrUnsupportedOperation = errors.New("operation not supported by backend")

	// ErrAlreadyDispatched is returned when a Task is dispatched a second time.
	ErrAlreadyDispatched = errors.New("task already dispatched")

	// ErrExecution wraps any failure raised by a task function, including panics.
	ErrExecution = errors.New("task execution failed")
)
