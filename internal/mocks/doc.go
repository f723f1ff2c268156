// Package mocks provides centralized mock implementations for testing.
//
// Mocks use function fields so a test overrides only the behavior it needs:
//
//	backend := &mocks.MockBackend{
//	    EnqueueFn: func(ctx context.Context, t *task.Task) error {
//	        return errors.New("queue unavailable")
//	    },
//	}
//
// Unset function fields fall back to DefaultError (nil by default), and every
// call is recorded so tests can inspect what was dispatched.
package mocks
