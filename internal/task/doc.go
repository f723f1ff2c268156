// Package task turns plain Go functions into deferred, re-invokable units of
// work. Functions are registered once at startup and receive a stable string
// identity (their Descriptor path); each invocation builds a Task carrying
// keyword arguments, destination and naming settings, which a Backend then
// enqueues on the push-queue service or on the local broker. When the
// callback arrives, the Registry resolves the path back to the function and
// the arguments are replayed.
package task
