// Package localbroker is the development stand-in for the push-queue
// service. The Backend enqueues a callback job on a Redis-backed asynq
// queue; the Worker consumes it and the CallbackSimulator POSTs the task
// payload to its URL, so local runs exercise the same callback handler as
// production.
//
// Jobs are not retried: a failed callback is logged and dropped, matching
// the at-most-once behavior callers see from a single push-queue attempt.
package localbroker
