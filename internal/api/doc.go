// Package api serves the HTTP callback that push queues deliver tasks to.
// It authenticates each delivery, decodes the payload, resolves the task
// path through the registry and runs the function, translating failures
// into status codes that tell the queue whether to retry.
package api
