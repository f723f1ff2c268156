package task

import (
	"context"
	"net/http"
	"strconv"
)

// SecretHeader carries the shared secret on task callbacks.
const SecretHeader = "X-Dct-Secret"

// Headers set by the push-queue service on every delivery.
const (
	HeaderQueueName      = "X-CloudTasks-QueueName"
	HeaderTaskName       = "X-CloudTasks-TaskName"
	HeaderRetryCount     = "X-CloudTasks-TaskRetryCount"
	HeaderExecutionCount = "X-CloudTasks-TaskExecutionCount"
	HeaderETA            = "X-CloudTasks-TaskETA"
)

// Request describes the delivery that triggered a task execution.
type Request struct {
	// Headers are the raw inbound headers, without the secret header.
	Headers http.Header

	QueueName  string
	TaskName   string
	RetryCount int

	// Local is true when the task runs in-process through ExecuteLocally or
	// the testing backend rather than from a callback.
	Local bool
}

// NewRequest builds a Request from inbound callback headers.
func NewRequest(h http.Header) *Request {
	retries, _ := strconv.Atoi(h.Get(HeaderRetryCount))
	return &Request{
		Headers:    h,
		QueueName:  h.Get(HeaderQueueName),
		TaskName:   h.Get(HeaderTaskName),
		RetryCount: retries,
	}
}

type requestKey struct{}

// WithRequest returns a copy of ctx carrying req.
func WithRequest(ctx context.Context, req *Request) context.Context {
	return context.WithValue(ctx, requestKey{}, req)
}

// RequestFromContext returns the Request stored by WithRequest, if any.
func RequestFromContext(ctx context.Context) (*Request, bool) {
	req, ok := ctx.Value(requestKey{}).(*Request)
	return req, ok
}
