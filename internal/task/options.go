package task

import "maps"

// Option customizes a Task at construction.
type Option func(*Task)

// WithQueue overrides the configured default queue.
func WithQueue(queue string) Option {
	return func(t *Task) {
		t.queue = queue
	}
}

// WithURL overrides the configured default callback URL.
func WithURL(url string) Option {
	return func(t *Task) {
		t.url = url
	}
}

// WithHeaders adds extra headers sent on the callback.
func WithHeaders(headers map[string]string) Option {
	return func(t *Task) {
		maps.Copy(t.extraHeaders, headers)
	}
}

// WithHeader adds a single extra header sent on the callback.
func WithHeader(key, value string) Option {
	return func(t *Task) {
		t.extraHeaders[key] = value
	}
}

// WithNaming sets the naming mode.
func WithNaming(n Naming) Option {
	return func(t *Task) {
		t.naming = n
	}
}

// WithPrincipal overrides the service account that signs the callback's
// identity token.
func WithPrincipal(email string) Option {
	return func(t *Task) {
		t.principal = email
	}
}
