package task

import (
	"net/http"
	"time"
)

// RequestBody is the push-queue task resource for an HTTP target. Field
// names follow the provider's task-creation contract.
type RequestBody struct {
	Name         string      `json:"name,omitempty"`
	ScheduleTime *time.Time  `json:"schedule_time,omitempty"`
	HTTPRequest  HTTPRequest `json:"http_request"`
}

// HTTPRequest describes the callback the push-queue performs.
type HTTPRequest struct {
	HTTPMethod string            `json:"http_method"`
	URL        string            `json:"url"`
	Headers    map[string]string `json:"headers"`
	// Body is the base64 task payload.
	Body      string     `json:"body"`
	OIDCToken *OIDCToken `json:"oidc_token,omitempty"`
}

// OIDCToken asks the push-queue to sign the callback with an identity token
// for the service account.
type OIDCToken struct {
	ServiceAccountEmail string `json:"service_account_email"`
}

// RequestBody builds the remote task resource. scheduleAt is set only for
// scheduled dispatch.
func (t *Task) RequestBody(scheduleAt *time.Time) (*RequestBody, error) {
	payload, err := t.Payload()
	if err != nil {
		return nil, err
	}

	body := &RequestBody{
		Name: t.TaskPath(),
		HTTPRequest: HTTPRequest{
			HTTPMethod: http.MethodPost,
			URL:        t.url,
			Headers:    t.Headers(),
			Body:       string(payload),
		},
	}
	if scheduleAt != nil {
		at := scheduleAt.UTC()
		body.ScheduleTime = &at
	}
	if t.principal != "" {
		body.HTTPRequest.OIDCToken = &OIDCToken{ServiceAccountEmail: t.principal}
	}
	return body, nil
}
