// Package cloudtasks implements the remote dispatch backend on Google Cloud
// Tasks. Each Task becomes an HTTP-target task on the configured queue; the
// push-queue service then delivers it to the callback handler, signed with
// an OIDC token when a principal is set.
//
// The backend never retries a failed CreateTask call. Named tasks are
// deduplicated by the service, and a rejected duplicate surfaces as
// task.ErrDuplicateDispatch.
package cloudtasks
