package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/phrazzld/cloudtask/internal/api/shared"
	"google.golang.org/api/idtoken"
)

// ErrIdentityToken is logged when a callback's identity token is missing,
// invalid or issued to an unexpected principal.
var ErrIdentityToken = errors.New("identity token rejected")

// TokenValidator validates Google-signed ID tokens. *idtoken.Validator
// satisfies it.
type TokenValidator interface {
	Validate(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error)
}

// OIDCMiddleware verifies the OIDC token the push-queue attaches to
// callbacks when a principal is configured on the task.
type OIDCMiddleware struct {
	validator TokenValidator
	audience  string
	principal string
}

// NewOIDCMiddleware creates an OIDCMiddleware. When principal is non-empty
// the token's email claim must match it.
func NewOIDCMiddleware(validator TokenValidator, audience, principal string) *OIDCMiddleware {
	return &OIDCMiddleware{
		validator: validator,
		audience:  audience,
		principal: principal,
	}
}

// Authenticate rejects POST requests without a valid identity token with
// 403 and records the verified email in the request context. Other methods
// pass through untouched so the handler can answer 405.
func (m *OIDCMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			m.reject(w, r, fmt.Errorf("%w: missing bearer token", ErrIdentityToken))
			return
		}

		payload, err := m.validator.Validate(r.Context(), token, m.audience)
		if err != nil {
			m.reject(w, r, fmt.Errorf("%w: %w", ErrIdentityToken, err))
			return
		}

		email, _ := payload.Claims["email"].(string)
		if m.principal != "" && !strings.EqualFold(email, m.principal) {
			m.reject(w, r, fmt.Errorf("%w: unexpected principal %q", ErrIdentityToken, email))
			return
		}

		ctx := shared.WithIdentityEmail(r.Context(), email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *OIDCMiddleware) reject(w http.ResponseWriter, r *http.Request, err error) {
	shared.RespondWithErrorAndLog(w, r, http.StatusForbidden, "Forbidden", err)
}
