package security

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/noah-isme/paystack-provider/internal/common"
)

// StaticBearer guards routes with a single shared token. An empty Token
// disables the check.
type StaticBearer struct {
	Token string
}

// Middleware rejects requests whose Authorization header does not carry the token.
func (s StaticBearer) Middleware(next http.Handler) http.Handler {
	token := strings.TrimSpace(s.Token)
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := strings.TrimSpace(r.Header.Get("Authorization"))
		scheme, provided, ok := strings.Cut(auth, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") ||
			subtle.ConstantTimeCompare([]byte(strings.TrimSpace(provided)), []byte(token)) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid admin token", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
