package httpadapter

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

type identityHandler func(http.ResponseWriter, *http.Request, domain.Identity)

func (rt *Router) authenticated(next identityHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok || rt.svc.Auth == nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, err := rt.svc.Auth.Authenticate(r.Context(), token)
		if err != nil {
			writeError(w, mapErrorToHTTPStatus(err), "unauthorized")
			return
		}
		next(w, r, user)
	}
}

func (rt *Router) admin(next identityHandler) http.HandlerFunc {
	return rt.authenticated(func(w http.ResponseWriter, r *http.Request, user domain.Identity) {
		if !user.IsAdmin() {
			writeDomainError(w, r, fmt.Errorf("%w: admin role required", domain.ErrForbidden))
			return
		}
		next(w, r, user)
	})
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
