package identity

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jenymoen/Pimify-Firebase-sub007/internal/permissions"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/handlers"
)

// Middleware resolves the bearer token on every request and stores the identity
// on the request context. Requests without a valid token receive 401.
func Middleware(v Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With("middleware", "identity")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w, logger, ErrMissing)
				return
			}

			id, err := v.Verify(r.Context(), token)
			if err != nil {
				logger.Debug("token rejected", "error", err)
				unauthorized(w, logger, ErrInvalidToken)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// Require rejects requests whose identity may not perform action. Self-service
// checks use the {id} path value as the target.
func Require(gate *permissions.Gate, action permissions.Action, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := FromContext(r.Context())
			if !ok {
				unauthorized(w, logger, ErrMissing)
				return
			}

			d := gate.Check(id.Role(), action, permissions.Context{
				ActorID:  id.ActorID,
				TargetID: r.PathValue("id"),
			})
			if !d.Allowed {
				handlers.RespondError(w, logger, http.StatusForbidden, errors.New(d.Reason))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, logger *slog.Logger, err error) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="pimify"`)
	handlers.RespondError(w, logger, http.StatusUnauthorized, err)
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
