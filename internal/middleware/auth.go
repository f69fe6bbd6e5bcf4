package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/abhi-yo/quilly-sub000/internal/auth"
	"github.com/abhi-yo/quilly-sub000/internal/model"
	"github.com/abhi-yo/quilly-sub000/internal/repo"
)

type contextKey string

const (
	userKey   contextKey = "user"
	claimsKey contextKey = "claims"
)

// ProfileCompletionPath is where sessions with an unselected role are sent.
const ProfileCompletionPath = "/complete-profile"

// publicPaths may be reached without a session. Everything else is
// default-deny: a new route is protected unless listed here.
var publicPaths = map[string]struct{}{
	"/health":     {},
	"/signup":     {},
	"/signin":     {},
	"/verify":     {},
	"/resend-otp": {},
}

// Gate authenticates every non-public request. The token is treated as an
// identity cache only: role, name, and flags are re-read from the store and
// overwrite the token's claims before any authorization decision, so a stale
// token never grants access the store no longer reflects. Sessions that still
// need role selection are redirected to the profile-completion path.
func Gate(tokens *auth.TokenService, users repo.UserRepo) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := publicPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verifyBearer(tokens, r)
			if err != nil {
				respondWithError(w, http.StatusUnauthorized, err.Error())
				return
			}

			user, err := users.GetByID(r.Context(), claims.UserID)
			if err != nil {
				respondWithError(w, http.StatusUnauthorized, "user not found")
				return
			}

			// Overwrite authorization-relevant claims from the store.
			claims.Role = user.Role
			claims.Name = user.Name
			claims.NeedsRoleSelection = user.NeedsRoleSelection
			claims.WalletAddress = ""
			if user.WalletAddress != nil {
				claims.WalletAddress = *user.WalletAddress
			}

			if user.NeedsRoleSelection && r.URL.Path != ProfileCompletionPath {
				http.Redirect(w, r, ProfileCompletionPath, http.StatusTemporaryRedirect)
				return
			}

			ctx := context.WithValue(r.Context(), userKey, &user)
			ctx = context.WithValue(ctx, claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func verifyBearer(tokens *auth.TokenService, r *http.Request) (*auth.SessionClaims, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, errMissingAuth
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, errBadAuthFormat
	}
	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		return nil, errMissingAuth
	}
	claims, err := tokens.Verify(tokenString)
	if err != nil {
		return nil, errInvalidToken
	}
	return claims, nil
}

type authError string

func (e authError) Error() string { return string(e) }

const (
	errMissingAuth   = authError("missing authorization header")
	errBadAuthFormat = authError("invalid authorization header format")
	errInvalidToken  = authError("invalid or expired token")
)

// GetUser returns the user attached to the request context (set by Gate)
func GetUser(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok
}

// GetClaims returns the refreshed session claims for the request.
func GetClaims(ctx context.Context) (*auth.SessionClaims, bool) {
	c, ok := ctx.Value(claimsKey).(*auth.SessionClaims)
	return c, ok
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := map[string]string{"error": message}
	_ = json.NewEncoder(w).Encode(response)
}
