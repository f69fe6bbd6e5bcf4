package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/abhi-yo/quilly-sub000/internal/auth"
	"github.com/abhi-yo/quilly-sub000/internal/middleware"
	"github.com/abhi-yo/quilly-sub000/internal/model"
	"github.com/abhi-yo/quilly-sub000/internal/ratelimit"
)

// AuthHandler handles account lifecycle endpoints
type AuthHandler struct {
	service *auth.Service
	tokens  *auth.TokenService
	limiter *ratelimit.Limiter
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(service *auth.Service, tokens *auth.TokenService, limiter *ratelimit.Limiter) *AuthHandler {
	return &AuthHandler{
		service: service,
		tokens:  tokens,
		limiter: limiter,
	}
}

// userResponse is the user object in API responses
type userResponse struct {
	ID                 string  `json:"id"`
	Email              string  `json:"email"`
	Name               string  `json:"name"`
	Role               string  `json:"role"`
	Verified           bool    `json:"verified"`
	NeedsRoleSelection bool    `json:"needsRoleSelection"`
	WalletAddress      *string `json:"walletAddress,omitempty"`
}

func toUserResponse(u model.User) userResponse {
	return userResponse{
		ID:                 u.ID.String(),
		Email:              u.Email,
		Name:               u.Name,
		Role:               string(u.Role),
		Verified:           u.Verified,
		NeedsRoleSelection: u.NeedsRoleSelection,
		WalletAddress:      u.WalletAddress,
	}
}

// signupRequest is the request body for POST /signup
type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

// HandleSignup handles POST /signup
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r, "signup", ratelimit.SignupLimit) {
		return
	}

	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := h.service.Signup(r.Context(), auth.SignupInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     model.Role(req.Role),
	}, middleware.ClientIP(r))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"userId":  u.ID.String(),
		"message": "verification code sent",
	})
}

// signinRequest is the request body for POST /signin
type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// signinResponse is the JSON response for signin
type signinResponse struct {
	Token                string        `json:"token,omitempty"`
	RequiresVerification bool          `json:"requiresVerification,omitempty"`
	User                 *userResponse `json:"user,omitempty"`
}

// HandleSignin handles POST /signin
func (h *AuthHandler) HandleSignin(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r, "signin", ratelimit.SigninLimit) {
		return
	}

	var req signinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		respondWithError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	result, err := h.service.SignIn(r.Context(), req.Email, req.Password, middleware.ClientIP(r))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	if result.RequiresVerification {
		respondWithJSON(w, http.StatusOK, signinResponse{RequiresVerification: true})
		return
	}

	user := toUserResponse(result.User)
	respondWithJSON(w, http.StatusOK, signinResponse{Token: result.Token, User: &user})
}

// verifyRequest is the request body for POST /verify
type verifyRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// HandleVerify handles POST /verify
func (h *AuthHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r, "verify", ratelimit.VerifyLimit) {
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.OTP = strings.TrimSpace(req.OTP)
	if strings.TrimSpace(req.Email) == "" || req.OTP == "" {
		respondWithError(w, http.StatusBadRequest, "email and otp are required")
		return
	}

	u, err := h.service.VerifyEmail(r.Context(), req.Email, req.OTP)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "email verified",
		"user":    toUserResponse(u),
	})
}

// resendRequest is the request body for POST /resend-otp
type resendRequest struct {
	Email string `json:"email"`
}

// HandleResendOTP handles POST /resend-otp
func (h *AuthHandler) HandleResendOTP(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r, "verify", ratelimit.VerifyLimit) {
		return
	}

	var req resendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		respondWithError(w, http.StatusBadRequest, "email is required")
		return
	}

	if err := h.service.ResendOTP(r.Context(), req.Email, middleware.ClientIP(r)); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			// Same message as success so the endpoint cannot be used to
			// enumerate accounts.
			respondWithJSON(w, http.StatusOK, map[string]string{"message": "verification code sent"})
			return
		}
		h.respondServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "verification code sent"})
}

// completeProfileRequest is the request body for POST /complete-profile
type completeProfileRequest struct {
	Role string `json:"role"`
	Name string `json:"name"`
}

// HandleCompleteProfile handles POST /complete-profile (protected)
func (h *AuthHandler) HandleCompleteProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok || user == nil {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req completeProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Role == "" {
		respondWithError(w, http.StatusBadRequest, "role is required")
		return
	}

	u, token, err := h.service.CompleteProfile(r.Context(), user.ID, model.Role(req.Role), req.Name)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"user":  toUserResponse(u),
		"token": token,
	})
}

// linkWalletRequest is the request body for POST /link-wallet
type linkWalletRequest struct {
	Address string `json:"address"`
}

// HandleLinkWallet handles POST /link-wallet (protected)
func (h *AuthHandler) HandleLinkWallet(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok || user == nil {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req linkWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, token, err := h.service.LinkWallet(r.Context(), user.ID, req.Address)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"user":  toUserResponse(u),
		"token": token,
	})
}

// HandleMe handles GET /me (protected). Returns the authenticated user.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok || user == nil {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	respondWithJSON(w, http.StatusOK, toUserResponse(*user))
}

// sessionResponse is the JSON response for GET /session
type sessionResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token,omitempty"`
}

// HandleSession handles GET /session (protected). Returns the refreshed
// claims, and a re-signed token when the current one is older than a day.
func (h *AuthHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok || user == nil {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	resp := sessionResponse{User: toUserResponse(*user)}
	token, refreshed, err := h.tokens.RefreshIfStale(claims, *user)
	if err != nil {
		// The session stays valid on its current token; the refresh is
		// retried on the next request.
		log.Printf("session refresh failed: %v", err)
	} else if refreshed {
		resp.Token = token
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// allow applies a route-family rate limit keyed by client IP.
func (h *AuthHandler) allow(w http.ResponseWriter, r *http.Request, bucket string, p ratelimit.Profile) bool {
	d := h.limiter.Check(bucket, middleware.ClientIP(r), p)
	if !d.Allowed {
		middleware.RespondRateLimited(w, d)
		return false
	}
	return true
}

// respondServiceError maps lifecycle errors to the HTTP taxonomy. Store
// errors surface as a generic 500; detail stays in the server log.
func (h *AuthHandler) respondServiceError(w http.ResponseWriter, err error) {
	var vErr *auth.ValidationError
	if errors.As(err, &vErr) {
		respondWithJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  "validation failed",
			"errors": vErr.Messages,
		})
		return
	}

	var lErr *auth.LockedError
	if errors.As(err, &lErr) {
		respondWithJSON(w, http.StatusLocked, map[string]string{
			"error":    "account temporarily locked",
			"unlockAt": lErr.Until.UTC().Format(time.RFC3339),
		})
		return
	}

	switch {
	case errors.Is(err, auth.ErrAccountExists):
		respondWithError(w, http.StatusConflict, "account already exists")
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondWithError(w, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, auth.ErrOTPInvalid), errors.Is(err, auth.ErrOTPExpired), errors.Is(err, auth.ErrOTPLocked):
		respondWithError(w, http.StatusBadRequest, "invalid or expired verification code")
	case errors.Is(err, auth.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "not found")
	default:
		log.Printf("request failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "internal error")
	}
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}
