package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/smschat/server/internal/auth"
	"github.com/smschat/server/internal/middleware"
)

// AuthHandler handles registration and login
type AuthHandler struct {
	authService     *auth.Service
	loginLimiter    *middleware.RateLimiter
	registerLimiter *middleware.RateLimiter
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *auth.Service) *AuthHandler {
	// IP rate limiters: 10 per 10min for register, 20 per 10min for login
	return &AuthHandler{
		authService:     authService,
		loginLimiter:    middleware.NewRateLimiter(10*time.Minute, 20),
		registerLimiter: middleware.NewRateLimiter(10*time.Minute, 10),
	}
}

// credentialsRequest is the request body for POST /login and POST /register
type credentialsRequest struct {
	UserName string `json:"user_name"`
	Password string `json:"password"`
}

// loginResponse is the JSON response for login
type loginResponse struct {
	Token    string `json:"token"`
	UserName string `json:"user_name"`
}

// registerResponse is the JSON response for register
type registerResponse struct {
	Token    string `json:"token"`
	UserName string `json:"user_name"`
	Message  string `json:"message"`
}

// HandleLogin handles POST /login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !h.loginLimiter.Allow(middleware.GetIPKey(r)) {
		respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	user, token, err := h.authService.Login(r.Context(), req.UserName, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			respondWithError(w, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		log.Printf("Login failed for %q: %v", req.UserName, err)
		respondWithError(w, http.StatusInternalServerError, "An internal error occurred")
		return
	}

	respondWithJSON(w, http.StatusOK, loginResponse{
		Token:    token,
		UserName: user.UserName,
	})
}

// HandleRegister handles POST /register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !h.registerLimiter.Allow(middleware.GetIPKey(r)) {
		respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	user, token, err := h.authService.Register(r.Context(), req.UserName, req.Password)
	if err != nil {
		var vErr *auth.ValidationError
		if errors.As(err, &vErr) {
			respondWithErrors(w, http.StatusUnprocessableEntity, vErr.Errors)
			return
		}
		log.Printf("Registration failed for %q: %v", req.UserName, err)
		respondWithError(w, http.StatusInternalServerError, "An internal error occurred")
		return
	}

	respondWithJSON(w, http.StatusCreated, registerResponse{
		Token:    token,
		UserName: user.UserName,
		Message:  "Registration successful",
	})
}
