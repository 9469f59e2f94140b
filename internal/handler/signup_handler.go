package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hacs-web/backend/internal/service"
	"github.com/hacs-web/backend/pkg/gotrue"
)

// minPasswordLength は Identity Provider 側の下限に合わせる
const minPasswordLength = 6

// SignupHandler exposes the idempotent admin create-or-repair flow.
type SignupHandler struct {
	signupService service.SignupService
}

// NewSignupHandler creates a SignupHandler with the given service.
func NewSignupHandler(signupService service.SignupService) *SignupHandler {
	return &SignupHandler{signupService: signupService}
}

// signupRequest is the expected JSON body for POST {prefix}/signup.
type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup handles POST {prefix}/signup.
// Validation failures are rejected before any identity-provider call.
func (h *SignupHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_json"})
		return
	}

	if req.Email == "" || req.Password == "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "email_and_password_required"})
		return
	}

	if len([]rune(req.Password)) < minPasswordLength {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "password_too_short"})
		return
	}

	result, err := h.signupService.Repair(r.Context(), req.Email, req.Password)
	if errors.Is(err, service.ErrAccountNotFound) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "account_not_found"})
		return
	}
	var apiErr *gotrue.APIError
	if errors.As(err, &apiErr) && apiErr.Status < 500 {
		// Provider が明示的に弾いたもの（パスワードポリシー等）
		slog.Warn("signup rejected by identity provider", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "identity_provider_rejected"})
		return
	}
	if err != nil {
		slog.Error("signup repair failed", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal_server_error"})
		return
	}

	// 作成／更新は通ったがサインイン確認が取れなかった。ハード失敗とは区別し、
	// 呼び出し側には「後で再試行」のシグナルとして返す。
	if !result.Verified {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":     "repair_unverified",
			"operation": result.Operation,
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"session":   result.Session,
		"repaired":  true,
		"operation": result.Operation,
	})
}
