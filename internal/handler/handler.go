package handler

import (
	"net/http"

	"github.com/hacs-web/backend/internal/repository"
)

type Handler struct {
	db repository.DB
}

func New(db repository.DB) *Handler {
	return &Handler{db: db}
}

// CORS は全ルート共通のミドルウェア。問い合わせフォームは別オリジンの
// ブラウザから直接叩かれるため、意図的に全オリジン許可。
func (h *Handler) CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		w.Header().Set("Access-Control-Max-Age", "600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
