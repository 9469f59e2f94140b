package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hacs-web/backend/internal/model"
	"github.com/hacs-web/backend/internal/repository"
	"github.com/hacs-web/backend/internal/service"
	"github.com/hacs-web/backend/pkg/auth"
)

// ContactHandler handles contact form submission and the admin operations
// over stored submissions.
type ContactHandler struct {
	contactService service.ContactService
}

// NewContactHandler creates a ContactHandler with the given service.
func NewContactHandler(contactService service.ContactService) *ContactHandler {
	return &ContactHandler{contactService: contactService}
}

// submitRequest is the expected JSON body for POST {prefix}/contact.
type submitRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Company string `json:"company"`
	Message string `json:"message"`
}

// Submit handles POST {prefix}/contact.
// name, email and message are required; phone and company are optional.
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_json"})
		return
	}

	if req.Name == "" || req.Email == "" || req.Message == "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "missing_required_fields"})
		return
	}

	sub := &model.ContactSubmission{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Company: req.Company,
		Message: req.Message,
	}

	if err := h.contactService.Submit(r.Context(), sub); err != nil {
		slog.Error("contact submission failed", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal_server_error"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "id": sub.ID})
}

// listResponse is the JSON response for GET {prefix}/contacts.
type listResponse struct {
	Contacts []*model.ContactSubmission `json:"contacts"`
}

// List handles GET {prefix}/contacts (session required).
// Returns all submissions, newest first.
func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.UserFromContext(r.Context()); !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
		return
	}

	contacts, err := h.contactService.List(r.Context())
	if err != nil {
		slog.Error("contact listing failed", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal_server_error"})
		return
	}

	// Return [] not null for empty lists
	if contacts == nil {
		contacts = []*model.ContactSubmission{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(listResponse{Contacts: contacts})
}

// updateStatusRequest is the expected JSON body for PUT {prefix}/contact/status.
type updateStatusRequest struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Status    string `json:"status"`
}

// UpdateStatus handles PUT {prefix}/contact/status (session required).
// The storage key is rebuilt from (timestamp, id); only status changes.
func (h *ContactHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.UserFromContext(r.Context()); !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_json"})
		return
	}

	if req.ID == "" || req.Timestamp == "" || req.Status == "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "missing_required_fields"})
		return
	}

	contact, err := h.contactService.UpdateStatus(r.Context(), req.Timestamp, req.ID, req.Status)
	if errors.Is(err, repository.ErrNotFound) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "contact_not_found"})
		return
	}
	if err != nil {
		slog.Error("contact status update failed", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal_server_error"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "contact": contact})
}
