package service

import (
	"context"

	"github.com/hacs-web/backend/internal/model"
)

// ContactService defines the business logic for contact form submissions.
type ContactService interface {
	// Submit stores a new submission. A fresh ID and Timestamp are populated
	// by the implementation; a notification email may be sent as a
	// best-effort side effect.
	Submit(ctx context.Context, sub *model.ContactSubmission) error

	// List returns all submissions, newest first.
	List(ctx context.Context) ([]*model.ContactSubmission, error)

	// UpdateStatus changes the status of the submission identified by the
	// (timestamp, id) pair and returns the updated record.
	UpdateStatus(ctx context.Context, timestamp, id, status string) (*model.ContactSubmission, error)
}
