package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/hacs-web/backend/internal/model"
)

// contactKeyPrefix namespaces submission keys within the flat KV space.
const contactKeyPrefix = "contact:"

// ContactKey builds the composite storage key for a submission. Timestamps are
// fixed-width ISO-8601, so ascending key order is ascending chronological
// order, with the id as a tie-breaker for same-instant submissions.
func ContactKey(timestamp, id string) string {
	return contactKeyPrefix + timestamp + ":" + id
}

// ContactRepository defines the persistence interface for contact submissions.
// It is defined here (in repository) to avoid an import cycle with service.
type ContactRepository interface {
	Save(ctx context.Context, sub *model.ContactSubmission) error
	List(ctx context.Context) ([]*model.ContactSubmission, error)
	UpdateStatus(ctx context.Context, timestamp, id, status string) (*model.ContactSubmission, error)
}

// KVContactRepository stores contact submissions as JSON values in a KVStore.
type KVContactRepository struct {
	kv KVStore
}

// NewKVContactRepository creates a KVContactRepository backed by the given store.
func NewKVContactRepository(kv KVStore) *KVContactRepository {
	return &KVContactRepository{kv: kv}
}

// Ensure KVContactRepository implements ContactRepository at compile time.
var _ ContactRepository = (*KVContactRepository)(nil)

// Save persists the submission at its composite key. ID and Timestamp must
// already be populated by the caller.
func (r *KVContactRepository) Save(ctx context.Context, sub *model.ContactSubmission) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}
	return r.kv.Set(ctx, ContactKey(sub.Timestamp, sub.ID), data)
}

// List returns all submissions sorted by timestamp descending (newest first).
// The sort is stable over the ascending key order of the prefix scan, so
// records sharing a timestamp keep a consistent relative order per response.
func (r *KVContactRepository) List(ctx context.Context) ([]*model.ContactSubmission, error) {
	values, err := r.kv.GetByPrefix(ctx, contactKeyPrefix)
	if err != nil {
		return nil, err
	}

	subs := make([]*model.ContactSubmission, 0, len(values))
	for _, v := range values {
		var s model.ContactSubmission
		if err := json.Unmarshal(v, &s); err != nil {
			return nil, fmt.Errorf("decode submission: %w", err)
		}
		subs = append(subs, &s)
	}

	sort.SliceStable(subs, func(i, j int) bool {
		return subs[i].Timestamp > subs[j].Timestamp
	})
	return subs, nil
}

// UpdateStatus merges the new status into the record stored at the rebuilt
// composite key and persists it. Every other field is carried over unchanged.
// Returns ErrNotFound when no record exists at that key.
func (r *KVContactRepository) UpdateStatus(ctx context.Context, timestamp, id, status string) (*model.ContactSubmission, error) {
	key := ContactKey(timestamp, id)

	data, err := r.kv.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var sub model.ContactSubmission
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("decode submission: %w", err)
	}

	sub.Status = status
	updated, err := json.Marshal(&sub)
	if err != nil {
		return nil, fmt.Errorf("encode submission: %w", err)
	}
	if err := r.kv.Set(ctx, key, updated); err != nil {
		return nil, err
	}
	return &sub, nil
}
