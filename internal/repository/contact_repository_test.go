package repository

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/hacs-web/backend/internal/model"
)

// ---------------------------------------------------------------------------
// memKVStore — in-memory KVStore for testing
// ---------------------------------------------------------------------------

type memKVStore struct {
	data   map[string][]byte
	setErr error
	getErr error
}

func newMemKVStore() *memKVStore {
	return &memKVStore{data: map[string][]byte{}}
}

func (m *memKVStore) Set(ctx context.Context, key string, value []byte) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func (m *memKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (m *memKVStore) GetByPrefix(ctx context.Context, prefix string) ([][]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys) // 昇順キー順 = PgKVStore と同じ契約
	var values [][]byte
	for _, k := range keys {
		values = append(values, m.data[k])
	}
	return values, nil
}

func mustSave(t *testing.T, r *KVContactRepository, sub *model.ContactSubmission) {
	t.Helper()
	if err := r.Save(context.Background(), sub); err != nil {
		t.Fatalf("save: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Save tests
// ---------------------------------------------------------------------------

func TestKVContactRepository_Save_UsesCompositeKey(t *testing.T) {
	kv := newMemKVStore()
	r := NewKVContactRepository(kv)

	sub := &model.ContactSubmission{
		ID:        "abc-123",
		Timestamp: "2026-08-01T10:00:00.000Z",
		Name:      "Taro Yamada",
		Email:     "taro@example.com",
		Message:   "Hello",
	}
	mustSave(t, r, sub)

	wantKey := "contact:2026-08-01T10:00:00.000Z:abc-123"
	data, ok := kv.data[wantKey]
	if !ok {
		t.Fatalf("expected record at key %q, keys: %v", wantKey, kv.data)
	}

	var stored model.ContactSubmission
	if err := json.Unmarshal(data, &stored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(&stored, sub) {
		t.Errorf("stored record differs from input:\n got %+v\nwant %+v", stored, *sub)
	}
}

// TestKVContactRepository_Save_OmitsEmptyOptionalFields verifies phone/company
// are absent from the stored JSON when not supplied.
func TestKVContactRepository_Save_OmitsEmptyOptionalFields(t *testing.T) {
	kv := newMemKVStore()
	r := NewKVContactRepository(kv)

	mustSave(t, r, &model.ContactSubmission{
		ID: "x", Timestamp: "2026-08-01T10:00:00.000Z",
		Name: "A", Email: "a@b.com", Message: "Hi",
	})

	raw := string(kv.data["contact:2026-08-01T10:00:00.000Z:x"])
	if strings.Contains(raw, `"phone"`) || strings.Contains(raw, `"company"`) || strings.Contains(raw, `"status"`) {
		t.Errorf("expected omitted optional fields, got %s", raw)
	}
}

// ---------------------------------------------------------------------------
// List tests
// ---------------------------------------------------------------------------

func TestKVContactRepository_List_NewestFirst(t *testing.T) {
	kv := newMemKVStore()
	r := NewKVContactRepository(kv)

	mustSave(t, r, &model.ContactSubmission{ID: "old", Timestamp: "2026-08-01T09:00:00.000Z", Name: "A", Email: "a@b.com", Message: "first"})
	mustSave(t, r, &model.ContactSubmission{ID: "new", Timestamp: "2026-08-03T09:00:00.000Z", Name: "B", Email: "b@b.com", Message: "third"})
	mustSave(t, r, &model.ContactSubmission{ID: "mid", Timestamp: "2026-08-02T09:00:00.000Z", Name: "C", Email: "c@b.com", Message: "second"})

	subs, err := r.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(subs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(subs))
	}
	if subs[0].ID != "new" || subs[1].ID != "mid" || subs[2].ID != "old" {
		t.Errorf("expected newest-first order, got %s %s %s", subs[0].ID, subs[1].ID, subs[2].ID)
	}
}

// TestKVContactRepository_List_StableTieBreak verifies records sharing a
// timestamp keep the scan order (id-ascending) across calls.
func TestKVContactRepository_List_StableTieBreak(t *testing.T) {
	kv := newMemKVStore()
	r := NewKVContactRepository(kv)

	ts := "2026-08-01T09:00:00.000Z"
	mustSave(t, r, &model.ContactSubmission{ID: "bbb", Timestamp: ts, Name: "B", Email: "b@b.com", Message: "m"})
	mustSave(t, r, &model.ContactSubmission{ID: "aaa", Timestamp: ts, Name: "A", Email: "a@b.com", Message: "m"})

	first, err := r.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := r.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first[0].ID != second[0].ID || first[1].ID != second[1].ID {
		t.Errorf("expected stable tie-break across calls, got %v then %v",
			[]string{first[0].ID, first[1].ID}, []string{second[0].ID, second[1].ID})
	}
	// 昇順キースキャンの安定ソートなので id 昇順
	if first[0].ID != "aaa" {
		t.Errorf("expected scan-order tie-break, got %q first", first[0].ID)
	}
}

func TestKVContactRepository_List_Empty(t *testing.T) {
	r := NewKVContactRepository(newMemKVStore())
	subs, err := r.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("expected empty listing, got %d", len(subs))
	}
}

func TestKVContactRepository_List_CorruptRecord(t *testing.T) {
	kv := newMemKVStore()
	kv.data["contact:2026-08-01T09:00:00.000Z:x"] = []byte("{not json")
	r := NewKVContactRepository(kv)

	if _, err := r.List(context.Background()); err == nil {
		t.Error("expected decode error for corrupt record")
	}
}

// ---------------------------------------------------------------------------
// UpdateStatus tests
// ---------------------------------------------------------------------------

func TestKVContactRepository_UpdateStatus_NotFound(t *testing.T) {
	kv := newMemKVStore()
	r := NewKVContactRepository(kv)

	_, err := r.UpdateStatus(context.Background(), "2026-08-01T09:00:00.000Z", "missing", model.StatusDone)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if len(kv.data) != 0 {
		t.Error("expected store unchanged after not-found update")
	}
}

// TestKVContactRepository_UpdateStatus_PreservesOtherFields verifies only the
// status changes; re-fetching shows every other field identical.
func TestKVContactRepository_UpdateStatus_PreservesOtherFields(t *testing.T) {
	kv := newMemKVStore()
	r := NewKVContactRepository(kv)

	orig := &model.ContactSubmission{
		ID:        "abc",
		Timestamp: "2026-08-01T09:00:00.000Z",
		Name:      "Taro Yamada",
		Email:     "taro@example.com",
		Phone:     "090-0000-0000",
		Company:   "HACS",
		Message:   "Inquiry about mobile plans",
	}
	mustSave(t, r, orig)

	updated, err := r.UpdateStatus(context.Background(), orig.Timestamp, orig.ID, model.StatusProgress)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != model.StatusProgress {
		t.Errorf("expected status=progress, got %q", updated.Status)
	}

	want := *orig
	want.Status = model.StatusProgress
	got := *updated
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected only status changed:\n got %+v\nwant %+v", got, want)
	}

	// 再取得でも同一
	subs, err := r.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(subs) != 1 || !reflect.DeepEqual(*subs[0], want) {
		t.Errorf("re-fetched record differs: %+v", subs[0])
	}
}

// TestKVContactRepository_UpdateStatus_Idempotent verifies applying the same
// update twice produces no observable diff.
func TestKVContactRepository_UpdateStatus_Idempotent(t *testing.T) {
	kv := newMemKVStore()
	r := NewKVContactRepository(kv)

	sub := &model.ContactSubmission{ID: "abc", Timestamp: "2026-08-01T09:00:00.000Z", Name: "A", Email: "a@b.com", Message: "m"}
	mustSave(t, r, sub)

	first, err := r.UpdateStatus(context.Background(), sub.Timestamp, sub.ID, model.StatusDone)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := r.UpdateStatus(context.Background(), sub.Timestamp, sub.ID, model.StatusDone)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("expected idempotent update, got %+v then %+v", first, second)
	}
}

// TestKVContactRepository_UpdateStatus_SoftDelete verifies "deleted" records
// stay listed and can be re-classified.
func TestKVContactRepository_UpdateStatus_SoftDelete(t *testing.T) {
	kv := newMemKVStore()
	r := NewKVContactRepository(kv)

	sub := &model.ContactSubmission{ID: "abc", Timestamp: "2026-08-01T09:00:00.000Z", Name: "A", Email: "a@b.com", Message: "m"}
	mustSave(t, r, sub)

	if _, err := r.UpdateStatus(context.Background(), sub.Timestamp, sub.ID, model.StatusDeleted); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	subs, err := r.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(subs) != 1 || subs[0].Status != model.StatusDeleted {
		t.Fatalf("expected soft-deleted record still listed, got %+v", subs)
	}

	restored, err := r.UpdateStatus(context.Background(), sub.Timestamp, sub.ID, model.StatusUnhandled)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if restored.Status != model.StatusUnhandled {
		t.Errorf("expected re-classification after soft delete, got %q", restored.Status)
	}
}
