package fuel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DraftStore keeps wizard drafts in Redis so an interrupted capture can
// resume from its last completed step.
type DraftStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDraftStore builds a DraftStore with the given draft TTL.
func NewDraftStore(client *redis.Client, ttl time.Duration) *DraftStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &DraftStore{client: client, ttl: ttl}
}

func draftKey(id string) string {
	return "fuel:draft:" + id
}

// errStoreUnavailable surfaces when the process started without Redis.
var errStoreUnavailable = errors.New("fuel: draft store unavailable")

// Create stores a fresh draft and assigns its id.
func (s *DraftStore) Create(ctx context.Context, draft Draft) (Draft, error) {
	draft.ID = uuid.NewString()
	if err := s.save(ctx, draft); err != nil {
		return Draft{}, err
	}
	return draft, nil
}

// Get loads a draft by id.
func (s *DraftStore) Get(ctx context.Context, id string) (Draft, error) {
	if s.client == nil {
		return Draft{}, errStoreUnavailable
	}
	payload, err := s.client.Get(ctx, draftKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Draft{}, ErrDraftNotFound
	}
	if err != nil {
		return Draft{}, fmt.Errorf("fuel: load draft: %w", err)
	}
	var draft Draft
	if err := json.Unmarshal(payload, &draft); err != nil {
		return Draft{}, fmt.Errorf("fuel: decode draft: %w", err)
	}
	return draft, nil
}

// Update overwrites the draft and refreshes its TTL.
func (s *DraftStore) Update(ctx context.Context, draft Draft) error {
	if draft.ID == "" {
		return ErrDraftNotFound
	}
	return s.save(ctx, draft)
}

// Delete removes the draft, typically after finalize or abandon.
func (s *DraftStore) Delete(ctx context.Context, id string) error {
	if s.client == nil {
		return errStoreUnavailable
	}
	return s.client.Del(ctx, draftKey(id)).Err()
}

func (s *DraftStore) save(ctx context.Context, draft Draft) error {
	if s.client == nil {
		return errStoreUnavailable
	}
	payload, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("fuel: encode draft: %w", err)
	}
	if err := s.client.Set(ctx, draftKey(draft.ID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("fuel: store draft: %w", err)
	}
	return nil
}
