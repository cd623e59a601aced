package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"labcheckin/pkg/domain"
)

const (
	keyPrefix   = "checkins/"
	contentType = "application/json"
)

// Record is the archived form of one accepted submission.
type Record struct {
	ID         string                  `json:"id"`
	ArchivedAt time.Time               `json:"archived_at"`
	Orders     []domain.CheckInRequest `json:"orders"`
}

// Archiver writes each accepted submission as one JSON object keyed
// checkins/<date>/<id>.json.
type Archiver struct {
	store Store
	now   func() time.Time
	newID func() string
}

// Option configures an Archiver.
type Option func(*Archiver)

// WithClock overrides the archive timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Archiver) { a.now = now }
}

// WithIDFunc overrides archive id generation.
func WithIDFunc(fn func() string) Option {
	return func(a *Archiver) { a.newID = fn }
}

// New wraps store.
func New(store Store, opts ...Option) *Archiver {
	a := &Archiver{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Archive stores reqs and returns the object key.
func (a *Archiver) Archive(ctx context.Context, reqs []domain.CheckInRequest) (string, error) {
	rec := Record{ID: a.newID(), ArchivedAt: a.now(), Orders: reqs}
	raw, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode archive: %w", err)
	}
	key := keyPrefix + rec.ArchivedAt.Format("2006-01-02") + "/" + rec.ID + ".json"
	_, err = a.store.Put(ctx, key, bytes.NewReader(raw), PutOptions{
		ContentType: contentType,
		Metadata:    map[string]string{"orders": strconv.Itoa(len(reqs))},
	})
	if err != nil {
		return "", fmt.Errorf("archive %s: %w", key, err)
	}
	return key, nil
}

// Load reads the record stored at key.
func (a *Archiver) Load(ctx context.Context, key string) (Record, error) {
	_, rc, err := a.store.Get(ctx, key)
	if err != nil {
		return Record{}, err
	}
	defer func() { _ = rc.Close() }()
	var rec Record
	if err := json.NewDecoder(rc).Decode(&rec); err != nil {
		return Record{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return rec, nil
}

// List returns the keys of every archived submission in key order.
func (a *Archiver) List(ctx context.Context) ([]string, error) {
	infos, err := a.store.List(ctx, keyPrefix)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(infos))
	for _, info := range infos {
		keys = append(keys, info.Key)
	}
	return keys, nil
}
