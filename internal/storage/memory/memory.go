// Package memory provides in-process session and order journal storage used
// when no database is configured.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/go-faster/errors"

	"github.com/prodishi/dishi-shop/internal/domain/order"
)

type session struct {
	contact order.Contact
	token   string
}

// SessionStore implements order.SessionStore.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]session
}

var _ order.SessionStore = (*SessionStore)(nil)

// NewSessionStore creates an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]session)}
}

func (s *SessionStore) Contact(_ context.Context, id string) (order.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id].contact, nil
}

func (s *SessionStore) SaveContact(_ context.Context, id string, c order.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.sessions[id]
	v.contact = c
	s.sessions[id] = v
	return nil
}

func (s *SessionStore) Token(_ context.Context, id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id].token, nil
}

func (s *SessionStore) SaveToken(_ context.Context, id, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.sessions[id]
	v.token = token
	s.sessions[id] = v
	return nil
}

func (s *SessionStore) ClearToken(ctx context.Context, id string) error {
	return s.SaveToken(ctx, id, "")
}

// Journal implements order.Journal. Records are kept in insertion order.
type Journal struct {
	mu      sync.RWMutex
	records []order.Record
	tokens  map[string]struct{}
}

var _ order.Journal = (*Journal)(nil)

// NewJournal creates an empty Journal.
func NewJournal() *Journal {
	return &Journal{tokens: make(map[string]struct{})}
}

func (j *Journal) Record(_ context.Context, r *order.Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, ok := j.tokens[r.Token]; ok {
		return errors.Wrapf(order.ErrDuplicateSubmission, "token %s", r.Token)
	}
	j.tokens[r.Token] = struct{}{}
	rec := *r
	rec.Payload.Items = slices.Clone(r.Payload.Items)
	j.records = append(j.records, rec)
	return nil
}

func (j *Journal) Exists(_ context.Context, token string) (bool, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	_, ok := j.tokens[token]
	return ok, nil
}

// Tokens returns every recorded token.
func (j *Journal) Tokens(context.Context) ([]string, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]string, len(j.records))
	for i, r := range j.records {
		out[i] = r.Token
	}
	return out, nil
}

// Records returns a snapshot of the journal.
func (j *Journal) Records() []order.Record {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return slices.Clone(j.records)
}
