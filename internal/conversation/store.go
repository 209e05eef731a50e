// Package conversation presents the short-message and multimedia-message
// stores as one chronologically ordered conversation stream. Receipt changes
// are announced on the bus as EventReceiptUpdated; convctl import --watch
// prints them.
package conversation

import (
	"github.com/matheus3301/threadstore/internal/bus"
	"github.com/matheus3301/threadstore/internal/message"
	"github.com/matheus3301/threadstore/internal/store"
	"go.uber.org/zap"
)

// ShortMessageStore is what the conversation store needs from the
// short-message store.
type ShortMessageStore interface {
	IncrementReceiptCount(id message.SyncID, delivery, read bool) (int64, error)
	MessageCountForThread(threadID int64) (int64, error)
}

// MultimediaMessageStore is what the conversation store needs from the
// multimedia-message store.
type MultimediaMessageStore interface {
	IncrementReceiptCount(id message.SyncID, timestamp int64, delivery, read bool) (int64, error)
	MessageCountForThread(threadID int64) (int64, error)
}

// Store answers conversation queries over the merged relation and fans
// receipt updates out to both underlying stores.
type Store struct {
	relation *Relation
	sms      ShortMessageStore
	mms      MultimediaMessageStore
	identity message.Identity
	bus      *bus.Bus
	logger   *zap.Logger
}

// New creates a conversation store. identity, b and logger may be nil.
func New(db *store.DB, sms ShortMessageStore, mms MultimediaMessageStore, identity message.Identity, b *bus.Bus, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if identity == nil {
		identity = message.NewLocalIdentity()
	}
	return &Store{
		relation: NewRelation(db),
		sms:      sms,
		mms:      mms,
		identity: identity,
		bus:      b,
		logger:   logger,
	}
}

// Relation exposes the underlying merged relation.
func (s *Store) Relation() *Relation {
	return s.relation
}

func (s *Store) read(q Query, resolveQuote bool) (*Reader, error) {
	rows, err := s.relation.Query(q)
	if err != nil {
		return nil, err
	}
	return newReader(rows, resolveQuote)
}

// first returns the first record q yields, or nil.
func (s *Store) first(q Query, resolveQuote bool) (*message.Record, error) {
	r, err := s.read(q, resolveQuote)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return r.Next()
}

// exists reports whether sel matches at least one row.
func (s *Store) exists(sel *Selection) (bool, error) {
	rows, err := s.relation.Query(Query{
		Columns:   []string{store.ColID},
		Selection: sel,
		Page:      Page{Limit: 1},
	})
	if err != nil {
		return false, err
	}
	defer func() { _ = rows.Close() }()
	found := rows.Next()
	return found, rows.Err()
}

func zapThread(id int64) zap.Field {
	return zap.Int64("thread_id", id)
}
