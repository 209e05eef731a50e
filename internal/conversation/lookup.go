package conversation

import (
	"github.com/matheus3301/threadstore/internal/message"
	"go.uber.org/zap"
)

// MessageForTimestamp returns the first message sent at ts, or nil.
func (s *Store) MessageForTimestamp(ts int64) (*message.Record, error) {
	return s.first(Query{Selection: NewSelection().SentEquals(ts)}, true)
}

// MessageFor returns the message sent at ts by author. When author is the
// local user the first outgoing message at ts matches; otherwise the
// message's address must equal author. It returns nil when nothing matches.
func (s *Store) MessageFor(ts int64, author string, resolveQuote bool) (*message.Record, error) {
	r, err := s.read(Query{Selection: NewSelection().SentEquals(ts)}, resolveQuote)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	own := s.identity.IsLocal(author)
	for {
		rec, err := r.Next()
		if err != nil || rec == nil {
			return nil, err
		}
		if (own && rec.IsOutgoing) || (!own && rec.Address == author) {
			return rec, nil
		}
	}
}

// SentMessageFor returns the first outgoing message sent at ts. It returns
// nil unless author is the local user.
func (s *Store) SentMessageFor(ts int64, author string) (*message.Record, error) {
	if !s.identity.IsLocal(author) {
		s.logger.Debug("sent message lookup for non-local author", zap.String("author", author))
		return nil, nil
	}
	rec, err := s.first(Query{
		Selection: NewSelection().SentEquals(ts).Outgoing(),
	}, true)
	if err != nil || !isOutgoing(rec) {
		return nil, err
	}
	return rec, nil
}

// LastSentMessageFromSender returns the newest outgoing message in the
// thread. It returns nil unless author is the local user.
func (s *Store) LastSentMessageFromSender(threadID int64, author string) (*message.Record, error) {
	if !s.identity.IsLocal(author) {
		s.logger.Debug("last sent lookup for non-local author", zap.String("author", author), zapThread(threadID))
		return nil, nil
	}
	rec, err := s.first(Query{
		Selection: NewSelection().Thread(threadID).Outgoing(),
		Order:     Descending,
		Page:      Page{Limit: 1},
	}, true)
	if err != nil || !isOutgoing(rec) {
		return nil, err
	}
	return rec, nil
}

// AllMessagesFromSenderInThread returns every message in the thread whose
// address is author, each unique row once.
func (s *Store) AllMessagesFromSenderInThread(threadID int64, author string) ([]*message.Record, error) {
	r, err := s.read(Query{Selection: NewSelection().Thread(threadID).Address(author)}, true)
	if err != nil {
		return nil, err
	}
	recs, err := r.All()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(recs))
	out := recs[:0]
	for _, rec := range recs {
		if _, dup := seen[rec.UniqueRowID]; dup {
			continue
		}
		seen[rec.UniqueRowID] = struct{}{}
		out = append(out, rec)
	}
	return out, nil
}

// AllMessageIDsFromSenderInThread returns the distinct store-local ids of
// the messages AllMessagesFromSenderInThread would return. Ids from the two
// stores may collide and are then reported once.
func (s *Store) AllMessageIDsFromSenderInThread(threadID int64, author string) ([]int64, error) {
	recs, err := s.AllMessagesFromSenderInThread(threadID, author)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]struct{}, len(recs))
	var ids []int64
	for _, rec := range recs {
		if _, dup := seen[rec.ID]; dup {
			continue
		}
		seen[rec.ID] = struct{}{}
		ids = append(ids, rec.ID)
	}
	return ids, nil
}

func isOutgoing(rec *message.Record) bool {
	return rec != nil && rec.IsOutgoing
}
