package conversation

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/matheus3301/threadstore/internal/message"
	"github.com/matheus3301/threadstore/internal/store"
)

// Order is the direction rows are returned in, by normalized sent time.
type Order int

const (
	Ascending Order = iota
	Descending
)

func (o Order) sql() string {
	if o == Descending {
		return "DESC"
	}
	return "ASC"
}

// Page bounds a query. It is applied only when at least one field is nonzero,
// unless Always is set, in which case a zero Limit yields no rows.
type Page struct {
	Offset int
	Limit  int
	Always bool
}

func (p Page) set() bool {
	return p.Always || p.Offset != 0 || p.Limit != 0
}

// Selection is a conjunction of predicates over the merged relation.
// The zero value matches every row.
type Selection struct {
	preds []string
	args  []any
}

// NewSelection returns an empty selection.
func NewSelection() *Selection {
	return &Selection{}
}

func (s *Selection) add(pred string, args ...any) *Selection {
	s.preds = append(s.preds, pred)
	s.args = append(s.args, args...)
	return s
}

// Thread restricts rows to one conversation. A non-positive id cannot match
// anything, so the selection becomes empty rather than failing.
func (s *Selection) Thread(id int64) *Selection {
	if id <= 0 {
		return s.add("1 = 0")
	}
	return s.add(store.ColThreadID+" = ?", id)
}

// SentEquals keeps rows sent exactly at ts.
func (s *Selection) SentEquals(ts int64) *Selection {
	return s.add(store.ColDateSent+" = ?", ts)
}

// SentBefore keeps rows sent strictly before ts.
func (s *Selection) SentBefore(ts int64) *Selection {
	return s.add(store.ColDateSent+" < ?", ts)
}

// SentAfter keeps rows sent strictly after ts.
func (s *Selection) SentAfter(ts int64) *Selection {
	return s.add(store.ColDateSent+" > ?", ts)
}

// SentAtOrBefore keeps rows sent at or before ts.
func (s *Selection) SentAtOrBefore(ts int64) *Selection {
	return s.add(store.ColDateSent+" <= ?", ts)
}

// Address keeps rows whose address equals addr.
func (s *Selection) Address(addr string) *Selection {
	return s.add(store.ColAddress+" = ?", addr)
}

// Outgoing keeps rows whose type (short messages) or box (multimedia
// messages) is one of the outgoing base types.
func (s *Selection) Outgoing() *Selection {
	return s.add(fmt.Sprintf("(COALESCE(%s, %s) & %d) IN (%s)",
		store.ColType, store.ColMessageBox, message.BaseTypeMask, outgoingList))
}

// Unread keeps rows the user has not seen: unread, or carrying unread
// reactions, and not yet notified.
func (s *Selection) Unread() *Selection {
	return s.add(fmt.Sprintf("(%s = 0 OR %s = 1) AND %s = 0",
		store.ColRead, store.ColReactionsUnread, store.ColNotified))
}

// NotRead keeps rows neither read nor notified.
func (s *Selection) NotRead() *Selection {
	return s.add(fmt.Sprintf("%s = 0 AND %s = 0", store.ColRead, store.ColNotified))
}

func (s *Selection) where() (string, []any) {
	if s == nil || len(s.preds) == 0 {
		return "", nil
	}
	parts := make([]string, len(s.preds))
	for i, p := range s.preds {
		parts[i] = "(" + p + ")"
	}
	return " WHERE " + strings.Join(parts, " AND "), s.args
}

var outgoingList = func() string {
	types := []int64{
		message.BaseOutboxType,
		message.BaseSendingType,
		message.BaseSentType,
		message.BaseSentFailedType,
		message.BasePendingSecureSMSFallback,
		message.BasePendingInsecureSMSFallback,
		message.OutgoingCallType,
	}
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = fmt.Sprint(t)
	}
	return strings.Join(parts, ", ")
}()

// Query describes one read of the merged relation.
type Query struct {
	// Columns restricts the outer projection; nil selects every column.
	Columns   []string
	Selection *Selection
	Order     Order
	Page      Page
}

// projection maps every merged column to its expression in one store.
type projection struct {
	from  string
	exprs map[string]string
}

// AllColumns is the full shape of the merged relation, in projection order.
var AllColumns = []string{
	store.ColID,
	store.ColUniqueRowID,
	store.ColDateSent,
	store.ColDateReceived,
	store.ColTransport,
	store.ColThreadID,
	store.ColAddress,
	store.ColAddressDeviceID,
	store.ColBody,
	store.ColRead,
	store.ColType,
	store.ColSubject,
	store.ColStatus,
	store.ColMessageBox,
	store.ColMessageType,
	store.ColPartCount,
	store.ColContentLocation,
	store.ColTransactionID,
	store.ColMessageSize,
	store.ColExpiry,
	store.ColMMSStatus,
	store.ColUnidentified,
	store.ColDeliveryReceiptCount,
	store.ColReadReceiptCount,
	store.ColMismatchedIdentities,
	store.ColNetworkFailures,
	store.ColSubscriptionID,
	store.ColExpiresIn,
	store.ColExpireStarted,
	store.ColNotified,
	store.ColReactionsUnread,
	store.ColHasMention,
	store.ColQuoteID,
	store.ColQuoteAuthor,
	store.ColQuoteBody,
	store.ColQuoteMissing,
	store.ColQuoteAttachment,
	store.ColSharedContacts,
	store.ColLinkPreviews,
	store.ColAttachmentJSON,
	store.ColReactionJSON,
}

const reactionAggregate = `SELECT message_id, is_mms, json_group_array(json_object(
		'reaction_id', reaction_id, 'message_id', message_id, 'is_mms', is_mms,
		'author_id', author_id, 'emoji', emoji, 'server_id', server_id, 'count', count,
		'sort_id', sort_id, 'date_sent', date_sent, 'date_received', date_received)) AS reaction_json
	FROM reaction GROUP BY message_id, is_mms`

const attachmentAggregate = `SELECT mid, json_group_array(json_object(
		'_id', _id, 'unique_id', unique_id, 'mid', mid, 'data_size', data_size,
		'file_name', file_name, '_data', _data, 'thumbnail', thumbnail, 'ct', ct, 'cl', cl,
		'fast_preflight_id', fast_preflight_id, 'voice_note', voice_note, 'width', width,
		'height', height, 'quote', quote, 'cd', cd, 'name', name, 'pending_push', pending_push,
		'caption', caption, 'sticker_pack_id', sticker_pack_id,
		'sticker_pack_key', sticker_pack_key, 'sticker_id', sticker_id)) AS attachment_json
	FROM part GROUP BY mid`

var smsProjection = projection{
	from: "sms s LEFT JOIN (" + reactionAggregate + ") r ON r.message_id = s._id AND r.is_mms = 0",
	exprs: map[string]string{
		store.ColID:                   "s._id",
		store.ColUniqueRowID:          "'SMS::' || s._id || '::' || s.date_sent",
		store.ColDateSent:             "s.date_sent",
		store.ColDateReceived:         "s.date",
		store.ColTransport:            "'" + message.SMSTag + "'",
		store.ColThreadID:             "s.thread_id",
		store.ColAddress:              "s.address",
		store.ColAddressDeviceID:      "s.address_device_id",
		store.ColBody:                 "s.body",
		store.ColRead:                 "s.read",
		store.ColType:                 "s.type",
		store.ColSubject:              "s.subject",
		store.ColStatus:               "s.status",
		store.ColUnidentified:         "s.unidentified",
		store.ColDeliveryReceiptCount: "s.delivery_receipt_count",
		store.ColReadReceiptCount:     "s.read_receipt_count",
		store.ColMismatchedIdentities: "s.mismatched_identities",
		store.ColSubscriptionID:       "s.subscription_id",
		store.ColExpiresIn:            "s.expires_in",
		store.ColExpireStarted:        "s.expire_started",
		store.ColNotified:             "s.notified",
		store.ColReactionsUnread:      "s.reactions_unread",
		store.ColHasMention:           "s.has_mention",
		store.ColReactionJSON:         "r.reaction_json",
	},
}

var mmsProjection = projection{
	from: "mms m LEFT JOIN (" + attachmentAggregate + ") a ON a.mid = m._id" +
		" LEFT JOIN (" + reactionAggregate + ") r ON r.message_id = m._id AND r.is_mms = 1",
	exprs: map[string]string{
		store.ColID:                   "m._id",
		store.ColUniqueRowID:          "'MMS::' || m._id || '::' || m.date",
		store.ColDateSent:             "m.date",
		store.ColDateReceived:         "m.date_received",
		store.ColTransport:            "'" + message.MMSTag + "'",
		store.ColThreadID:             "m.thread_id",
		store.ColAddress:              "m.address",
		store.ColAddressDeviceID:      "m.address_device_id",
		store.ColBody:                 "m.body",
		store.ColRead:                 "m.read",
		store.ColMessageBox:           "m.msg_box",
		store.ColMessageType:          "m.m_type",
		store.ColPartCount:            "m.part_count",
		store.ColContentLocation:      "m.ct_l",
		store.ColTransactionID:        "m.tr_id",
		store.ColMessageSize:          "m.m_size",
		store.ColExpiry:               "m.exp",
		store.ColMMSStatus:            "m.st",
		store.ColUnidentified:         "m.unidentified",
		store.ColDeliveryReceiptCount: "m.delivery_receipt_count",
		store.ColReadReceiptCount:     "m.read_receipt_count",
		store.ColMismatchedIdentities: "m.mismatched_identities",
		store.ColNetworkFailures:      "m.network_failures",
		store.ColSubscriptionID:       "m.subscription_id",
		store.ColExpiresIn:            "m.expires_in",
		store.ColExpireStarted:        "m.expire_started",
		store.ColNotified:             "m.notified",
		store.ColReactionsUnread:      "m.reactions_unread",
		store.ColHasMention:           "m.has_mention",
		store.ColQuoteID:              "m.quote_id",
		store.ColQuoteAuthor:          "m.quote_author",
		store.ColQuoteBody:            "m.quote_body",
		store.ColQuoteMissing:         "m.quote_missing",
		store.ColQuoteAttachment:      "m.quote_attachment",
		store.ColSharedContacts:       "m.shared_contacts",
		store.ColLinkPreviews:         "m.previews",
		store.ColAttachmentJSON:       "a.attachment_json",
		store.ColReactionJSON:         "r.reaction_json",
	},
}

func (p projection) sql() string {
	cols := make([]string, len(AllColumns))
	for i, c := range AllColumns {
		expr, ok := p.exprs[c]
		if !ok {
			expr = "NULL"
		}
		cols[i] = expr + " AS " + c
	}
	return "SELECT " + strings.Join(cols, ", ") + " FROM " + p.from
}

// unionSQL is the merged relation: both projections with attachments and
// reactions pre-aggregated per message, so every message yields one row.
var unionSQL = smsProjection.sql() + " UNION ALL " + mmsProjection.sql()

// Relation reads the merged view of both message stores.
type Relation struct {
	db *store.DB
}

// NewRelation returns a relation over db.
func NewRelation(db *store.DB) *Relation {
	return &Relation{db: db}
}

// SQL renders q into a statement and its arguments.
func (r *Relation) SQL(q Query) (string, []any) {
	cols := q.Columns
	if len(cols) == 0 {
		cols = AllColumns
	}
	where, args := q.Selection.where()

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(" FROM (")
	b.WriteString(unionSQL)
	b.WriteString(") AS merged")
	b.WriteString(where)
	b.WriteString(" ORDER BY ")
	b.WriteString(store.ColDateSent)
	b.WriteString(" ")
	b.WriteString(q.Order.sql())
	if q.Page.set() {
		b.WriteString(" LIMIT ? OFFSET ?")
		args = append(append([]any(nil), args...), q.Page.Limit, q.Page.Offset)
	}
	return b.String(), args
}

// Query runs q and returns the raw result set. Callers own the rows.
func (r *Relation) Query(q Query) (*sql.Rows, error) {
	stmt, args := r.SQL(q)
	rows, err := r.db.Query(stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query merged relation: %w", err)
	}
	return rows, nil
}
