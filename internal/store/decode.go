package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/matheus3301/threadstore/internal/message"
)

// binder resolves column names to positions once per decoder and remembers
// the first required column that is absent.
type binder struct {
	idx     map[string]int
	missing string
}

func newBinder(columns []string) *binder {
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := idx[c]; !dup {
			idx[c] = i
		}
	}
	return &binder{idx: idx}
}

func (b *binder) col(name string) int {
	i, ok := b.idx[name]
	if !ok && b.missing == "" {
		b.missing = name
	}
	return i
}

func (b *binder) err() error {
	if b.missing == "" {
		return nil
	}
	return &message.DecodeError{Column: b.missing, Reason: "column missing from row"}
}

// row converts driver values, keeping the first conversion failure.
type row struct {
	vals    []any
	columns []string
	err     error
}

func (r *row) fail(i int, err error) {
	if r.err != nil {
		return
	}
	name := ""
	if i >= 0 && i < len(r.columns) {
		name = r.columns[i]
	}
	r.err = &message.DecodeError{Column: name, Err: err}
}

func (r *row) value(i int) any {
	if i < 0 || i >= len(r.vals) {
		r.fail(i, fmt.Errorf("index %d out of range", i))
		return nil
	}
	return r.vals[i]
}

func (r *row) asInt64(i int) int64 {
	switch v := r.value(i).(type) {
	case nil:
		return 0
	case int64:
		return v
	case float64:
		return int64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case []byte:
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			r.fail(i, err)
		}
		return n
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			r.fail(i, err)
		}
		return n
	default:
		r.fail(i, fmt.Errorf("unexpected integer value of type %T", v))
		return 0
	}
}

func (r *row) asInt(i int) int {
	return int(r.asInt64(i))
}

func (r *row) asBool(i int) bool {
	return r.asInt64(i) != 0
}

func (r *row) asString(i int) string {
	switch v := r.value(i).(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		r.fail(i, fmt.Errorf("unexpected text value of type %T", v))
		return ""
	}
}

// commonColumns are the column positions both decoders read.
type commonColumns struct {
	id, uniqueRowID, threadID, dateSent, dateReceived     int
	address, addressDeviceID, body, read, notified        int
	unidentified, hasMention, reactionsUnread             int
	deliveryReceipts, readReceipts, mismatchedIdentities  int
	subscriptionID, expiresIn, expireStarted, reactionRaw int
}

func bindCommon(b *binder) commonColumns {
	return commonColumns{
		id:                   b.col(ColID),
		uniqueRowID:          b.col(ColUniqueRowID),
		threadID:             b.col(ColThreadID),
		dateSent:             b.col(ColDateSent),
		dateReceived:         b.col(ColDateReceived),
		address:              b.col(ColAddress),
		addressDeviceID:      b.col(ColAddressDeviceID),
		body:                 b.col(ColBody),
		read:                 b.col(ColRead),
		notified:             b.col(ColNotified),
		unidentified:         b.col(ColUnidentified),
		hasMention:           b.col(ColHasMention),
		reactionsUnread:      b.col(ColReactionsUnread),
		deliveryReceipts:     b.col(ColDeliveryReceiptCount),
		readReceipts:         b.col(ColReadReceiptCount),
		mismatchedIdentities: b.col(ColMismatchedIdentities),
		subscriptionID:       b.col(ColSubscriptionID),
		expiresIn:            b.col(ColExpiresIn),
		expireStarted:        b.col(ColExpireStarted),
		reactionRaw:          b.col(ColReactionJSON),
	}
}

func (c *commonColumns) decode(r *row, rec *message.Record) {
	rec.ID = r.asInt64(c.id)
	rec.UniqueRowID = r.asString(c.uniqueRowID)
	rec.ThreadID = r.asInt64(c.threadID)
	rec.DateSent = r.asInt64(c.dateSent)
	rec.DateReceived = r.asInt64(c.dateReceived)
	rec.Address = r.asString(c.address)
	rec.AddressDeviceID = r.asInt(c.addressDeviceID)
	rec.Body = r.asString(c.body)
	rec.Read = r.asBool(c.read)
	rec.Notified = r.asBool(c.notified)
	rec.Unidentified = r.asBool(c.unidentified)
	rec.HasMention = r.asBool(c.hasMention)
	rec.ReactionsUnread = r.asBool(c.reactionsUnread)
	rec.DeliveryReceiptCount = r.asInt(c.deliveryReceipts)
	rec.ReadReceiptCount = r.asInt(c.readReceipts)
	rec.MismatchedIdentities = r.asString(c.mismatchedIdentities)
	rec.SubscriptionID = r.asInt(c.subscriptionID)
	rec.ExpiresIn = r.asInt64(c.expiresIn)
	rec.ExpireStarted = r.asInt64(c.expireStarted)

	reactions, err := parseReactions(r.asString(c.reactionRaw))
	if err != nil {
		r.fail(c.reactionRaw, err)
	}
	rec.Reactions = reactions
}

// SMSDecoder turns merged-relation rows tagged as short messages into records.
type SMSDecoder struct {
	columns []string
	common  commonColumns

	typ, status, subject int
}

// NewSMSDecoder binds a decoder to the given column layout.
func NewSMSDecoder(columns []string) (*SMSDecoder, error) {
	b := newBinder(columns)
	d := &SMSDecoder{
		columns: columns,
		common:  bindCommon(b),
		typ:     b.col(ColType),
		status:  b.col(ColStatus),
		subject: b.col(ColSubject),
	}
	if err := b.err(); err != nil {
		return nil, err
	}
	return d, nil
}

// Decode converts one scanned row.
func (d *SMSDecoder) Decode(vals []any) (*message.Record, error) {
	r := &row{vals: vals, columns: d.columns}
	rec := &message.Record{Transport: message.ShortMessage}
	d.common.decode(r, rec)
	rec.SMS = &message.SMSFields{
		Type:    r.asInt64(d.typ),
		Status:  r.asInt64(d.status),
		Subject: r.asString(d.subject),
	}
	rec.IsOutgoing = message.IsOutgoingType(rec.SMS.Type)
	if r.err != nil {
		return nil, r.err
	}
	return rec, nil
}

// MMSDecoder turns merged-relation rows tagged as multimedia messages into
// records, optionally resolving the quoted message reference.
type MMSDecoder struct {
	columns      []string
	common       commonColumns
	resolveQuote bool

	box, mType, partCount, contentLocation, transactionID int
	messageSize, expiry, status, networkFailures          int
	sharedContacts, linkPreviews, attachmentRaw           int
	quoteID, quoteAuthor, quoteBody, quoteMissing         int
}

// NewMMSDecoder binds a decoder to the given column layout.
func NewMMSDecoder(columns []string, resolveQuote bool) (*MMSDecoder, error) {
	b := newBinder(columns)
	d := &MMSDecoder{
		columns:         columns,
		common:          bindCommon(b),
		resolveQuote:    resolveQuote,
		box:             b.col(ColMessageBox),
		mType:           b.col(ColMessageType),
		partCount:       b.col(ColPartCount),
		contentLocation: b.col(ColContentLocation),
		transactionID:   b.col(ColTransactionID),
		messageSize:     b.col(ColMessageSize),
		expiry:          b.col(ColExpiry),
		status:          b.col(ColMMSStatus),
		networkFailures: b.col(ColNetworkFailures),
		sharedContacts:  b.col(ColSharedContacts),
		linkPreviews:    b.col(ColLinkPreviews),
		attachmentRaw:   b.col(ColAttachmentJSON),
		quoteID:         b.col(ColQuoteID),
		quoteAuthor:     b.col(ColQuoteAuthor),
		quoteBody:       b.col(ColQuoteBody),
		quoteMissing:    b.col(ColQuoteMissing),
	}
	if err := b.err(); err != nil {
		return nil, err
	}
	return d, nil
}

// Decode converts one scanned row.
func (d *MMSDecoder) Decode(vals []any) (*message.Record, error) {
	r := &row{vals: vals, columns: d.columns}
	rec := &message.Record{Transport: message.MultimediaMessage}
	d.common.decode(r, rec)
	rec.MMS = &message.MMSFields{
		MessageBox:      r.asInt64(d.box),
		MessageType:     r.asInt64(d.mType),
		PartCount:       r.asInt(d.partCount),
		ContentLocation: r.asString(d.contentLocation),
		TransactionID:   r.asString(d.transactionID),
		MessageSize:     r.asInt64(d.messageSize),
		Expiry:          r.asInt64(d.expiry),
		Status:          r.asInt64(d.status),
		NetworkFailures: r.asString(d.networkFailures),
		SharedContacts:  r.asString(d.sharedContacts),
		LinkPreviews:    r.asString(d.linkPreviews),
	}
	rec.IsOutgoing = message.IsOutgoingType(rec.MMS.MessageBox)

	parts, err := parseAttachments(r.asString(d.attachmentRaw))
	if err != nil {
		r.fail(d.attachmentRaw, err)
	}
	var quoted []message.Attachment
	for _, p := range parts {
		if p.Quote {
			quoted = append(quoted, p)
			continue
		}
		rec.Attachments = append(rec.Attachments, p)
	}

	if d.resolveQuote {
		quoteID := r.asInt64(d.quoteID)
		author := r.asString(d.quoteAuthor)
		if quoteID > 0 && author != "" {
			rec.Quote = &message.Quote{
				ID:          quoteID,
				Author:      author,
				Body:        r.asString(d.quoteBody),
				Missing:     r.asBool(d.quoteMissing),
				Attachments: quoted,
			}
		}
	}

	if r.err != nil {
		return nil, r.err
	}
	return rec, nil
}

type attachmentJSON struct {
	RowID              *int64 `json:"_id"`
	UniqueID           int64  `json:"unique_id"`
	MessageID          int64  `json:"mid"`
	Size               int64  `json:"data_size"`
	FileName           string `json:"file_name"`
	DataPath           string `json:"_data"`
	Thumbnail          string `json:"thumbnail"`
	ContentType        string `json:"ct"`
	ContentLocation    string `json:"cl"`
	FastPreflightID    string `json:"fast_preflight_id"`
	VoiceNote          int    `json:"voice_note"`
	Width              int    `json:"width"`
	Height             int    `json:"height"`
	Quote              int    `json:"quote"`
	ContentDisposition string `json:"cd"`
	Name               string `json:"name"`
	TransferState      int    `json:"pending_push"`
	Caption            string `json:"caption"`
	StickerPackID      string `json:"sticker_pack_id"`
	StickerPackKey     string `json:"sticker_pack_key"`
	StickerID          int    `json:"sticker_id"`
}

func parseAttachments(raw string) ([]message.Attachment, error) {
	if raw == "" {
		return nil, nil
	}
	var items []attachmentJSON
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("attachment json: %w", err)
	}
	out := make([]message.Attachment, 0, len(items))
	for _, a := range items {
		// An outer join with no match aggregates to a single all-null entry.
		if a.RowID == nil {
			continue
		}
		out = append(out, message.Attachment{
			RowID:              *a.RowID,
			UniqueID:           a.UniqueID,
			MessageID:          a.MessageID,
			Size:               a.Size,
			FileName:           a.FileName,
			DataPath:           a.DataPath,
			Thumbnail:          a.Thumbnail,
			ContentType:        a.ContentType,
			ContentLocation:    a.ContentLocation,
			FastPreflightID:    a.FastPreflightID,
			VoiceNote:          a.VoiceNote != 0,
			Width:              a.Width,
			Height:             a.Height,
			Quote:              a.Quote != 0,
			ContentDisposition: a.ContentDisposition,
			Name:               a.Name,
			TransferState:      a.TransferState,
			Caption:            a.Caption,
			StickerPackID:      a.StickerPackID,
			StickerPackKey:     a.StickerPackKey,
			StickerID:          a.StickerID,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RowID < out[j].RowID })
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

type reactionJSON struct {
	RowID        *int64 `json:"reaction_id"`
	MessageID    int64  `json:"message_id"`
	IsMMS        int    `json:"is_mms"`
	Author       string `json:"author_id"`
	Emoji        string `json:"emoji"`
	ServerID     string `json:"server_id"`
	Count        int64  `json:"count"`
	SortID       int64  `json:"sort_id"`
	DateSent     int64  `json:"date_sent"`
	DateReceived int64  `json:"date_received"`
}

func parseReactions(raw string) ([]message.Reaction, error) {
	if raw == "" {
		return nil, nil
	}
	var items []reactionJSON
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("reaction json: %w", err)
	}
	out := make([]message.Reaction, 0, len(items))
	for _, r := range items {
		if r.RowID == nil {
			continue
		}
		out = append(out, message.Reaction{
			RowID:        *r.RowID,
			MessageID:    r.MessageID,
			IsMMS:        r.IsMMS != 0,
			Author:       r.Author,
			Emoji:        r.Emoji,
			ServerID:     r.ServerID,
			Count:        r.Count,
			SortID:       r.SortID,
			DateSent:     r.DateSent,
			DateReceived: r.DateReceived,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortID != out[j].SortID {
			return out[i].SortID < out[j].SortID
		}
		return out[i].RowID < out[j].RowID
	})
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
