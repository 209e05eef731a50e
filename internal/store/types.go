package store

// Physical table names.
const (
	SMSTable      = "sms"
	MMSTable      = "mms"
	PartTable     = "part"
	ReactionTable = "reaction"
)

// Column names of the merged relation. Decoders resolve these by name, so
// any projection that carries them can be decoded.
const (
	ColID                   = "_id"
	ColUniqueRowID          = "unique_row_id"
	ColDateSent             = "normalized_date_sent"
	ColDateReceived         = "normalized_date_received"
	ColTransport            = "transport_type"
	ColThreadID             = "thread_id"
	ColAddress              = "address"
	ColAddressDeviceID      = "address_device_id"
	ColBody                 = "body"
	ColRead                 = "read"
	ColType                 = "type"
	ColSubject              = "subject"
	ColStatus               = "status"
	ColMessageBox           = "msg_box"
	ColMessageType          = "m_type"
	ColPartCount            = "part_count"
	ColContentLocation      = "ct_l"
	ColTransactionID        = "tr_id"
	ColMessageSize          = "m_size"
	ColExpiry               = "exp"
	ColMMSStatus            = "st"
	ColUnidentified         = "unidentified"
	ColDeliveryReceiptCount = "delivery_receipt_count"
	ColReadReceiptCount     = "read_receipt_count"
	ColMismatchedIdentities = "mismatched_identities"
	ColNetworkFailures      = "network_failures"
	ColSubscriptionID       = "subscription_id"
	ColExpiresIn            = "expires_in"
	ColExpireStarted        = "expire_started"
	ColNotified             = "notified"
	ColReactionsUnread      = "reactions_unread"
	ColHasMention           = "has_mention"
	ColQuoteID              = "quote_id"
	ColQuoteAuthor          = "quote_author"
	ColQuoteBody            = "quote_body"
	ColQuoteMissing         = "quote_missing"
	ColQuoteAttachment      = "quote_attachment"
	ColSharedContacts       = "shared_contacts"
	ColLinkPreviews         = "link_previews"
	ColAttachmentJSON       = "attachment_json"
	ColReactionJSON         = "reaction_json"
)

// SMSRow is a short message as written by its owning store.
type SMSRow struct {
	ThreadID        int64  `json:"thread_id,omitempty"`
	Address         string `json:"address,omitempty"`
	AddressDeviceID int    `json:"address_device_id,omitempty"`
	DateSent        int64  `json:"date_sent,omitempty"`
	DateReceived    int64  `json:"date_received,omitempty"`
	Type            int64  `json:"type,omitempty"`
	Status          int64  `json:"status,omitempty"`
	Subject         string `json:"subject,omitempty"`
	Body            string `json:"body,omitempty"`
	Read            bool   `json:"read,omitempty"`
	Notified        bool   `json:"notified,omitempty"`
	Unidentified    bool   `json:"unidentified,omitempty"`
	HasMention      bool   `json:"has_mention,omitempty"`
	SubscriptionID  int    `json:"subscription_id,omitempty"`
	ExpiresIn       int64  `json:"expires_in,omitempty"`
	ExpireStarted   int64  `json:"expire_started,omitempty"`
}

// MMSRow is a multimedia message as written by its owning store.
type MMSRow struct {
	ThreadID        int64  `json:"thread_id,omitempty"`
	Address         string `json:"address,omitempty"`
	AddressDeviceID int    `json:"address_device_id,omitempty"`
	DateSent        int64  `json:"date_sent,omitempty"`
	DateReceived    int64  `json:"date_received,omitempty"`
	MessageBox      int64  `json:"message_box,omitempty"`
	MessageType     int64  `json:"message_type,omitempty"`
	Body            string `json:"body,omitempty"`
	PartCount       int    `json:"part_count,omitempty"`
	ContentLocation string `json:"content_location,omitempty"`
	TransactionID   string `json:"transaction_id,omitempty"`
	MessageSize     int64  `json:"message_size,omitempty"`
	Expiry          int64  `json:"expiry,omitempty"`
	Status          int64  `json:"status,omitempty"`
	Read            bool   `json:"read,omitempty"`
	Notified        bool   `json:"notified,omitempty"`
	Unidentified    bool   `json:"unidentified,omitempty"`
	HasMention      bool   `json:"has_mention,omitempty"`
	SubscriptionID  int    `json:"subscription_id,omitempty"`
	ExpiresIn       int64  `json:"expires_in,omitempty"`
	ExpireStarted   int64  `json:"expire_started,omitempty"`
	NetworkFailures string `json:"network_failures,omitempty"`
	SharedContacts  string `json:"shared_contacts,omitempty"`
	LinkPreviews    string `json:"link_previews,omitempty"`

	QuoteID      int64  `json:"quote_id,omitempty"`
	QuoteAuthor  string `json:"quote_author,omitempty"`
	QuoteBody    string `json:"quote_body,omitempty"`
	QuoteMissing bool   `json:"quote_missing,omitempty"`
}

// PartRow is one attachment of a multimedia message.
type PartRow struct {
	MessageID          int64  `json:"message_id,omitempty"`
	UniqueID           int64  `json:"unique_id,omitempty"`
	ContentType        string `json:"content_type,omitempty"`
	Name               string `json:"name,omitempty"`
	ContentDisposition string `json:"content_disposition,omitempty"`
	ContentLocation    string `json:"content_location,omitempty"`
	TransferState      int    `json:"transfer_state,omitempty"`
	DataPath           string `json:"data_path,omitempty"`
	Size               int64  `json:"size,omitempty"`
	FileName           string `json:"file_name,omitempty"`
	Thumbnail          string `json:"thumbnail,omitempty"`
	FastPreflightID    string `json:"fast_preflight_id,omitempty"`
	VoiceNote          bool   `json:"voice_note,omitempty"`
	Width              int    `json:"width,omitempty"`
	Height             int    `json:"height,omitempty"`
	Quote              bool   `json:"quote,omitempty"`
	Caption            string `json:"caption,omitempty"`
	StickerPackID      string `json:"sticker_pack_id,omitempty"`
	StickerPackKey     string `json:"sticker_pack_key,omitempty"`
	StickerID          int    `json:"sticker_id,omitempty"`
}

// ReactionRow is one author's emoji on a message.
type ReactionRow struct {
	MessageID    int64  `json:"message_id,omitempty"`
	IsMMS        bool   `json:"is_mms,omitempty"`
	Author       string `json:"author,omitempty"`
	Emoji        string `json:"emoji,omitempty"`
	ServerID     string `json:"server_id,omitempty"`
	Count        int64  `json:"count,omitempty"`
	SortID       int64  `json:"sort_id,omitempty"`
	DateSent     int64  `json:"date_sent,omitempty"`
	DateReceived int64  `json:"date_received,omitempty"`
}
