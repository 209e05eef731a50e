package message

import (
	"errors"
	"testing"
)

func TestIsOutgoingType(t *testing.T) {
	tests := []struct {
		name string
		typ  int64
		want bool
	}{
		{"sent", BaseSentType, true},
		{"sent with flags", BaseSentType | SecureMessageBit | PushMessageBit, true},
		{"sending", BaseSendingType, true},
		{"failed", BaseSentFailedType | SecureMessageBit, true},
		{"outgoing call", OutgoingCallType, true},
		{"inbox", BaseInboxType, false},
		{"inbox with flags", BaseInboxType | SecureMessageBit, false},
		{"missed call", MissedCallType, false},
		{"zero", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsOutgoingType(tt.typ); got != tt.want {
				t.Errorf("IsOutgoingType(%#x) = %v, want %v", tt.typ, got, tt.want)
			}
		})
	}
}

func TestParseTransport(t *testing.T) {
	for _, tr := range []Transport{ShortMessage, MultimediaMessage} {
		got, err := ParseTransport(tr.Tag())
		if err != nil {
			t.Fatalf("ParseTransport(%q) error = %v", tr.Tag(), err)
		}
		if got != tr {
			t.Errorf("ParseTransport(%q) = %v, want %v", tr.Tag(), got, tr)
		}
	}

	_, err := ParseTransport("rcs")
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("ParseTransport(rcs) error = %v, want DecodeError", err)
	}
}

func TestUniqueRowID(t *testing.T) {
	if got := UniqueRowID(ShortMessage, 7, 1000); got != "SMS::7::1000" {
		t.Errorf("sms id = %q", got)
	}
	if got := UniqueRowID(MultimediaMessage, 7, 1000); got != "MMS::7::1000" {
		t.Errorf("mms id = %q", got)
	}
}

func TestLocalIdentity(t *testing.T) {
	id := NewLocalIdentity("05self", " ", "")
	if !id.IsLocal("05self") {
		t.Error("expected 05self to be local")
	}
	if id.IsLocal("05bob") {
		t.Error("05bob should not be local")
	}
	if id.IsLocal("") {
		t.Error("empty address should not be local")
	}

	var nilID *LocalIdentity
	if nilID.IsLocal("05self") {
		t.Error("nil identity should recognise nothing")
	}
}

func TestIsGroupAddress(t *testing.T) {
	if !IsGroupAddress("__textsecure_group__!abcd") {
		t.Error("closed group not detected")
	}
	if !IsGroupAddress("__loki_public_chat_group__!chat.example.org.1") {
		t.Error("open group not detected")
	}
	if IsGroupAddress("05abcdef") {
		t.Error("contact detected as group")
	}
}

func TestRecordType(t *testing.T) {
	sms := &Record{Transport: ShortMessage, SMS: &SMSFields{Type: BaseSentType}}
	if sms.Type() != BaseSentType {
		t.Errorf("sms type = %d", sms.Type())
	}
	mms := &Record{Transport: MultimediaMessage, MMS: &MMSFields{MessageBox: BaseInboxType}}
	if mms.Type() != BaseInboxType {
		t.Errorf("mms type = %d", mms.Type())
	}
}
