package audit

import (
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"
)

// Class categorizes the kind of operation an entry records.
type Class string

// Operation classes.
const (
	ClassRead  Class = "read"
	ClassWrite Class = "write"
	ClassAdmin Class = "admin"
)

// Classification is implemented by operations that know their own audit
// class. Operations that do not implement it default to ClassWrite, the
// conservative choice for retention.
type Classification interface {
	AuditClass() Class
}

// ClassOf returns the audit class of op.
func ClassOf(op any) Class {
	if c, ok := op.(Classification); ok {
		return c.AuditClass()
	}
	return ClassWrite
}

// Actor identifies who performed the audited operation.
type Actor struct {
	UserID   string `json:"user_id,omitempty"`
	ClientID string `json:"client_id,omitempty"`
	RemoteIP string `json:"remote_ip,omitempty"`
}

// Outcome records how the audited operation ended.
type Outcome struct {
	Success      bool          `json:"success"`
	StatusCode   int           `json:"status_code,omitempty"`
	ErrorCode    string        `json:"error_code,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
}

// Entry is one audit record. Entries are immutable once enqueued; the
// producer captures a snapshot and never sees the entry again.
//
// Request and Response hold snappy-compressed payloads produced by
// CompressPayload. They are stored opaque and never logged in clear.
type Entry struct {
	ID            string    `json:"id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Tenant        string    `json:"tenant"`
	Actor         Actor     `json:"actor"`
	Action        string    `json:"action"`
	Class         Class     `json:"class"`
	Outcome       Outcome   `json:"outcome"`
	Request       []byte    `json:"request,omitempty"`
	Response      []byte    `json:"response,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewEntry creates an entry with a fresh ID and the current UTC time.
// Action follows the "Entity.Verb" convention, e.g. "Order.Create".
func NewEntry(tenant, action string, actor Actor, outcome Outcome) Entry {
	return Entry{
		ID:        uuid.NewString(),
		Tenant:    tenant,
		Actor:     actor,
		Action:    action,
		Class:     ClassWrite,
		Outcome:   outcome,
		Timestamp: time.Now().UTC(),
	}
}

// CompressPayload compresses a request or response body for storage.
// Empty input yields nil so optional payloads stay absent.
func CompressPayload(p []byte) []byte {
	if len(p) == 0 {
		return nil
	}
	return snappy.Encode(nil, p)
}

// DecompressPayload reverses CompressPayload.
func DecompressPayload(p []byte) ([]byte, error) {
	if len(p) == 0 {
		return nil, nil
	}
	return snappy.Decode(nil, p)
}
