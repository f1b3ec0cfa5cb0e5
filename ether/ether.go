package ether

import "fmt"

// Reserved metadata keys (§3). Producers SHOULD use these exact keys when
// they carry the corresponding concept; codecs never enforce their
// presence.
const (
	MetaTraceID    = "trace_id"
	MetaProducer   = "producer"
	MetaCreatedAt  = "created_at"
	MetaLineage    = "lineage"
)

// Ether is the in-memory representation of a self-describing data envelope
// (§3). It is produced by an application, handed to a codec for encoding,
// and is what a codec hands back to an application after decoding.
type Ether struct {
	Kind          string           // required
	SchemaVersion uint32           // required, >= 1
	Payload       map[string]Value // required, may be empty
	Metadata      map[string]Value // required, may be empty
	ExtraFields   map[string]Value // optional
	Attachments   []Attachment     // optional, ordered
}

// Validate checks the structural invariants of §3 that every codec must
// enforce before/after (de)serialization: required fields present, and no
// attachment carrying both an inline body and a non-inline URI.
func (e *Ether) Validate() error {
	if e.Kind == "" {
		return fmt.Errorf("ether: kind is required")
	}
	if e.SchemaVersion < 1 {
		return fmt.Errorf("ether: schema_version must be >= 1, got %d", e.SchemaVersion)
	}
	if e.Payload == nil {
		return fmt.Errorf("ether: payload map is required (may be empty, not nil)")
	}
	if e.Metadata == nil {
		return fmt.Errorf("ether: metadata map is required (may be empty, not nil)")
	}
	for i, a := range e.Attachments {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("ether: attachment[%d]: %w", i, err)
		}
	}
	return nil
}

// Attachment is an external or inline binary blob referenced by an Ether
// (§3, §9 "Attachments by URI vs inline"). URI and InlineBytes are mutually
// exclusive; Validate enforces that.
type Attachment struct {
	ID          string
	URI         string // non-empty iff not inline; e.g. "shm://ns/name#off,size"
	InlineBytes []byte // non-nil iff inline (URI == "" or URI == "inline")
	MediaType   string
	Codec       string // registry codec name
	Shape       []uint32
	DType       string
	SizeBytes   uint64
}

// IsInline reports whether the attachment carries its bytes inline rather
// than by URI reference.
func (a Attachment) IsInline() bool {
	return a.URI == "" || a.URI == "inline"
}

// Validate enforces the URI/inline exclusivity invariant.
func (a Attachment) Validate() error {
	hasURI := a.URI != "" && a.URI != "inline"
	hasInline := a.InlineBytes != nil
	if hasURI && hasInline {
		return fmt.Errorf("attachment %q: carries both a uri and inline_bytes", a.ID)
	}
	if !hasURI && !hasInline {
		return fmt.Errorf("attachment %q: carries neither a uri nor inline_bytes", a.ID)
	}
	return nil
}
