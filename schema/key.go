// Package schema defines SchemaKey, the composite identity of a semantic
// schema carried in every data frame header.
//
// A SchemaKey ties a frame's body to a specific (namespace, kind, version,
// content-hash) tuple so that a receiver can reject frames it does not
// understand before ever touching the codec layer.
package schema

import (
	"crypto/sha256"
	"encoding/json"
	"hash/fnv"
)

// Key is the five-field composite identity of a schema (§3).
//
// Equality compares all five fields. Compatibility (see CompatibleWith)
// compares only (NSHash, KindID, Major) and orders on Minor.
type Key struct {
	NSHash  uint32   // FNV-1a of the namespace string
	KindID  uint32   // FNV-1a of the kind string
	Major   uint16   // Breaking-change version
	Minor   uint16   // Additive-change version
	Hash128 [16]byte // first 128 bits of SHA-256 over canonical schema JSON
}

// Zero is the zero-value SchemaKey, used on control frames where no
// schema applies.
var Zero Key

// IsZero reports whether k is the zero key.
func (k Key) IsZero() bool { return k == Zero }

// NewNSHash hashes a namespace string with FNV-1a, 32-bit.
func NewNSHash(namespace string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(namespace))
	return h.Sum32()
}

// NewKindID hashes a kind string with FNV-1a, 32-bit.
func NewKindID(kind string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(kind))
	return h.Sum32()
}

// Hash128FromSchema computes the Hash128 field: the first 128 bits of
// SHA-256 over the canonical JSON encoding of an arbitrary schema document.
// Callers are expected to pass a value whose JSON encoding is already in
// canonical field order (e.g. an ordered schema description); json.Marshal
// on a map is not canonical and should not be used here directly.
func Hash128FromSchema(canonicalSchemaJSON []byte) [16]byte {
	sum := sha256.Sum256(canonicalSchemaJSON)
	var out [16]byte
	copy(out[:], sum[:16])
	return out
}

// New builds a Key from a namespace, kind, version pair and a canonical
// schema document (see Hash128FromSchema).
func New(namespace, kind string, major, minor uint16, canonicalSchemaJSON []byte) Key {
	return Key{
		NSHash:  NewNSHash(namespace),
		KindID:  NewKindID(kind),
		Major:   major,
		Minor:   minor,
		Hash128: Hash128FromSchema(canonicalSchemaJSON),
	}
}

// Equal reports whether two keys are identical in all five fields.
func (k Key) Equal(other Key) bool {
	return k == other
}

// CompatibleWith reports whether k can be accepted by a peer that declared
// acceptance of [other.Minor range] under the same (NSHash, KindID, Major).
// Per §4.5, compatibility ignores Hash128 and Minor equality, comparing only
// the (ns_hash, kind_id, major) triple and ordering Minor against the given
// [minMinor, maxMinor] range.
func (k Key) CompatibleWith(other Key, minMinor, maxMinor uint16) bool {
	if k.NSHash != other.NSHash || k.KindID != other.KindID || k.Major != other.Major {
		return false
	}
	return k.Minor >= minMinor && k.Minor <= maxMinor
}

// AcceptRange is one entry of a Capability record's accepted/emitted schema
// ranges (§3).
type AcceptRange struct {
	NSHash   uint32
	KindID   uint32
	Major    uint16
	MinMinor uint16
	MaxMinor uint16
}

// Accepts reports whether k falls within r.
func (r AcceptRange) Accepts(k Key) bool {
	return k.CompatibleWith(Key{NSHash: r.NSHash, KindID: r.KindID, Major: r.Major}, r.MinMinor, r.MaxMinor)
}

// jsonAcceptRange is the JSON shape of an AcceptRange, used by its
// MarshalJSON/UnmarshalJSON methods.
type jsonAcceptRange struct {
	NSHash   uint32 `json:"ns_hash"`
	KindID   uint32 `json:"kind_id"`
	Major    uint16 `json:"major"`
	MinMinor uint16 `json:"min_minor"`
	MaxMinor uint16 `json:"max_minor"`
}

func (r AcceptRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonAcceptRange{r.NSHash, r.KindID, r.Major, r.MinMinor, r.MaxMinor})
}

func (r *AcceptRange) UnmarshalJSON(b []byte) error {
	var j jsonAcceptRange
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	*r = AcceptRange{j.NSHash, j.KindID, j.Major, j.MinMinor, j.MaxMinor}
	return nil
}
