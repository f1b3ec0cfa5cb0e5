package schema

import "testing"

func TestNewNSHashDeterministic(t *testing.T) {
	a := NewNSHash("agents.chat")
	b := NewNSHash("agents.chat")
	if a != b {
		t.Fatal("FNV-1a hash must be deterministic for the same input")
	}
	if a == NewNSHash("agents.other") {
		t.Fatal("different namespaces should not collide in this small test set")
	}
}

func TestKeyEqual(t *testing.T) {
	k1 := New("agents.chat", "message", 1, 0, []byte(`{"a":1}`))
	k2 := New("agents.chat", "message", 1, 0, []byte(`{"a":1}`))
	if !k1.Equal(k2) {
		t.Fatal("identical construction should produce equal keys")
	}
	k3 := New("agents.chat", "message", 1, 0, []byte(`{"a":2}`))
	if k1.Equal(k3) {
		t.Fatal("different schema documents must hash to different Hash128")
	}
}

func TestCompatibleWithIgnoresHash128AndMinorEquality(t *testing.T) {
	k := New("agents.chat", "message", 1, 3, []byte(`{"a":1}`))
	other := New("agents.chat", "message", 1, 7, []byte(`{"a":99}`))
	if !k.CompatibleWith(other, 0, 5) {
		t.Fatal("same (ns,kind,major) with minor in range should be compatible regardless of hash128/minor equality")
	}
	if k.CompatibleWith(other, 4, 5) {
		t.Fatal("minor below range must not be compatible")
	}
}

func TestCompatibleWithRejectsDifferentMajor(t *testing.T) {
	k := New("agents.chat", "message", 1, 0, nil)
	other := New("agents.chat", "message", 2, 0, nil)
	if k.CompatibleWith(other, 0, 100) {
		t.Fatal("different major versions must never be compatible")
	}
}

func TestAcceptRangeAccepts(t *testing.T) {
	k := New("agents.chat", "message", 1, 2, []byte(`{}`))
	r := AcceptRange{NSHash: k.NSHash, KindID: k.KindID, Major: 1, MinMinor: 0, MaxMinor: 5}
	if !r.Accepts(k) {
		t.Fatal("expect key within range to be accepted")
	}
	r.MaxMinor = 1
	if r.Accepts(k) {
		t.Fatal("expect key above range to be rejected")
	}
}

func TestIsZero(t *testing.T) {
	var k Key
	if !k.IsZero() {
		t.Fatal("zero-value Key must report IsZero")
	}
	k2 := New("ns", "kind", 1, 0, []byte(`{}`))
	if k2.IsZero() {
		t.Fatal("constructed key must not report IsZero")
	}
}
