package ether

import "testing"

func validEther() *Ether {
	return &Ether{
		Kind:          "demo",
		SchemaVersion: 1,
		Payload:       map[string]Value{},
		Metadata:      map[string]Value{},
	}
}

func TestValidateRequiresKind(t *testing.T) {
	e := validEther()
	e.Kind = ""
	if err := e.Validate(); err == nil {
		t.Fatal("expect error for empty kind")
	}
}

func TestValidateRequiresSchemaVersion(t *testing.T) {
	e := validEther()
	e.SchemaVersion = 0
	if err := e.Validate(); err == nil {
		t.Fatal("expect error for schema_version 0")
	}
}

func TestValidateRequiresNonNilMaps(t *testing.T) {
	e := validEther()
	e.Payload = nil
	if err := e.Validate(); err == nil {
		t.Fatal("expect error for nil payload map")
	}
}

func TestAttachmentInlineVsURI(t *testing.T) {
	a := Attachment{ID: "a1", URI: "shm://ns/x", InlineBytes: []byte("x")}
	if err := a.Validate(); err == nil {
		t.Fatal("expect error: uri and inline_bytes both set")
	}

	b := Attachment{ID: "b1"}
	if err := b.Validate(); err == nil {
		t.Fatal("expect error: neither uri nor inline_bytes set")
	}

	c := Attachment{ID: "c1", InlineBytes: []byte("x")}
	if err := c.Validate(); err != nil {
		t.Fatalf("expect inline-only attachment to validate, got %v", err)
	}
	if !c.IsInline() {
		t.Fatal("expect IsInline true")
	}

	d := Attachment{ID: "d1", URI: "shm://ns/x"}
	if err := d.Validate(); err != nil {
		t.Fatalf("expect uri-only attachment to validate, got %v", err)
	}
	if d.IsInline() {
		t.Fatal("expect IsInline false for a uri attachment")
	}
}
