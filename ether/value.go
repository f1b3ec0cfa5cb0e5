// Package ether defines Ether, the self-describing data envelope exchanged
// between XCP peers, along with the tagged Value type its payload and
// metadata maps hold.
//
// Ether is codec-agnostic (§4.2): the envelope here is the in-memory shape
// every codec encodes from and decodes into. Value is a sum type rather than
// `any` so that a decoder can round-trip integer-vs-float precision and raw
// binary blobs without guessing from JSON's native number type.
package ether

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Tag identifies which arm of Value is populated.
type Tag uint8

const (
	TagNull Tag = iota
	TagBool
	TagInt
	TagFloat
	TagString
	TagBytes
	TagList
	TagMap
)

// Value is a tagged union over the scalar and composite kinds a codec must
// be able to represent losslessly. Exactly one field is meaningful for a
// given Tag; constructors (Bool, Int, ...) are the intended way to build one.
type Value struct {
	tag Tag
	b   bool
	i   int64
	f   float64
	s   string
	raw []byte
	lst []Value
	mp  map[string]Value
}

func Null() Value                  { return Value{tag: TagNull} }
func Bool(v bool) Value            { return Value{tag: TagBool, b: v} }
func Int(v int64) Value            { return Value{tag: TagInt, i: v} }
func Float(v float64) Value        { return Value{tag: TagFloat, f: v} }
func String(v string) Value        { return Value{tag: TagString, s: v} }
func Bytes(v []byte) Value         { return Value{tag: TagBytes, raw: append([]byte(nil), v...)} }
func List(v []Value) Value         { return Value{tag: TagList, lst: v} }
func Map(v map[string]Value) Value { return Value{tag: TagMap, mp: v} }

func (v Value) Tag() Tag { return v.tag }

func (v Value) AsBool() (bool, bool)            { return v.b, v.tag == TagBool }
func (v Value) AsInt() (int64, bool)            { return v.i, v.tag == TagInt }
func (v Value) AsFloat() (float64, bool)        { return v.f, v.tag == TagFloat }
func (v Value) AsString() (string, bool)        { return v.s, v.tag == TagString }
func (v Value) AsBytes() ([]byte, bool)         { return v.raw, v.tag == TagBytes }
func (v Value) AsList() ([]Value, bool)         { return v.lst, v.tag == TagList }
func (v Value) AsMap() (map[string]Value, bool) { return v.mp, v.tag == TagMap }

// Equal compares two values field-by-field for the populated tag only.
func (v Value) Equal(o Value) bool {
	if v.tag != o.tag {
		return false
	}
	switch v.tag {
	case TagNull:
		return true
	case TagBool:
		return v.b == o.b
	case TagInt:
		return v.i == o.i
	case TagFloat:
		return v.f == o.f
	case TagString:
		return v.s == o.s
	case TagBytes:
		if len(v.raw) != len(o.raw) {
			return false
		}
		for i := range v.raw {
			if v.raw[i] != o.raw[i] {
				return false
			}
		}
		return true
	case TagList:
		if len(v.lst) != len(o.lst) {
			return false
		}
		for i := range v.lst {
			if !v.lst[i].Equal(o.lst[i]) {
				return false
			}
		}
		return true
	case TagMap:
		if len(v.mp) != len(o.mp) {
			return false
		}
		for k, vv := range v.mp {
			ov, ok := o.mp[k]
			if !ok || !vv.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// jsonValue is the on-the-wire JSON shape of a tagged Value: an explicit
// "t" discriminator plus a "v" payload, per the canonical JSON rule that
// binary blobs must be base64 (§4.2) rather than relying on JSON's untyped
// number/string representation to recover int-vs-float.
type jsonValue struct {
	T string          `json:"t"`
	V json.RawMessage `json:"v,omitempty"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.tag {
	case TagNull:
		return json.Marshal(jsonValue{T: "null"})
	case TagBool:
		raw, _ := json.Marshal(v.b)
		return json.Marshal(jsonValue{T: "bool", V: raw})
	case TagInt:
		raw, _ := json.Marshal(v.i)
		return json.Marshal(jsonValue{T: "int", V: raw})
	case TagFloat:
		raw, _ := json.Marshal(v.f)
		return json.Marshal(jsonValue{T: "float", V: raw})
	case TagString:
		raw, _ := json.Marshal(v.s)
		return json.Marshal(jsonValue{T: "string", V: raw})
	case TagBytes:
		raw, _ := json.Marshal(base64.StdEncoding.EncodeToString(v.raw))
		return json.Marshal(jsonValue{T: "bytes", V: raw})
	case TagList:
		raw, err := json.Marshal(v.lst)
		if err != nil {
			return nil, err
		}
		return json.Marshal(jsonValue{T: "list", V: raw})
	case TagMap:
		raw, err := json.Marshal(v.mp)
		if err != nil {
			return nil, err
		}
		return json.Marshal(jsonValue{T: "map", V: raw})
	}
	return nil, fmt.Errorf("ether: unknown value tag %d", v.tag)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var jv jsonValue
	if err := json.Unmarshal(data, &jv); err != nil {
		return err
	}
	switch jv.T {
	case "null", "":
		*v = Null()
	case "bool":
		var b bool
		if err := json.Unmarshal(jv.V, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case "int":
		var i int64
		if err := json.Unmarshal(jv.V, &i); err != nil {
			return err
		}
		*v = Int(i)
	case "float":
		var f float64
		if err := json.Unmarshal(jv.V, &f); err != nil {
			return err
		}
		*v = Float(f)
	case "string":
		var s string
		if err := json.Unmarshal(jv.V, &s); err != nil {
			return err
		}
		*v = String(s)
	case "bytes":
		var s string
		if err := json.Unmarshal(jv.V, &s); err != nil {
			return err
		}
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return fmt.Errorf("ether: bad base64 bytes value: %w", err)
		}
		*v = Bytes(raw)
	case "list":
		var lst []Value
		if err := json.Unmarshal(jv.V, &lst); err != nil {
			return err
		}
		*v = List(lst)
	case "map":
		var mp map[string]Value
		if err := json.Unmarshal(jv.V, &mp); err != nil {
			return err
		}
		*v = Map(mp)
	default:
		return fmt.Errorf("ether: unknown value tag %q", jv.T)
	}
	return nil
}
