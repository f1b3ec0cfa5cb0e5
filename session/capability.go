package session

import (
	"github.com/maida-ai/xcp"
	"github.com/maida-ai/xcp/ether"
	"github.com/maida-ai/xcp/schema"
)

// Capability is a peer-advertised capability record (§3), exchanged in
// HELLO/CAPS control frames.
type Capability struct {
	Codecs        []xcp.CodecID
	MaxFrameBytes uint32
	Accepted      []schema.AcceptRange
	Emitted       []schema.AcceptRange
	SharedMem     bool
}

// codecSet returns c.Codecs as a membership set.
func (c Capability) codecSet() map[xcp.CodecID]bool {
	m := make(map[xcp.CodecID]bool, len(c.Codecs))
	for _, id := range c.Codecs {
		m[id] = true
	}
	return m
}

// toEther encodes a Capability as a control-frame Ether body (kind
// "capability"), so it can travel through the normal codec layer instead of
// a bespoke control encoding.
func (c Capability) toEther() *ether.Ether {
	codecList := make([]ether.Value, len(c.Codecs))
	for i, id := range c.Codecs {
		codecList[i] = ether.Int(int64(id))
	}
	acceptedList := make([]ether.Value, len(c.Accepted))
	for i, r := range c.Accepted {
		acceptedList[i] = acceptRangeValue(r)
	}
	emittedList := make([]ether.Value, len(c.Emitted))
	for i, r := range c.Emitted {
		emittedList[i] = acceptRangeValue(r)
	}
	return &ether.Ether{
		Kind:          "capability",
		SchemaVersion: 1,
		Payload: map[string]ether.Value{
			"codecs":          ether.List(codecList),
			"max_frame_bytes": ether.Int(int64(c.MaxFrameBytes)),
			"accepted":        ether.List(acceptedList),
			"emitted":         ether.List(emittedList),
			"shared_mem":      ether.Bool(c.SharedMem),
		},
		Metadata: map[string]ether.Value{},
	}
}

func acceptRangeValue(r schema.AcceptRange) ether.Value {
	return ether.Map(map[string]ether.Value{
		"ns_hash":   ether.Int(int64(r.NSHash)),
		"kind_id":   ether.Int(int64(r.KindID)),
		"major":     ether.Int(int64(r.Major)),
		"min_minor": ether.Int(int64(r.MinMinor)),
		"max_minor": ether.Int(int64(r.MaxMinor)),
	})
}

func acceptRangeFromValue(v ether.Value) schema.AcceptRange {
	mp, _ := v.AsMap()
	get := func(k string) int64 {
		if vv, ok := mp[k]; ok {
			if i, ok := vv.AsInt(); ok {
				return i
			}
		}
		return 0
	}
	return schema.AcceptRange{
		NSHash:   uint32(get("ns_hash")),
		KindID:   uint32(get("kind_id")),
		Major:    uint16(get("major")),
		MinMinor: uint16(get("min_minor")),
		MaxMinor: uint16(get("max_minor")),
	}
}

// capabilityFromEther decodes a Capability out of a control-frame Ether.
func capabilityFromEther(e *ether.Ether) Capability {
	var c Capability
	if v, ok := e.Payload["codecs"]; ok {
		if lst, ok := v.AsList(); ok {
			for _, iv := range lst {
				if i, ok := iv.AsInt(); ok {
					c.Codecs = append(c.Codecs, xcp.CodecID(i))
				}
			}
		}
	}
	if v, ok := e.Payload["max_frame_bytes"]; ok {
		if i, ok := v.AsInt(); ok {
			c.MaxFrameBytes = uint32(i)
		}
	}
	if v, ok := e.Payload["accepted"]; ok {
		if lst, ok := v.AsList(); ok {
			for _, rv := range lst {
				c.Accepted = append(c.Accepted, acceptRangeFromValue(rv))
			}
		}
	}
	if v, ok := e.Payload["emitted"]; ok {
		if lst, ok := v.AsList(); ok {
			for _, rv := range lst {
				c.Emitted = append(c.Emitted, acceptRangeFromValue(rv))
			}
		}
	}
	if v, ok := e.Payload["shared_mem"]; ok {
		if b, ok := v.AsBool(); ok {
			c.SharedMem = b
		}
	}
	return c
}
