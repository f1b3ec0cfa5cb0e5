package codec

import (
	"encoding/json"
	"fmt"

	"github.com/maida-ai/xcp"
	"github.com/maida-ai/xcp/ether"
)

// kindCodecHints maps a conventional Ether.Kind value to the codec ID it is
// only representable under. Tensor/mixed-latent/Arrow/DLPack kinds carry
// binary layouts no other codec can reproduce; anything else is assumed
// representable under both JSON and BINARY_STRUCT and falls through to the
// size-based tie-break (§4.2).
var kindCodecHints = map[string]xcp.CodecID{
	"tensor_f32":    xcp.CodecTensorF32,
	"tensor_f16":    xcp.CodecTensorF16,
	"tensor_int8":   xcp.CodecTensorInt8,
	"mixed_latent":  xcp.CodecMixedLatent,
	"arrow_table":   xcp.CodecArrowIPC,
	"dlpack_tensor": xcp.CodecDLPack,
}

// estimatedSize gives a cheap proxy for "encoded payload size" used by the
// Auto tie-break, without paying for a full codec-specific encode: the JSON
// size of the payload map (metadata is not counted), which over- or under-estimates other codecs'
// output by roughly a constant factor but is stable for threshold
// comparisons.
func estimatedSize(e *ether.Ether) int {
	b, err := json.Marshal(e.Payload)
	if err != nil {
		return 0
	}
	return len(b)
}

// Select implements the sender-side codec selection policy (§4.2). reg
// supplies candidate implementations; negotiated restricts the choice to
// the session's negotiated codec set.
func Select(reg *Registry, negotiated map[xcp.CodecID]bool, e *ether.Ether, policy xcp.CodecPolicy) (Codec, error) {
	if hintID, ok := kindCodecHints[e.Kind]; ok {
		if !negotiated[hintID] {
			return nil, fmt.Errorf("codec: kind %q requires codec 0x%04x, not in negotiated set", e.Kind, hintID)
		}
		c, ok := reg.Lookup(hintID)
		if !ok {
			return nil, fmt.Errorf("codec: kind %q requires codec 0x%04x, not registered", e.Kind, hintID)
		}
		return c, nil
	}

	if policy == xcp.PolicyJSONOnly {
		if !negotiated[xcp.CodecJSON] {
			return nil, fmt.Errorf("codec: JsonOnly policy but JSON not in negotiated set")
		}
		c, _ := reg.Lookup(xcp.CodecJSON)
		return c, nil
	}

	size := estimatedSize(e)

	if policy == xcp.PolicyBinaryRequired {
		if negotiated[xcp.CodecBinaryStruct] {
			c, _ := reg.Lookup(xcp.CodecBinaryStruct)
			return c, nil
		}
		if negotiated[xcp.CodecArrowIPC] {
			c, _ := reg.Lookup(xcp.CodecArrowIPC)
			return c, nil
		}
		return nil, fmt.Errorf("codec: BinaryRequired policy but no binary codec in negotiated set")
	}

	// Auto (§4.2): JSON for payload <= 2KiB, BINARY_STRUCT for <= 10KiB,
	// ARROW_IPC beyond that for tabular-shaped kinds, else BINARY_STRUCT
	// regardless of size if JSON is unavailable.
	switch {
	case size <= 2*1024 && negotiated[xcp.CodecJSON]:
		c, _ := reg.Lookup(xcp.CodecJSON)
		return c, nil
	case size <= 10*1024 && negotiated[xcp.CodecBinaryStruct]:
		c, _ := reg.Lookup(xcp.CodecBinaryStruct)
		return c, nil
	case negotiated[xcp.CodecArrowIPC] && e.Payload[ArrowIPCKeyStream].Tag() == ether.TagBytes:
		c, _ := reg.Lookup(xcp.CodecArrowIPC)
		return c, nil
	case negotiated[xcp.CodecBinaryStruct]:
		c, _ := reg.Lookup(xcp.CodecBinaryStruct)
		return c, nil
	case negotiated[xcp.CodecJSON]:
		c, _ := reg.Lookup(xcp.CodecJSON)
		return c, nil
	default:
		return nil, fmt.Errorf("codec: no representable codec in negotiated set for kind %q", e.Kind)
	}
}
