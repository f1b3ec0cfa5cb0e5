package session

import (
	"sync"
	"time"

	"github.com/maida-ai/xcp/frame"
)

// assembly accumulates chunks for one in-flight msg_id until a frame
// arrives with MORE unset (§4.4 chunking). Chunks are concatenated in
// arrival order; XCP chunking assumes a single ordered channel, so no
// reordering is attempted.
type assembly struct {
	header    frame.Header // header of the first chunk
	buf       []byte
	startedAt time.Time
}

// assemblyTable tracks in-flight reassemblies keyed by msg_id, enforcing
// MaxAssembledBytes and MaxInflightAssemblies (§6).
type assemblyTable struct {
	mu         sync.Mutex
	byMsgID    map[uint64]*assembly
	maxBytes   uint64
	maxInflight int
}

func newAssemblyTable(maxBytes uint64, maxInflight int) *assemblyTable {
	return &assemblyTable{
		byMsgID:     make(map[uint64]*assembly),
		maxBytes:    maxBytes,
		maxInflight: maxInflight,
	}
}

// Append adds a chunk to the reassembly for f.Header.MsgID, creating it if
// this is the first chunk seen for that msg_id. If more is false, the
// complete assembled payload is returned and the entry is released.
func (t *assemblyTable) Append(f *frame.Frame, more bool) ([]byte, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	a, ok := t.byMsgID[f.Header.MsgID]
	if !ok {
		if len(t.byMsgID) >= t.maxInflight {
			return nil, false, ErrTooManyAssemblies
		}
		a = &assembly{header: f.Header, startedAt: time.Now()}
		t.byMsgID[f.Header.MsgID] = a
	}

	a.buf = append(a.buf, f.Payload...)
	if t.maxBytes != 0 && uint64(len(a.buf)) > t.maxBytes {
		delete(t.byMsgID, f.Header.MsgID)
		return nil, false, ErrAssemblyTooLarge
	}

	if more {
		return nil, true, nil
	}
	delete(t.byMsgID, f.Header.MsgID)
	return a.buf, false, nil
}

// ExpireOlderThan releases any assembly that has been in-flight longer than
// timeout, returning the msg_ids it dropped.
func (t *assemblyTable) ExpireOlderThan(timeout time.Duration) []uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var expired []uint64
	now := time.Now()
	for id, a := range t.byMsgID {
		if now.Sub(a.startedAt) > timeout {
			expired = append(expired, id)
			delete(t.byMsgID, id)
		}
	}
	return expired
}
