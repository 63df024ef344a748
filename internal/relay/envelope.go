package relay

import (
	"bytes"
	"encoding/json"
	"io"
	"sync"

	"github.com/BioHazard786/droprelay/internal/protocol"
)

// Envelope is one line of the output stream. Exactly one field is set.
type Envelope struct {
	Join        string           `json:"join,omitempty"`
	MemberJoin  *protocol.Member `json:"member_join,omitempty"`
	MemberLeave *protocol.Member `json:"member_leave,omitempty"`
	Data        json.RawMessage  `json:"data,omitempty"`
}

func JoinEnvelope(clientID string) Envelope {
	return Envelope{Join: clientID}
}

func MemberJoinEnvelope(m protocol.Member) Envelope {
	return Envelope{MemberJoin: &m}
}

func MemberLeaveEnvelope(m protocol.Member) Envelope {
	return Envelope{MemberLeave: &m}
}

func DataEnvelope(payload json.RawMessage) Envelope {
	return Envelope{Data: payload}
}

// LineWriter writes envelopes as compact JSON lines. Each envelope is
// encoded up front and handed to the underlying writer in one Write under a
// lock, so concurrent callers never interleave within a line.
type LineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewLineWriter(w io.Writer) *LineWriter {
	return &LineWriter{w: w}
}

// WriteEnvelope encodes env followed by a newline.
func (lw *LineWriter) WriteEnvelope(env Envelope) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(env); err != nil {
		return err
	}

	lw.mu.Lock()
	defer lw.mu.Unlock()
	_, err := lw.w.Write(buf.Bytes())
	return err
}
