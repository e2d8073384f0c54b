package live

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/vango-dev/rxbind/internal/errors"
	"github.com/vango-dev/rxbind/pkg/surface"
)

// Actions a client may send.
const (
	ActionStart          = "start"
	ActionCancel         = "cancel"
	ActionStartInterval  = "start_interval"
	ActionCancelInterval = "cancel_interval"
)

// Message types the server sends.
const (
	TypeFrame = "frame"
	TypeError = "error"
)

// Request is a client message.
type Request struct {
	Action string `json:"action"`
}

// Frame is one render of a session's view-model. Version changes when the
// item contents change, so clients can skip redrawing the list.
type Frame struct {
	Type    string `json:"type"`
	Session string `json:"session"`
	Seq     uint64 `json:"seq"`
	Version uint64 `json:"version"`
	surface.Snapshot
}

// ErrorFrame reports a rejected action or a faulted command.
type ErrorFrame struct {
	Type    string          `json:"type"`
	Session string          `json:"session"`
	Action  string          `json:"action,omitempty"`
	Error   *errors.RxError `json:"error"`
}

// Version hashes items.
func Version(items []int) uint64 {
	buf := make([]byte, 0, len(items)*binary.MaxVarintLen64)
	for _, v := range items {
		buf = binary.AppendVarint(buf, int64(v))
	}
	return xxhash.Sum64(buf)
}
