package agent

import (
	"encoding/json"

	"github.com/aretw0/arbor/pkg/message"
)

// RoutineEnv is the environment variable the parent sets on a child
// process to name the registered routine the child must run.
const RoutineEnv = "ARBOR_ROUTINE"

// bootstrap is the first message the parent writes to the child's
// stdin: identity plus the snapshots of the shared channels.
type bootstrap struct {
	FrameName    string                  `json:"frame_name"`
	FrameID      string                  `json:"frame_id"`
	Environments []message.SnapshotEntry `json:"environments"`
	Requests     []message.SnapshotEntry `json:"requests"`
	Commons      []message.SnapshotEntry `json:"commons"`
}

// Wire line types. Parent to child: request updates and stop. Child to
// parent: common updates and the final result.
const (
	lineRequest = "request"
	lineStop    = "stop"
	lineCommon  = "common"
	lineResult  = "result"
)

// wireLine is one newline-delimited JSON message on either pipe.
type wireLine struct {
	Type  string                 `json:"type"`
	Entry *message.SnapshotEntry `json:"entry,omitempty"`
	Value json.RawMessage        `json:"value,omitempty"`
	Error string                 `json:"error,omitempty"`
}
