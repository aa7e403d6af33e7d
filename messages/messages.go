package messages

import (
	"errors"
	"fmt"
	"strings"
)

// OSC message types and address patterns understood by the remote server.

// ErrUnknownAddress is returned by ParseAddress for addresses outside the vocabulary.
var ErrUnknownAddress = errors.New("unknown OSC address")

// Message types
type MessageType string

const (
	// Transport messages
	MsgGo     MessageType = "go"
	MsgStop   MessageType = "stop"
	MsgPause  MessageType = "pause"
	MsgResume MessageType = "resume"
	MsgPanic  MessageType = "panic"

	// Playhead messages
	MsgPlayheadNext MessageType = "playhead_next"
	MsgPlayhead     MessageType = "playhead"

	// Cue messages (by number)
	MsgCueStart MessageType = "cue_start"
	MsgCueStop  MessageType = "cue_stop"
	MsgCueLoad  MessageType = "cue_load"

	// Cue messages (by uniqueID)
	MsgCueIDStart MessageType = "cue_id_start"
	MsgCueIDStop  MessageType = "cue_id_stop"
	MsgCueIDLoad  MessageType = "cue_id_load"

	// Queries and subscriptions
	MsgRunningCues  MessageType = "running_cues"
	MsgSelectedCues MessageType = "selected_cues"
	MsgUpdates      MessageType = "updates"
)

// OSC Address patterns
const (
	AddrWorkspace = "/workspace/{id}"

	AddrGo     = "/go"
	AddrStop   = "/stop"
	AddrPause  = "/pause"
	AddrResume = "/resume"
	AddrPanic  = "/panic"

	AddrPlayheadNext = "/playhead/next"
	AddrPlayhead     = "/playhead/{cue_number}"

	AddrCueStart = "/cue/{cue_number}/start"
	AddrCueStop  = "/cue/{cue_number}/stop"
	AddrCueLoad  = "/cue/{cue_number}/load"

	AddrCueIDStart = "/cue_id/{unique_id}/start"
	AddrCueIDStop  = "/cue_id/{unique_id}/stop"
	AddrCueIDLoad  = "/cue_id/{unique_id}/load"

	AddrRunningCues  = "/runningCues"
	AddrSelectedCues = "/selectedCues"
	AddrUpdates      = "/updates"

	AddrReply  = "/reply"
	AddrUpdate = "/update"
)

var patterns = map[MessageType]string{
	MsgGo:           AddrGo,
	MsgStop:         AddrStop,
	MsgPause:        AddrPause,
	MsgResume:       AddrResume,
	MsgPanic:        AddrPanic,
	MsgPlayheadNext: AddrPlayheadNext,
	MsgPlayhead:     AddrPlayhead,
	MsgCueStart:     AddrCueStart,
	MsgCueStop:      AddrCueStop,
	MsgCueLoad:      AddrCueLoad,
	MsgCueIDStart:   AddrCueIDStart,
	MsgCueIDStop:    AddrCueIDStop,
	MsgCueIDLoad:    AddrCueIDLoad,
	MsgRunningCues:  AddrRunningCues,
	MsgSelectedCues: AddrSelectedCues,
	MsgUpdates:      AddrUpdates,
}

// Request is a parsed incoming address.
type Request struct {
	Type        MessageType
	WorkspaceID string // set when the address carried a /workspace/{id} prefix
	CueNumber   string
	UniqueID    string
}

// ParseAddress matches an address against the vocabulary. A leading
// /workspace/{id} is accepted and recorded.
func ParseAddress(address string) (Request, error) {
	var req Request
	parts := strings.Split(strings.Trim(address, "/"), "/")
	if len(parts) >= 2 && parts[0] == "workspace" {
		req.WorkspaceID = parts[1]
		parts = parts[2:]
	}
	if len(parts) == 0 || parts[0] == "" {
		return req, fmt.Errorf("%w: %s", ErrUnknownAddress, address)
	}

	switch len(parts) {
	case 1:
		for t, pattern := range patterns {
			if pattern == "/"+parts[0] {
				req.Type = t
				return req, nil
			}
		}
	case 2:
		if parts[0] == "playhead" {
			if parts[1] == "next" {
				req.Type = MsgPlayheadNext
			} else {
				req.Type = MsgPlayhead
				req.CueNumber = parts[1]
			}
			return req, nil
		}
	case 3:
		byNumber := map[string]MessageType{"start": MsgCueStart, "stop": MsgCueStop, "load": MsgCueLoad}
		byID := map[string]MessageType{"start": MsgCueIDStart, "stop": MsgCueIDStop, "load": MsgCueIDLoad}
		switch parts[0] {
		case "cue":
			if t, ok := byNumber[parts[2]]; ok {
				req.Type = t
				req.CueNumber = parts[1]
				return req, nil
			}
		case "cue_id":
			if t, ok := byID[parts[2]]; ok {
				req.Type = t
				req.UniqueID = parts[1]
				return req, nil
			}
		}
	}
	return req, fmt.Errorf("%w: %s", ErrUnknownAddress, address)
}

// OSCAddressBuilder builds OSC addresses from message types and parameters
type OSCAddressBuilder struct {
	workspaceID string
}

// NewOSCAddressBuilder creates a new address builder. An empty workspace id
// builds unprefixed addresses.
func NewOSCAddressBuilder(workspaceID string) *OSCAddressBuilder {
	return &OSCAddressBuilder{
		workspaceID: workspaceID,
	}
}

// BuildAddress builds an OSC address from a message type and parameters
func (b *OSCAddressBuilder) BuildAddress(msgType MessageType, params map[string]string) string {
	address, ok := patterns[msgType]
	if !ok {
		return ""
	}
	for key, value := range params {
		address = strings.ReplaceAll(address, fmt.Sprintf("{%s}", key), value)
	}
	return b.GetWorkspacePrefix() + address
}

// BuildReplyAddress builds a reply address for a given request address
func (b *OSCAddressBuilder) BuildReplyAddress(requestAddress string) string {
	return AddrReply + requestAddress
}

// BuildUpdateAddress is where a list event of the given kind is announced.
func (b *OSCAddressBuilder) BuildUpdateAddress(kind string) string {
	return AddrUpdate + b.GetWorkspacePrefix() + "/" + kind
}

// GetWorkspacePrefix returns the workspace prefix for addresses that need it
func (b *OSCAddressBuilder) GetWorkspacePrefix() string {
	if b.workspaceID == "" {
		return ""
	}
	return strings.ReplaceAll(AddrWorkspace, "{id}", b.workspaceID)
}
