// Package bridge provides the transport layer for the agent orchestrator.
//
// events.go - Decoding of streamed event frames
//
// The stream endpoint emits newline-delimited frames of the form
//
//	data: {"type":"chunk","data":{...},"timestamp":1712345678901}
//
// A chunk frame is composite: data.updates maps pipeline stage names to
// stage payloads and data.messages carries ordered content fragments.
// DecodeFrame flattens one frame into the normalized events it contains.

package bridge

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// FramePrefix marks event lines on the stream; anything else is ignored
const FramePrefix = "data:"

// Wire frame types emitted by the orchestrator
const (
	frameChunk      = "chunk"
	frameCompletion = "completion"
	frameError      = "error"
)

type frame struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

type chunkData struct {
	Updates  map[string]json.RawMessage `json:"updates"`
	Messages []string                   `json:"messages"`
}

type completionData struct {
	FinalResponse string `json:"final_response"`
	Response      string `json:"response"`
}

type errorData struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// StripFramePrefix returns the payload of a stream line and whether the
// line carried the frame prefix at all
func StripFramePrefix(line string) (string, bool) {
	if !strings.HasPrefix(line, FramePrefix) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(line, FramePrefix)), true
}

// DecodeFrame parses one frame payload (prefix already stripped) into the
// ordered events it contains. Within a chunk frame stage updates come
// first, sorted by stage name, followed by content fragments in wire
// order. Unknown frame types decode to a single raw_chunk event.
func DecodeFrame(payload []byte) ([]*StreamEvent, error) {
	var f frame
	if err := json.Unmarshal(payload, &f); err != nil {
		return nil, &ProtocolError{Op: "decode_frame", Line: string(payload), Err: err}
	}
	if f.Type == "" {
		return nil, &ProtocolError{Op: "decode_frame", Line: string(payload), Err: fmt.Errorf("frame has no type")}
	}

	switch f.Type {
	case frameChunk:
		return decodeChunk(&f)
	case frameCompletion:
		return decodeCompletion(&f)
	case frameError:
		return decodeError(&f)
	default:
		return decodeUnknown(&f)
	}
}

func decodeChunk(f *frame) ([]*StreamEvent, error) {
	var data chunkData
	if err := json.Unmarshal(f.Data, &data); err != nil {
		return nil, &ProtocolError{Op: "decode_chunk", Line: string(f.Data), Err: err}
	}

	if len(data.Updates) == 0 && len(data.Messages) == 0 {
		// A chunk carrying neither updates nor messages is still valid
		// server output; surface it opaquely.
		return decodeUnknown(f)
	}

	events := make([]*StreamEvent, 0, len(data.Updates)+len(data.Messages))

	// Map iteration order is random; sort stage names so repeated runs of
	// the same stream produce the same event sequence.
	stages := make([]string, 0, len(data.Updates))
	for stage := range data.Updates {
		stages = append(stages, stage)
	}
	sort.Strings(stages)

	for _, stage := range stages {
		ev := &StreamEvent{
			Type:      StreamEventNodeProgress,
			Stage:     stage,
			Timestamp: f.Timestamp,
		}
		var raw map[string]any
		if err := json.Unmarshal(data.Updates[stage], &raw); err == nil {
			ev.Raw = raw
		}
		events = append(events, ev)
	}

	for _, msg := range data.Messages {
		events = append(events, &StreamEvent{
			Type:      StreamEventTokenDelta,
			Text:      msg,
			Timestamp: f.Timestamp,
		})
	}

	return events, nil
}

func decodeCompletion(f *frame) ([]*StreamEvent, error) {
	var data completionData
	if err := json.Unmarshal(f.Data, &data); err != nil {
		return nil, &ProtocolError{Op: "decode_completion", Line: string(f.Data), Err: err}
	}

	final := data.FinalResponse
	if final == "" {
		final = data.Response
	}

	return []*StreamEvent{{
		Type:      StreamEventCompletion,
		FinalText: final,
		Timestamp: f.Timestamp,
	}}, nil
}

func decodeError(f *frame) ([]*StreamEvent, error) {
	var data errorData
	if err := json.Unmarshal(f.Data, &data); err != nil {
		return nil, &ProtocolError{Op: "decode_error", Line: string(f.Data), Err: err}
	}

	msg := data.Message
	if msg == "" {
		msg = data.Error
	}
	if msg == "" {
		msg = "server reported an error"
	}

	return []*StreamEvent{{
		Type:      StreamEventError,
		Text:      msg,
		Timestamp: f.Timestamp,
	}}, nil
}

func decodeUnknown(f *frame) ([]*StreamEvent, error) {
	ev := &StreamEvent{
		Type:      StreamEventRawChunk,
		Timestamp: f.Timestamp,
		Raw:       map[string]any{"type": f.Type},
	}
	if len(f.Data) > 0 {
		var raw any
		if err := json.Unmarshal(f.Data, &raw); err == nil {
			ev.Raw["data"] = raw
		} else {
			ev.Raw["data"] = string(f.Data)
		}
	}
	return []*StreamEvent{ev}, nil
}
