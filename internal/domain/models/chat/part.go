package chat

import (
	"encoding/json"
	"fmt"
)

// Part kind constants
const (
	PartKindText      = "text"
	PartKindReasoning = "reasoning"
	PartKindFile      = "file"
	PartKindTool      = "tool"
	PartKindUnknown   = "unknown"
)

// FilePart references an externally hosted attachment. The server never
// inspects file bytes; the URL passes through opaquely.
type FilePart struct {
	MediaType string `json:"mediaType"`
	Name      string `json:"name"`
	URL       string `json:"url"`
}

// ToolPart records a tool invocation emitted by the model.
type ToolPart struct {
	ToolName string          `json:"toolName"`
	State    string          `json:"state,omitempty"`
	Input    json.RawMessage `json:"input,omitempty"`
	Output   json.RawMessage `json:"output,omitempty"`
}

// Part is one typed content part of a message. The upstream message format
// is extensible, so parts with an unrecognized "type" are preserved as
// Kind=unknown with the raw payload intact: they round-trip through storage
// without interpretation, and finalization drops them from persisted
// assistant messages.
type Part struct {
	Kind string
	Text string // text and reasoning parts
	File *FilePart
	Tool *ToolPart
	Raw  json.RawMessage // unknown parts: original payload, verbatim
}

// Known reports whether the part has a recognized kind.
func (p *Part) Known() bool {
	return p.Kind != PartKindUnknown
}

// partEnvelope is the wire shape shared by all recognized kinds.
type partEnvelope struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	*FilePart
	*ToolPart
}

// MarshalJSON emits the tagged wire form. Unknown parts are written back
// byte-for-byte from their original payload.
func (p Part) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case PartKindText, PartKindReasoning:
		return json.Marshal(partEnvelope{Type: p.Kind, Text: p.Text})
	case PartKindFile:
		return json.Marshal(partEnvelope{Type: p.Kind, FilePart: p.File})
	case PartKindTool:
		return json.Marshal(partEnvelope{Type: p.Kind, ToolPart: p.Tool})
	case PartKindUnknown:
		if len(p.Raw) == 0 {
			return []byte("null"), nil
		}
		return p.Raw, nil
	default:
		return nil, fmt.Errorf("marshal part: unrecognized kind %q", p.Kind)
	}
}

// UnmarshalJSON dispatches on the "type" tag. Anything outside the closed
// set of known kinds becomes an unknown part carrying the raw bytes.
func (p *Part) UnmarshalJSON(data []byte) error {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("unmarshal part: %w", err)
	}

	switch tag.Type {
	case PartKindText, PartKindReasoning:
		var env struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			return fmt.Errorf("unmarshal %s part: %w", tag.Type, err)
		}
		p.Kind = tag.Type
		p.Text = env.Text
	case PartKindFile:
		var file FilePart
		if err := json.Unmarshal(data, &file); err != nil {
			return fmt.Errorf("unmarshal file part: %w", err)
		}
		p.Kind = PartKindFile
		p.File = &file
	case PartKindTool:
		var tool ToolPart
		if err := json.Unmarshal(data, &tool); err != nil {
			return fmt.Errorf("unmarshal tool part: %w", err)
		}
		p.Kind = PartKindTool
		p.Tool = &tool
	default:
		p.Kind = PartKindUnknown
		p.Raw = append(json.RawMessage(nil), data...)
	}
	return nil
}

// TextPart builds a text part.
func TextPart(text string) Part {
	return Part{Kind: PartKindText, Text: text}
}

// ReasoningPart builds a reasoning part.
func ReasoningPart(text string) Part {
	return Part{Kind: PartKindReasoning, Text: text}
}

// KnownParts filters out unknown parts; used when persisting assistant
// output so experimental event payloads aren't stored verbatim.
func KnownParts(parts []Part) []Part {
	kept := make([]Part, 0, len(parts))
	for _, p := range parts {
		if p.Known() {
			kept = append(kept, p)
		}
	}
	return kept
}

// JoinText concatenates the text of all text parts. Used for title
// derivation input.
func JoinText(parts []Part) string {
	var out string
	for _, p := range parts {
		if p.Kind == PartKindText {
			out += p.Text
		}
	}
	return out
}
