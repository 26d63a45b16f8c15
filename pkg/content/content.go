// Package content defines the canonical, provider-independent representation
// of multi-modal messages used throughout modelkit: roles, messages, and the
// seven content-part variants adapters translate to and from vendor wire
// shapes.
package content

import "fmt"

// Role identifies who produced a Message.
//
// There is deliberately no RoleSystem: a system directive travels
// out-of-band on LanguageModelInput, never as a message in the list.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a Role plus an ordered sequence of Parts, subject to the
// invariants below (enforced by NewMessage, not by the zero value — a
// Message built by hand is not run through these checks; adapters check
// only what their own wire mapping needs).
type Message struct {
	Role  Role
	Parts []Part
}

// NewMessage validates and constructs a Message.
//
//   - a tool message's parts MUST all be ToolResultPart
//   - an assistant message MAY contain any part except ToolResultPart
//   - a user message MAY contain any part except ToolCallPart and ReasoningPart
func NewMessage(role Role, parts []Part) (Message, error) {
	for i, p := range parts {
		switch role {
		case RoleTool:
			if p.PartType() != PartToolResult {
				return Message{}, fmt.Errorf("content: tool message part %d has type %q, want tool-result", i, p.PartType())
			}
		case RoleAssistant:
			if p.PartType() == PartToolResult {
				return Message{}, fmt.Errorf("content: assistant message part %d must not be tool-result", i)
			}
		case RoleUser:
			switch p.PartType() {
			case PartToolCall, PartReasoning:
				return Message{}, fmt.Errorf("content: user message part %d must not be %q", i, p.PartType())
			}
		default:
			return Message{}, fmt.Errorf("content: unknown role %q", role)
		}
	}
	return Message{Role: role, Parts: parts}, nil
}

// PartKind tags the concrete type behind a Part.
type PartKind string

const (
	PartText       PartKind = "text"
	PartImage      PartKind = "image"
	PartAudio      PartKind = "audio"
	PartReasoning  PartKind = "reasoning"
	PartToolCall   PartKind = "tool-call"
	PartToolResult PartKind = "tool-result"
	PartSource     PartKind = "source"
)

// Part is one element of a Message's content. It is a closed sum type:
// PartType() is the discriminator and partMarker() prevents external
// packages from adding new variants (every variant must be one this
// package, and the adapters that consume it, know how to handle).
type Part interface {
	PartType() PartKind
	partMarker()
}

// Parts is a convenience alias for an ordered content-part slice.
type Parts []Part
