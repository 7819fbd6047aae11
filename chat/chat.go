// Package chat carries the reference collaborators for the serialization
// engine: conversation messages and a bounded conversational memory. Each
// type implements the snapshot protocol and registers itself once at init
// time; a process that deliberately avoids the registration side effect can
// still read chat payloads by passing Descriptors() as the extra-descriptors
// hint.
package chat

import (
	"fmt"

	"github.com/chazu/keepsake/serial"
)

// SystemMessage is an instruction message at the head of a conversation.
type SystemMessage struct {
	Text string
}

func (m *SystemMessage) CreateSnapshot() (any, error) {
	return map[string]any{"text": m.Text}, nil
}

func (m *SystemMessage) LoadSnapshot(snapshot any) error {
	fields, err := snapshotFields("SystemMessage", snapshot)
	if err != nil {
		return err
	}
	m.Text, _ = fields["text"].(string)
	return nil
}

// UserMessage is a message authored by the user, with optional metadata.
type UserMessage struct {
	Text string
	Meta map[string]any
}

func (m *UserMessage) CreateSnapshot() (any, error) {
	return map[string]any{"text": m.Text, "meta": m.Meta}, nil
}

func (m *UserMessage) LoadSnapshot(snapshot any) error {
	fields, err := snapshotFields("UserMessage", snapshot)
	if err != nil {
		return err
	}
	m.Text, _ = fields["text"].(string)
	if meta, ok := fields["meta"].(map[string]any); ok {
		m.Meta = meta
	}
	return nil
}

// AssistantMessage is a message produced by the assistant.
type AssistantMessage struct {
	Text string
}

func (m *AssistantMessage) CreateSnapshot() (any, error) {
	return map[string]any{"text": m.Text}, nil
}

func (m *AssistantMessage) LoadSnapshot(snapshot any) error {
	fields, err := snapshotFields("AssistantMessage", snapshot)
	if err != nil {
		return err
	}
	m.Text, _ = fields["text"].(string)
	return nil
}

// Memory is a bounded sliding window of conversation messages. A limit of
// zero means unbounded.
type Memory struct {
	Limit    int
	Messages []any
}

// NewMemory creates a memory keeping at most limit messages.
func NewMemory(limit int) *Memory {
	return &Memory{Limit: limit}
}

// Add appends a message, dropping the oldest ones beyond the limit.
func (m *Memory) Add(msg any) {
	m.Messages = append(m.Messages, msg)
	if m.Limit > 0 && len(m.Messages) > m.Limit {
		m.Messages = m.Messages[len(m.Messages)-m.Limit:]
	}
}

func (m *Memory) CreateSnapshot() (any, error) {
	messages := make([]any, len(m.Messages))
	copy(messages, m.Messages)
	return map[string]any{
		"limit":    m.Limit,
		"messages": messages,
	}, nil
}

func (m *Memory) LoadSnapshot(snapshot any) error {
	fields, err := snapshotFields("Memory", snapshot)
	if err != nil {
		return err
	}
	m.Limit = intField(fields["limit"])
	if messages, ok := fields["messages"].([]any); ok {
		m.Messages = messages
	}
	return nil
}

func snapshotFields(name string, snapshot any) (map[string]any, error) {
	fields, ok := snapshot.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s: snapshot is %T, want map", name, snapshot)
	}
	return fields, nil
}

// intField reads a numeric snapshot field; deserialized numbers arrive as
// int64 or float64.
func intField(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

// ---------------------------------------------------------------------------
// Registration
// ---------------------------------------------------------------------------

var descriptors = []*serial.Descriptor{
	serial.SnapshotDescriptor("SystemMessage", func() serial.Serializable { return &SystemMessage{} }),
	serial.SnapshotDescriptor("UserMessage", func() serial.Serializable { return &UserMessage{} }),
	serial.SnapshotDescriptor("AssistantMessage", func() serial.Serializable { return &AssistantMessage{} }),
	serial.SnapshotDescriptor("Memory", func() serial.Serializable { return &Memory{} }),
}

var prototypes = []any{
	(*SystemMessage)(nil),
	(*UserMessage)(nil),
	(*AssistantMessage)(nil),
	(*Memory)(nil),
}

func init() {
	for i, desc := range descriptors {
		if err := serial.Register(prototypes[i], desc); err != nil {
			panic(fmt.Sprintf("chat: registration failed: %v", err))
		}
	}
}

// Descriptors returns the chat type descriptors for use as an
// extra-descriptors hint by consumers that have not registered them.
func Descriptors() []*serial.Descriptor {
	out := make([]*serial.Descriptor, len(descriptors))
	copy(out, descriptors)
	return out
}
