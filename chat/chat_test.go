package chat

import (
	"errors"
	"testing"

	"github.com/chazu/keepsake/serial"
)

func conversation() *Memory {
	mem := NewMemory(10)
	mem.Add(&SystemMessage{Text: "You are concise."})
	mem.Add(&UserMessage{Text: "Where is the registry?", Meta: map[string]any{"turn": int64(1)}})
	mem.Add(&AssistantMessage{Text: "serial.Default()."})
	return mem
}

func TestMemoryRoundTrip(t *testing.T) {
	text, err := serial.Serialize(conversation())
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	got, err := serial.Deserialize(text)
	if err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}
	mem, ok := got.(*Memory)
	if !ok {
		t.Fatalf("round trip = %T", got)
	}
	if mem.Limit != 10 || len(mem.Messages) != 3 {
		t.Fatalf("memory = %+v", mem)
	}

	sys, ok := mem.Messages[0].(*SystemMessage)
	if !ok || sys.Text != "You are concise." {
		t.Errorf("message 0 = %#v", mem.Messages[0])
	}
	user, ok := mem.Messages[1].(*UserMessage)
	if !ok || user.Text != "Where is the registry?" {
		t.Errorf("message 1 = %#v", mem.Messages[1])
	}
	if user != nil && user.Meta["turn"] != int64(1) {
		t.Errorf("meta = %#v", user.Meta)
	}
	if asst, ok := mem.Messages[2].(*AssistantMessage); !ok || asst.Text != "serial.Default()." {
		t.Errorf("message 2 = %#v", mem.Messages[2])
	}
}

// A consumer process that never registered the chat types fails with
// ErrUnknownType and recovers by supplying Descriptors() on retry.
func TestCapturedConversationRecovery(t *testing.T) {
	text, err := serial.Serialize(conversation())
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	consumer := serial.NewRegistry()
	if _, err := consumer.Deserialize(text); !errors.Is(err, serial.ErrUnknownType) {
		t.Fatalf("err = %v, want ErrUnknownType", err)
	}

	got, err := consumer.Deserialize(text, Descriptors()...)
	if err != nil {
		t.Fatalf("Deserialize with descriptors failed: %v", err)
	}
	mem, ok := got.(*Memory)
	if !ok {
		t.Fatalf("recovered payload = %T", got)
	}
	if len(mem.Messages) != 3 {
		t.Fatalf("recovered %d messages, want 3", len(mem.Messages))
	}
	if _, ok := mem.Messages[0].(*SystemMessage); !ok {
		t.Errorf("message 0 = %T", mem.Messages[0])
	}
	if _, ok := mem.Messages[1].(*UserMessage); !ok {
		t.Errorf("message 1 = %T", mem.Messages[1])
	}
	if _, ok := mem.Messages[2].(*AssistantMessage); !ok {
		t.Errorf("message 2 = %T", mem.Messages[2])
	}
}

func TestMemoryWindow(t *testing.T) {
	mem := NewMemory(2)
	mem.Add(&UserMessage{Text: "one"})
	mem.Add(&UserMessage{Text: "two"})
	mem.Add(&UserMessage{Text: "three"})

	if len(mem.Messages) != 2 {
		t.Fatalf("window holds %d, want 2", len(mem.Messages))
	}
	if first := mem.Messages[0].(*UserMessage); first.Text != "two" {
		t.Errorf("oldest retained = %q, want two", first.Text)
	}
}

func TestFromSerializedMemory(t *testing.T) {
	text, err := serial.Serialize(conversation())
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	got, err := serial.FromSerialized("Memory", text)
	if err != nil {
		t.Fatalf("FromSerialized failed: %v", err)
	}
	if _, ok := got.(*Memory); !ok {
		t.Errorf("got %T", got)
	}
}
