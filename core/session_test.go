package core

import "testing"

func TestSession_AppendAndClone(t *testing.T) {
	s := NewSession("s1")
	s.Append(UserMessage("hi"), AssistantMessage("hello"))

	if s.Len() != 2 {
		t.Fatalf("expected 2 messages, got %d", s.Len())
	}

	clone := s.Clone()
	if clone == s {
		t.Error("Clone should be a different pointer")
	}

	clone.Append(UserMessage("more"))
	if s.Len() != 2 {
		t.Error("original should not see clone's new message")
	}
}

func TestSession_TranscriptIsCopied(t *testing.T) {
	s := NewSession("s2")
	s.Append(UserMessage("hi"))

	all := s.Transcript()
	all[0].Text = "changed"

	if s.Transcript()[0].Text != "hi" {
		t.Error("transcript slice should be copied on read")
	}
}

func TestWindowAndLastUserText(t *testing.T) {
	msgs := []Message{UserMessage("a"), AssistantMessage("b"), UserMessage("c"), AssistantMessage("d")}

	if got := Window(msgs, 2); len(got) != 2 || got[0].Text != "c" {
		t.Fatalf("unexpected window: %+v", got)
	}
	if got := Window(msgs, 0); len(got) != 4 {
		t.Fatalf("expected full window, got %d", len(got))
	}
	if got := LastUserText(msgs); got != "c" {
		t.Fatalf("expected last user text c, got %q", got)
	}
	if got := LastUserText(nil); got != "" {
		t.Fatalf("expected empty text, got %q", got)
	}
}
