package glimpse

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"
)

func TestInsertMessageRoundTrip(t *testing.T) {
	db, err := NewDB(t.Context(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	meta, _ := json.Marshal(map[string]any{"word_count": 3})

	msgs := []*Message{
		{SessionId: "s1", Role: RoleUser, Content: "what is this?", ImageData: "data:image/jpeg;base64,abcd"},
		{SessionId: "s1", Role: RoleAssistant, Content: "a red car", MetaTags: meta},
	}
	for _, msg := range msgs {
		if err := db.InsertMessage(t.Context(), msg); err != nil {
			t.Fatal(err)
		}
		if msg.Id == 0 {
			t.Error("expected generated id")
		}
	}

	got, err := db.Messages(t.Context(), "s1")
	if err != nil {
		t.Fatal(err)
	}
	if expected, actual := 2, len(got); expected != actual {
		t.Fatalf("expected %d messages, got %d", expected, actual)
	}

	if got[0].Role != RoleUser || got[0].Content != "what is this?" {
		t.Errorf("unexpected first message %+v", got[0])
	}
	if got[0].ImageData == "" {
		t.Error("expected image data on user message")
	}
	if len(got[0].MetaTags) != 0 {
		t.Error("unexpected meta tags on user message")
	}
	if got[1].Role != RoleAssistant || len(got[1].MetaTags) == 0 {
		t.Errorf("unexpected second message %+v", got[1])
	}
	if got[1].ImageData != "" {
		t.Error("unexpected image data on assistant message")
	}
}

func TestInsertMessageRejectsBadRole(t *testing.T) {
	db, err := NewDB(t.Context(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if err := db.InsertMessage(t.Context(), &Message{SessionId: "s1", Role: "system", Content: "x"}); err == nil {
		t.Error("expected error for invalid role")
	}
}

func TestMessagesOrdering(t *testing.T) {
	db, err := NewDB(t.Context(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	// Same timestamp, so ordering must fall back to insertion order.
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := range 5 {
		msg := &Message{SessionId: "s1", Role: RoleUser, Content: fmt.Sprintf("msg %d", i), CreatedAt: at}
		if err := db.InsertMessage(t.Context(), msg); err != nil {
			t.Fatal(err)
		}
	}

	got, err := db.Messages(t.Context(), "s1")
	if err != nil {
		t.Fatal(err)
	}
	for i, msg := range got {
		if expected := fmt.Sprintf("msg %d", i); msg.Content != expected {
			t.Errorf("position %d: expected %q, got %q", i, expected, msg.Content)
		}
	}
}

func TestMessagesAllSessions(t *testing.T) {
	db, err := NewDB(t.Context(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	for _, session := range []string{"s1", "s2"} {
		if err := db.InsertMessage(t.Context(), &Message{SessionId: session, Role: RoleUser, Content: "hi"}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := db.Messages(t.Context(), "")
	if err != nil {
		t.Fatal(err)
	}
	if expected, actual := 2, len(got); expected != actual {
		t.Errorf("expected %d messages across sessions, got %d", expected, actual)
	}
}

func TestRecentMessagesWindow(t *testing.T) {
	db, err := NewDB(t.Context(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := range 6 {
		msg := &Message{
			SessionId: "s1",
			Role:      RoleUser,
			Content:   fmt.Sprintf("msg %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := db.InsertMessage(t.Context(), msg); err != nil {
			t.Fatal(err)
		}
	}

	got, err := db.RecentMessages(t.Context(), "s1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if expected, actual := 2, len(got); expected != actual {
		t.Fatalf("expected %d messages, got %d", expected, actual)
	}
	// Newest two, chronological order.
	if got[0].Content != "msg 4" || got[1].Content != "msg 5" {
		t.Errorf("unexpected window: %q, %q", got[0].Content, got[1].Content)
	}
}

func TestStats(t *testing.T) {
	db, err := NewDB(t.Context(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	stats, err := db.Stats(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalMessages != 0 || stats.DaysActive != 0 || stats.TotalChars != 0 {
		t.Errorf("expected zero stats, got %+v", stats)
	}

	day1 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)
	for _, msg := range []*Message{
		{SessionId: "s1", Role: RoleUser, Content: "abc", CreatedAt: day1},
		{SessionId: "s1", Role: RoleAssistant, Content: "defgh", CreatedAt: day1},
		{SessionId: "s1", Role: RoleUser, Content: "ij", CreatedAt: day2},
	} {
		if err := db.InsertMessage(t.Context(), msg); err != nil {
			t.Fatal(err)
		}
	}

	stats, err = db.Stats(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if expected, actual := 3, stats.TotalMessages; expected != actual {
		t.Errorf("expected %d total messages, got %d", expected, actual)
	}
	if expected, actual := 2, stats.DaysActive; expected != actual {
		t.Errorf("expected %d days active, got %d", expected, actual)
	}
	if expected, actual := int64(10), stats.TotalChars; expected != actual {
		t.Errorf("expected %d total chars, got %d", expected, actual)
	}
}

func TestClearMessages(t *testing.T) {
	db, err := NewDB(t.Context(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if err := db.InsertMessage(t.Context(), &Message{SessionId: "s1", Role: RoleUser, Content: "hi"}); err != nil {
		t.Fatal(err)
	}
	if err := db.ClearMessages(t.Context()); err != nil {
		t.Fatal(err)
	}

	got, err := db.Messages(t.Context(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected no messages after clear, got %d", len(got))
	}
}
