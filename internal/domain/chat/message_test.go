package chat

import (
	"testing"
	"time"
)

func TestSortMessagesOrdersByTimestamp(t *testing.T) {
	base := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	messages := []Message{
		{ID: "3", SentAt: base.Add(2 * time.Minute)},
		{ID: "1", SentAt: base},
		{ID: "2", SentAt: base.Add(time.Minute)},
	}
	SortMessages(messages)
	for i, want := range []string{"1", "2", "3"} {
		if messages[i].ID != want {
			t.Fatalf("position %d: got id %q, want %q", i, messages[i].ID, want)
		}
	}
}

func TestSortMessagesStableOnEqualTimestamps(t *testing.T) {
	at := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	messages := []Message{
		{ID: "a", SentAt: at},
		{ID: "b", SentAt: at},
		{ID: "c", SentAt: at.Add(-time.Second)},
	}
	SortMessages(messages)
	if messages[0].ID != "c" || messages[1].ID != "a" || messages[2].ID != "b" {
		t.Fatalf("unexpected order: %q %q %q", messages[0].ID, messages[1].ID, messages[2].ID)
	}
}

func TestSameID(t *testing.T) {
	cases := []struct {
		id      string
		numeric int64
		want    bool
	}{
		{"42", 42, true},
		{" 42 ", 42, true},
		{"43", 42, false},
		{"", 42, false},
		{"abc", 42, false},
	}
	for _, tc := range cases {
		if got := SameID(tc.id, tc.numeric); got != tc.want {
			t.Errorf("SameID(%q, %d) = %v, want %v", tc.id, tc.numeric, got, tc.want)
		}
	}
}

func TestRelatedTypeValid(t *testing.T) {
	for _, valid := range []RelatedType{RelatedPG, RelatedHostel, RelatedItem} {
		if !valid.Valid() {
			t.Errorf("%q should be valid", valid)
		}
	}
	if RelatedType("flat").Valid() {
		t.Error("unknown type should be invalid")
	}
}
