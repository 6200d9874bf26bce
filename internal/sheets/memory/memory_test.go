package memory

import (
	"context"
	"testing"
)

func TestStorePublishReplacesTab(t *testing.T) {
	s := New()
	ref, err := s.Publish(context.Background(), "2025-06", [][]string{{"a"}, {"b"}})
	if err != nil || ref != "mem:2025-06!A1:D2" {
		t.Fatalf("unexpected publish: ref=%q err=%v", ref, err)
	}
	if _, err := s.Publish(context.Background(), "2025-06", [][]string{{"c"}}); err != nil {
		t.Fatalf("republish: %v", err)
	}
	if _, err := s.Publish(context.Background(), "2025-07", nil); err != nil {
		t.Fatalf("publish second tab: %v", err)
	}

	got, ok := s.Values("2025-06")
	if !ok || len(got) != 1 || got[0][0] != "c" {
		t.Fatalf("unexpected values: %v", got)
	}
	sheets := s.Sheets()
	if len(sheets) != 2 || sheets[0] != "2025-06" || sheets[1] != "2025-07" {
		t.Fatalf("unexpected sheets: %v", sheets)
	}
}

func TestStorePublishRejectsEmptyName(t *testing.T) {
	if _, err := New().Publish(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for empty sheet name")
	}
}
