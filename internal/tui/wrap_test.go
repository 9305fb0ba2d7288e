package tui

import (
	"reflect"
	"testing"
)

func TestWrapTextBreaksAtSpaces(t *testing.T) {
	got := wrapText("hello world foo", 11)
	want := []string{"hello world", "foo"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestWrapTextSplitsLongWords(t *testing.T) {
	got := wrapText("abcdefgh", 3)
	want := []string{"abc", "def", "gh"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestWrapTextCountsWideRunes(t *testing.T) {
	got := wrapText("日本語テキスト", 4)
	want := []string{"日本", "語テ", "キス", "ト"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestWrapTextKeepsNewlines(t *testing.T) {
	got := wrapText("Login failed\nretry", 80)
	want := []string{"Login failed", "retry"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestWrapTextNoWidth(t *testing.T) {
	if got := wrapText("a long status line", 0); len(got) != 1 {
		t.Fatalf("expected a single line, got %q", got)
	}
	if got := wrapText("", 10); got != nil {
		t.Fatalf("expected no lines for empty text, got %q", got)
	}
}
