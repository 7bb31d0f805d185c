package utils

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestPromptLineWithReader(t *testing.T) {
	var out bytes.Buffer
	got, err := PromptLineWithReader("Which list?", strings.NewReader("  hardware  \nignored\n"), &out)
	if err != nil {
		t.Fatalf("PromptLineWithReader() error = %v", err)
	}
	if got != "hardware" {
		t.Errorf("got %q, want hardware", got)
	}
	if !strings.Contains(out.String(), "Which list?") {
		t.Errorf("prompt not written, got %q", out.String())
	}
}

func TestPromptLineWithReaderEOF(t *testing.T) {
	_, err := PromptLineWithReader("Which list?", strings.NewReader(""), nil)
	if !errors.Is(err, ErrNoInput) {
		t.Errorf("error = %v, want ErrNoInput", err)
	}
}

func TestPromptLineWithReaderEmptyLine(t *testing.T) {
	got, err := PromptLineWithReader("Which list?", strings.NewReader("\n"), nil)
	if err != nil || got != "" {
		t.Errorf("got (%q, %v), want empty answer", got, err)
	}
}

func TestIsAffirmative(t *testing.T) {
	for _, yes := range []string{"yes", "Yes.", " y ", "Sure!", "okay"} {
		if !IsAffirmative(yes) {
			t.Errorf("IsAffirmative(%q) = false", yes)
		}
	}
	for _, no := range []string{"no", "", "nope", "maybe"} {
		if IsAffirmative(no) {
			t.Errorf("IsAffirmative(%q) = true", no)
		}
	}
}
