package voice_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"

	"grocat/internal/voice"
)

// sendKeyAndWait sends a key message and waits briefly for processing.
func sendKeyAndWait(tm *teatest.TestModel, key tea.KeyMsg) {
	tm.Send(key)
	time.Sleep(20 * time.Millisecond)
}

func typeText(tm *teatest.TestModel, text string) {
	for _, r := range text {
		tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	time.Sleep(20 * time.Millisecond)
}

func finalAnswer(t *testing.T, tm *teatest.TestModel) (string, bool) {
	t.Helper()
	final := tm.FinalModel(t, teatest.WithFinalTimeout(time.Second))
	m, ok := final.(*voice.FollowUpModel)
	if !ok {
		t.Fatalf("final model is %T", final)
	}
	return m.Answer()
}

// =============================================================================
// Follow-up prompt
// =============================================================================

func TestFollowUpShowsPrompt(t *testing.T) {
	tm := teatest.NewTestModel(t, voice.NewFollowUpModel("What should the new list be called?"), teatest.WithInitialTermSize(80, 24))

	teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
		return bytes.Contains(out, []byte("What should the new list be called?"))
	}, teatest.WithDuration(time.Second))

	sendKeyAndWait(tm, tea.KeyMsg{Type: tea.KeyEsc})
	tm.WaitFinished(t, teatest.WithFinalTimeout(time.Second))
}

func TestFollowUpAnswer(t *testing.T) {
	tm := teatest.NewTestModel(t, voice.NewFollowUpModel("List name?"), teatest.WithInitialTermSize(80, 24))
	time.Sleep(50 * time.Millisecond)

	typeText(tm, "  Costco ")
	sendKeyAndWait(tm, tea.KeyMsg{Type: tea.KeyEnter})

	answer, ok := finalAnswer(t, tm)
	if !ok || answer != "Costco" {
		t.Errorf("Answer() = (%q, %v), want (Costco, true)", answer, ok)
	}
}

func TestFollowUpSkipped(t *testing.T) {
	keys := map[string]tea.KeyMsg{
		"esc":    {Type: tea.KeyEsc},
		"ctrl+c": {Type: tea.KeyCtrlC},
		"empty":  {Type: tea.KeyEnter},
	}
	for name, key := range keys {
		t.Run(name, func(t *testing.T) {
			tm := teatest.NewTestModel(t, voice.NewFollowUpModel("Create it?"), teatest.WithInitialTermSize(80, 24))
			time.Sleep(50 * time.Millisecond)
			sendKeyAndWait(tm, key)

			if answer, ok := finalAnswer(t, tm); ok || answer != "" {
				t.Errorf("Answer() = (%q, %v), want absent", answer, ok)
			}
		})
	}
}

// =============================================================================
// Terminal
// =============================================================================

func TestTerminalSpeak(t *testing.T) {
	var out bytes.Buffer
	term := voice.NewTerminal(strings.NewReader(""), &out)

	term.Speak("Added milk to Shopping List.")
	if !strings.Contains(out.String(), "Added milk to Shopping List.") {
		t.Errorf("output = %q", out.String())
	}
}

func TestTerminalReadsLines(t *testing.T) {
	var out bytes.Buffer
	term := voice.NewTerminal(strings.NewReader("Costco\nyes\n"), &out)
	ctx := context.Background()

	first, ok, err := term.RequestFollowUp(ctx, "List name?")
	if err != nil || !ok || first != "Costco" {
		t.Errorf("first = (%q, %v, %v)", first, ok, err)
	}
	second, ok, err := term.RequestFollowUp(ctx, "Sure?")
	if err != nil || !ok || second != "yes" {
		t.Errorf("second = (%q, %v, %v)", second, ok, err)
	}
	if !strings.Contains(out.String(), "List name?") {
		t.Errorf("prompt not written: %q", out.String())
	}
}

func TestTerminalEOFIsAbsent(t *testing.T) {
	term := voice.NewTerminal(strings.NewReader(""), io.Discard)

	answer, ok, err := term.RequestFollowUp(context.Background(), "List name?")
	if err != nil || ok || answer != "" {
		t.Errorf("RequestFollowUp() = (%q, %v, %v), want absent", answer, ok, err)
	}
}

func TestTerminalLastLineWithoutNewline(t *testing.T) {
	term := voice.NewTerminal(strings.NewReader("Pharmacy"), io.Discard)

	answer, ok, _ := term.RequestFollowUp(context.Background(), "List name?")
	if !ok || answer != "Pharmacy" {
		t.Errorf("RequestFollowUp() = (%q, %v)", answer, ok)
	}
}

func TestTerminalFollowUpTimeout(t *testing.T) {
	r, w := io.Pipe()
	defer func() { _ = w.Close() }()
	term := voice.NewTerminal(r, io.Discard)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, ok, err := term.RequestFollowUp(ctx, "List name?")
	if ok || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("RequestFollowUp() = (%v, %v), want deadline exceeded", ok, err)
	}
}

func TestTerminalFollowUpAfterTimeoutReusesReader(t *testing.T) {
	r, w := io.Pipe()
	defer func() { _ = w.Close() }()
	term := voice.NewTerminal(r, io.Discard)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	_, _, err := term.RequestFollowUp(ctx, "List name?")
	cancel()
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("first RequestFollowUp() error = %v, want deadline exceeded", err)
	}

	go func() { _, _ = io.WriteString(w, "Costco\n") }()

	ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	answer, ok, err := term.RequestFollowUp(ctx, "List name?")
	if err != nil || !ok || answer != "Costco" {
		t.Errorf("second RequestFollowUp() = (%q, %v, %v), want Costco", answer, ok, err)
	}
}
