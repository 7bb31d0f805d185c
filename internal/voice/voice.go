// Package voice provides the terminal front-end intents speak through.
package voice

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Terminal speaks to a writer and asks follow-ups on a reader. On a TTY the
// follow-up is an interactive bubbletea prompt; otherwise one line is read.
type Terminal struct {
	in          io.Reader
	lines       *bufio.Reader
	out         io.Writer
	interactive bool

	// pending is the line read still in flight after a cancelled follow-up.
	// The next follow-up waits on it instead of starting a second reader.
	mu      sync.Mutex
	pending chan lineResult

	speechStyle lipgloss.Style
	promptStyle lipgloss.Style
}

// NewTerminal creates a terminal voice. in is interactive when it is a TTY.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	interactive := false
	if f, ok := in.(*os.File); ok {
		interactive = term.IsTerminal(int(f.Fd()))
	}
	return &Terminal{
		in:          in,
		lines:       bufio.NewReader(in),
		out:         out,
		interactive: interactive,
		speechStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")),
		promptStyle: lipgloss.NewStyle().
			Bold(true),
	}
}

// SetInteractive forces the follow-up mode.
func (t *Terminal) SetInteractive(interactive bool) {
	t.interactive = interactive
}

// Speak writes one styled line.
func (t *Terminal) Speak(text string) {
	_, _ = fmt.Fprintln(t.out, t.speechStyle.Render(text))
}

// RequestFollowUp asks prompt and returns the answer. Skipping, an empty
// answer or end of input is reported as ok == false. A cancelled ctx aborts
// the prompt and is returned as the error.
func (t *Terminal) RequestFollowUp(ctx context.Context, prompt string) (string, bool, error) {
	if t.interactive {
		return t.runProgram(ctx, prompt)
	}
	return t.readLine(ctx, prompt)
}

func (t *Terminal) runProgram(ctx context.Context, prompt string) (string, bool, error) {
	model := NewFollowUpModel(prompt)
	p := tea.NewProgram(model,
		tea.WithContext(ctx),
		tea.WithInput(t.in),
		tea.WithOutput(t.out),
	)
	final, err := p.Run()
	if err != nil {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		return "", false, fmt.Errorf("follow-up prompt failed: %w", err)
	}
	answer, ok := final.(*FollowUpModel).Answer()
	return answer, ok, nil
}

type lineResult struct {
	line string
	err  error
}

func (t *Terminal) readLine(ctx context.Context, prompt string) (string, bool, error) {
	_, _ = fmt.Fprintf(t.out, "%s ", t.promptStyle.Render(prompt))

	result := t.nextLine()
	select {
	case <-ctx.Done():
		return "", false, ctx.Err()
	case r := <-result:
		t.mu.Lock()
		t.pending = nil
		t.mu.Unlock()

		if r.err != nil && !errors.Is(r.err, io.EOF) {
			return "", false, r.err
		}
		answer := strings.TrimSpace(r.line)
		return answer, answer != "", nil
	}
}

// nextLine returns the channel of the read in flight, starting one if none is.
func (t *Terminal) nextLine() chan lineResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending != nil {
		return t.pending
	}
	result := make(chan lineResult, 1)
	go func() {
		line, err := t.lines.ReadString('\n')
		result <- lineResult{line: line, err: err}
	}()
	t.pending = result
	return result
}
