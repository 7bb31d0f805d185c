package utils

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoInput is returned when the reader is exhausted before a line was read.
var ErrNoInput = errors.New("no input")

// PromptLineWithReader writes prompt and reads one trimmed line.
// An empty line is returned as ("", nil); EOF yields ErrNoInput.
func PromptLineWithReader(prompt string, reader io.Reader, writer io.Writer) (string, error) {
	if writer != nil {
		_, _ = fmt.Fprintf(writer, "%s ", prompt)
	}
	scanner := bufio.NewScanner(reader)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", ErrNoInput
	}
	return strings.TrimSpace(scanner.Text()), nil
}

// IsAffirmative reports whether a spoken or typed answer means yes.
func IsAffirmative(answer string) bool {
	switch strings.Trim(strings.ToLower(strings.TrimSpace(answer)), ".!") {
	case "y", "yes", "yeah", "yep", "sure", "ok", "okay", "do it", "create it":
		return true
	}
	return false
}
