// Package listmatch resolves spoken list names to remote list ids.
package listmatch

import (
	"strings"

	"grocat/backend"
)

// MatchKind classifies how a new list name relates to existing lists.
type MatchKind int

const (
	NoMatch MatchKind = iota
	SimilarMatch
	ExactMatch
)

func (k MatchKind) String() string {
	switch k {
	case ExactMatch:
		return "exact"
	case SimilarMatch:
		return "similar"
	default:
		return "none"
	}
}

// Match is the result of FindSimilar. Name is the existing list's name as stored remotely.
type Match struct {
	Kind MatchKind
	Name string
	ID   string
}

// ResolveListID returns the id of the list named spoken, or "" when none matches.
// Names compare case-insensitively; when no list matches and the spoken name
// contains the word "list", the trailing "list" is dropped and the lists are
// compared again, so "grocery list" finds "Grocery".
func ResolveListID(spoken string, lists []backend.ListSummary) string {
	want := strings.ToLower(strings.TrimSpace(spoken))
	if want == "" {
		return ""
	}
	if id := exactID(want, lists); id != "" {
		return id
	}
	if stripped, ok := stripListSuffix(want); ok {
		return exactID(stripped, lists)
	}
	return ""
}

func exactID(name string, lists []backend.ListSummary) string {
	if l := backend.FindListByName(lists, name); l != nil {
		return l.ID
	}
	return ""
}

// stripListSuffix removes the segment after the last "list" in name.
func stripListSuffix(name string) (string, bool) {
	if !strings.Contains(name, "list") {
		return "", false
	}
	parts := strings.Split(name, "list")
	stripped := strings.TrimSpace(strings.Join(parts[:len(parts)-1], "list"))
	if stripped == "" {
		return "", false
	}
	return stripped, true
}

// FindSimilar reports whether creating newName would duplicate an existing list.
// A list whose name equals newName is an ExactMatch wherever it appears;
// otherwise the first list whose name contains newName is a SimilarMatch.
func FindSimilar(newName string, lists []backend.ListSummary) Match {
	want := strings.ToLower(strings.TrimSpace(newName))
	if want == "" {
		return Match{Kind: NoMatch}
	}

	var similar *backend.ListSummary
	for i := range lists {
		existing := strings.ToLower(lists[i].Name)
		if !strings.Contains(existing, want) {
			continue
		}
		if existing == want {
			return Match{Kind: ExactMatch, Name: lists[i].Name, ID: lists[i].ID}
		}
		if similar == nil {
			similar = &lists[i]
		}
	}
	if similar != nil {
		return Match{Kind: SimilarMatch, Name: similar.Name, ID: similar.ID}
	}
	return Match{Kind: NoMatch}
}
