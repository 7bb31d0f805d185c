// Package category maps spoken category names to remote category ids.
package category

import (
	"strings"

	"grocat/backend"
)

// Resolve returns the id of the first category whose heading matches name,
// or "" (uncategorized) when name is empty or nothing matches.
//
// Headings are compared by their first lower-cased word, since duplicates
// are presented as "Dairy (2)". For each heading, in list order, the rules
// are tried in this order: exact, name+"s", name+"ies", name minus its last
// character, name minus its last three characters. This is a plural
// heuristic, not a stemmer; short names can match loosely.
func Resolve(name string, categories *backend.Snapshot) string {
	if name == "" || categories == nil || len(categories.List.Items) == 0 {
		return ""
	}

	want := strings.ToLower(name)
	for _, heading := range categories.List.Items {
		fields := strings.Fields(strings.ToLower(heading.Value))
		if len(fields) == 0 {
			continue
		}
		if matches(want, fields[0]) {
			return heading.ID
		}
	}
	return ""
}

// Exists reports whether name resolves to any category.
func Exists(name string, categories *backend.Snapshot) bool {
	return Resolve(name, categories) != ""
}

func matches(name, heading string) bool {
	switch heading {
	case name, name + "s", name + "ies", trimRight(name, 1), trimRight(name, 3):
		return true
	}
	return false
}

// trimRight drops the last n characters of s, yielding "" when s is shorter.
func trimRight(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return ""
	}
	return string(r[:len(r)-n])
}
