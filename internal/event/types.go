package event

import "strings"

// Type is a hierarchical event type in dot notation.
type Type string

// Broadcast event types.
const (
	TypeUpdateValue     Type = "prompt-editor.update-value"
	TypeInsertQuickly   Type = "prompt-editor.insert-quickly"
	TypeDatasetsUpdated Type = "prompt-editor.datasets-updated"
	TypeHistoryUpdated  Type = "prompt-editor.history-updated"
)

// Wildcards accepted in subscription patterns.
const (
	// WildcardSingle matches exactly one segment.
	WildcardSingle = "*"

	// WildcardMulti matches zero or more segments.
	WildcardMulti = "**"

	separator = "."
)

// String returns the type as a string.
func (t Type) String() string { return string(t) }

func (t Type) segments() []string {
	if t == "" {
		return nil
	}
	return strings.Split(string(t), separator)
}

// IsValid reports whether t is non-empty and has no empty segments.
func (t Type) IsValid() bool {
	if t == "" {
		return false
	}
	for _, seg := range t.segments() {
		if seg == "" {
			return false
		}
	}
	return true
}

// Matches reports whether t matches pattern.
func (t Type) Matches(pattern Type) bool {
	return matchSegments(t.segments(), pattern.segments())
}

func matchSegments(typ, pattern []string) bool {
	ti := 0
	for pi := 0; pi < len(pattern); pi++ {
		switch pattern[pi] {
		case WildcardMulti:
			for ; ti <= len(typ); ti++ {
				if matchSegments(typ[ti:], pattern[pi+1:]) {
					return true
				}
			}
			return false
		case WildcardSingle:
			if ti >= len(typ) {
				return false
			}
		default:
			if ti >= len(typ) || pattern[pi] != typ[ti] {
				return false
			}
		}
		ti++
	}
	return ti == len(typ)
}
