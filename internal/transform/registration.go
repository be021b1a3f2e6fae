package transform

import (
	"regexp"
	"strings"

	"github.com/dshills/promptslot/internal/node"
)

// Match is one recognised placeholder span inside a piece of text.
type Match struct {
	Start int
	End   int
	Text  string
	// Groups holds the regexp submatches; Groups[0] is the whole match.
	Groups []string
}

// Matcher returns the first match in text.
type Matcher func(text string) (Match, bool)

// Factory builds the placeholder for a match, carrying the format of the
// text run it was found in.
type Factory func(m Match, format node.Format) (*node.Placeholder, error)

// Registration pairs a kind with its matcher and factory.
type Registration struct {
	Kind   node.Kind
	Match  Matcher
	Create Factory
}

// TokenMatcher matches the literal token.
func TokenMatcher(token string) Matcher {
	return func(text string) (Match, bool) {
		i := strings.Index(text, token)
		if i < 0 {
			return Match{}, false
		}
		return Match{Start: i, End: i + len(token), Text: token, Groups: []string{token}}, true
	}
}

// PatternMatcher matches the leftmost match of re.
func PatternMatcher(re *regexp.Regexp) Matcher {
	return func(text string) (Match, bool) {
		loc := re.FindStringSubmatchIndex(text)
		if loc == nil {
			return Match{}, false
		}
		groups := make([]string, len(loc)/2)
		for i := range groups {
			if loc[2*i] >= 0 {
				groups[i] = text[loc[2*i]:loc[2*i+1]]
			}
		}
		return Match{Start: loc[0], End: loc[1], Text: text[loc[0]:loc[1]], Groups: groups}, true
	}
}

// FromClass derives the registration of a registered class.
func FromClass(reg *node.Registry, c node.Class) Registration {
	kind := c.Kind()
	r := Registration{
		Kind: kind,
		Create: func(m Match, format node.Format) (*node.Placeholder, error) {
			return reg.CreateFromMatch(kind, m.Groups, format)
		},
	}
	if tok := c.Token(); tok != "" {
		r.Match = TokenMatcher(tok)
	} else if re := c.Pattern(); re != nil {
		r.Match = PatternMatcher(re)
	}
	return r
}

// Registrations returns the registrations of every class in reg, in
// registration order. Classes without a token or pattern are skipped.
func Registrations(reg *node.Registry) []Registration {
	var out []Registration
	for _, c := range reg.Classes() {
		r := FromClass(reg, c)
		if r.Match != nil {
			out = append(out, r)
		}
	}
	return out
}
