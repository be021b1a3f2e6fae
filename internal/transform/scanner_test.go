package transform

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/promptslot/internal/node"
)

func kinds(segs []Segment) []node.Kind {
	out := make([]node.Kind, len(segs))
	for i, s := range segs {
		out[i] = s.Kind
	}
	return out
}

func TestScan(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		kinds []node.Kind
	}{
		{"empty", "", []node.Kind{}},
		{"plain", "just text", []node.Kind{""}},
		{"marker", "{{#query#}}", []node.Kind{node.KindQuery}},
		{"surrounded", "a{{#context#}}b", []node.Kind{"", node.KindContext, ""}},
		{"adjacent", "{{#query#}}{{#query#}}", []node.Kind{node.KindQuery, node.KindQuery}},
		{"variable", "hi {{name}}!", []node.Kind{"", node.KindVariableValue, ""}},
		{"workflow", "{{#node-1.text#}}", []node.Kind{node.KindWorkflowVariable}},
		{"hitl", "{{#$output.answer#}}", []node.Kind{node.KindHITLInput}},
		{
			"mixed",
			"{{#histories#}} {{#url#}}{{#current#}}{{#last_run#}}{{#error_message#}}",
			[]node.Kind{node.KindHistory, "", node.KindRequestURL, node.KindCurrent, node.KindLastRun, node.KindErrorMessage},
		},
		{"name too long", "{{" + strings.Repeat("a", 31) + "}}", []node.Kind{""}},
		{"unterminated", "{{#context#", []node.Kind{""}},
		{"invalid name", "{{1abc}}", []node.Kind{""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segs := Scan(tt.text)
			got := kinds(segs)
			if len(tt.kinds) == 0 {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tt.kinds, got)
			}

			// Segments cover the input exactly and in order.
			var sb strings.Builder
			pos := 0
			for _, s := range segs {
				assert.Equal(t, pos, s.Start)
				assert.Equal(t, tt.text[s.Start:s.End], s.Text)
				sb.WriteString(s.Text)
				pos = s.End
			}
			assert.Equal(t, tt.text, sb.String())
		})
	}
}

func TestScan_Groups(t *testing.T) {
	segs := Scan("x {{#node_1.obj.field#}} y")
	require.Len(t, segs, 3)
	m := segs[1].Match
	assert.Equal(t, 2, m.Start)
	assert.Equal(t, "{{#node_1.obj.field#}}", m.Text)
	assert.Equal(t, []string{"{{#node_1.obj.field#}}", "node_1", ".obj.field"}, m.Groups)
}

func TestScanner_RegistrationOrderWins(t *testing.T) {
	reg := node.DefaultRegistry()
	query := FromClass(reg, mustClass(t, reg, node.KindQuery))
	greedy := Registration{
		Kind:   node.KindCurrent,
		Match:  PatternMatcher(regexp.MustCompile(`\{\{#[a-z]+#\}\}`)),
		Create: query.Create,
	}

	s, err := NewScanner(query, greedy)
	require.NoError(t, err)
	assert.Equal(t, []node.Kind{node.KindQuery, "", node.KindCurrent}, kinds(s.Scan("{{#query#}} {{#other#}}")))

	s, err = NewScanner(greedy, query)
	require.NoError(t, err)
	assert.Equal(t, []node.Kind{node.KindCurrent, "", node.KindCurrent}, kinds(s.Scan("{{#query#}} {{#other#}}")))
}

func TestNewScanner_RejectsIncompleteRegistration(t *testing.T) {
	_, err := NewScanner(Registration{Kind: node.KindQuery})
	assert.ErrorIs(t, err, ErrNoMatcher)
}

func mustClass(t *testing.T, reg *node.Registry, kind node.Kind) node.Class {
	t.Helper()
	c, err := reg.Class(kind)
	require.NoError(t, err)
	return c
}
