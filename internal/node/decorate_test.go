package node

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/promptslot/internal/logging"
)

func TestDecorate_ContextWithoutDatasets(t *testing.T) {
	reg := DefaultRegistry()
	n, err := reg.Create(KindContext, nil)
	require.NoError(t, err)

	d, err := reg.Decorate(n, DecorateEnv{})
	require.NoError(t, err)

	props, ok := d.Props.(ContextProps)
	require.True(t, ok)
	assert.Len(t, props.Datasets, 0)
	assert.False(t, d.Degraded)
	assert.Equal(t, ContextToken, d.Text)
}

func TestDecorate_CallbacksAndSelection(t *testing.T) {
	reg := DefaultRegistry()
	n, err := reg.Create(KindHistory, &HistoryPayload{RoleName: RoleName{User: "U", Assistant: "A"}})
	require.NoError(t, err)

	var edited RoleName
	env := DecorateEnv{
		Callbacks: func(kind Kind, key Key) Callbacks {
			if kind != KindHistory || key != n.Key() {
				return Callbacks{}
			}
			return Callbacks{OnEditRole: func(_ Key, r RoleName) { edited = r }}
		},
		Selected: func(key Key) bool { return key == n.Key() },
	}

	d, err := reg.Decorate(n, env)
	require.NoError(t, err)
	assert.True(t, d.Selected)
	require.NotNil(t, d.Callbacks.OnEditRole)

	d.Callbacks.OnEditRole(n.Key(), RoleName{User: "X"})
	assert.Equal(t, "X", edited.User)
	assert.Equal(t, HistoryProps{RoleName: RoleName{User: "U", Assistant: "A"}}, d.Props)
}

func TestDecorate_WorkflowVariableValidity(t *testing.T) {
	reg := DefaultRegistry()
	scope := &VariableScope{
		NodeIDs:      []string{"1711"},
		Environment:  []string{"api_key"},
		Conversation: []string{"summary"},
	}

	tests := []struct {
		path  []string
		valid bool
	}{
		{[]string{"1711", "text"}, true},
		{[]string{"9999", "text"}, false},
		{[]string{"env", "api_key"}, true},
		{[]string{"env", "missing"}, false},
		{[]string{"conversation", "summary"}, true},
		{[]string{"rag", "anything"}, false},
		{[]string{"sys", "query"}, true},
	}

	for _, tt := range tests {
		n, err := reg.Create(KindWorkflowVariable, &WorkflowVariablePayload{Path: tt.path})
		require.NoError(t, err)

		d, err := reg.Decorate(n, DecorateEnv{Scope: scope})
		require.NoError(t, err)
		props := d.Props.(WorkflowVariableProps)
		assert.Equal(t, tt.valid, props.Valid, "path %v", tt.path)
		assert.Equal(t, tt.path[0], props.NodeID)
	}
}

func TestDecorate_WorkflowVariableNilScopeAcceptsAll(t *testing.T) {
	reg := DefaultRegistry()
	n, err := reg.Create(KindWorkflowVariable, &WorkflowVariablePayload{Path: []string{"env", "x"}})
	require.NoError(t, err)

	d, err := reg.Decorate(n, DecorateEnv{
		Callbacks: func(Kind, Key) Callbacks {
			return Callbacks{GetVarType: func([]string) string { return "string" }}
		},
	})
	require.NoError(t, err)
	props := d.Props.(WorkflowVariableProps)
	assert.True(t, props.Valid)
	assert.True(t, props.IsEnv)
	assert.Equal(t, "string", props.VarType)
}

func TestDecorate_HITLMalformedOptionsDegrades(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.Config{Level: logging.LevelDebug, Output: &buf})

	reg := DefaultRegistry()
	n, err := reg.Create(KindHITLInput, &HITLPayload{
		VariableName: "choice",
		NodeID:       "42",
		FormInputs: []FormInput{
			{Type: "select", OutputVariableName: "choice", Options: `["a", "b"`},
		},
	})
	require.NoError(t, err)

	d, err := reg.Decorate(n, DecorateEnv{Logger: logger})
	require.NoError(t, err)
	assert.True(t, d.Degraded)
	assert.ErrorIs(t, d.Err, ErrInvalidPayload)

	props := d.Props.(HITLProps)
	require.NotNil(t, props.FormInput)
	assert.Equal(t, "choice", props.VariableName)
	assert.Contains(t, buf.String(), "degraded placeholder decoration")
}

func TestDecorate_HITLOptions(t *testing.T) {
	reg := DefaultRegistry()
	n, err := reg.Create(KindHITLInput, &HITLPayload{
		VariableName: "choice",
		FormInputs: []FormInput{
			{Type: "text", OutputVariableName: "other"},
			{Type: "select", OutputVariableName: "choice", Options: `["yes","no"]`},
		},
	})
	require.NoError(t, err)

	d, err := reg.Decorate(n, DecorateEnv{})
	require.NoError(t, err)
	assert.False(t, d.Degraded)
	assert.Equal(t, []string{"yes", "no"}, d.Props.(HITLProps).Options)
}
