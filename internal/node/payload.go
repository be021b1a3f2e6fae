package node

// Payload is the kind-specific data carried by a placeholder. Payloads hold
// data only; host callbacks are resolved at decoration time.
type Payload interface {
	// Clone returns a deep copy of the payload.
	Clone() Payload
}

// Dataset describes a knowledge dataset attached to the context placeholder.
type Dataset struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// ContextPayload is the payload of context-block nodes.
type ContextPayload struct {
	Datasets         []Dataset
	CanNotAddContext bool
}

// Clone implements Payload.
func (p *ContextPayload) Clone() Payload {
	c := *p
	c.Datasets = append([]Dataset(nil), p.Datasets...)
	if c.Datasets == nil {
		c.Datasets = []Dataset{}
	}
	return &c
}

// RoleName holds the display names of the conversation roles.
type RoleName struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// HistoryPayload is the payload of history-block nodes.
type HistoryPayload struct {
	RoleName RoleName
}

// Clone implements Payload.
func (p *HistoryPayload) Clone() Payload {
	c := *p
	return &c
}

// VariableValuePayload is the payload of variable-value-block nodes.
type VariableValuePayload struct {
	Name string
}

// Clone implements Payload.
func (p *VariableValuePayload) Clone() Payload {
	c := *p
	return &c
}

// WorkflowVariablePayload is the payload of workflow-variable-block nodes.
// The first path element is the owning node id or a scope name such as
// "sys", "env", "conversation" or "rag".
type WorkflowVariablePayload struct {
	Path []string
}

// Clone implements Payload.
func (p *WorkflowVariablePayload) Clone() Payload {
	return &WorkflowVariablePayload{Path: append([]string{}, p.Path...)}
}

// FormInput describes one field of a human-input form.
type FormInput struct {
	Type               string `json:"type"`
	OutputVariableName string `json:"output_variable_name"`
	Default            string `json:"default"`
	// Options is the raw JSON list of choices for select-like inputs.
	Options string `json:"options"`
}

// HITLPayload is the payload of hitl-input-block nodes.
type HITLPayload struct {
	VariableName string
	NodeID       string
	FormInputs   []FormInput
}

// Clone implements Payload.
func (p *HITLPayload) Clone() Payload {
	c := *p
	c.FormInputs = append([]FormInput{}, p.FormInputs...)
	return &c
}
