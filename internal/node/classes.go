package node

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Fixed placeholder tokens.
const (
	ContextToken      = "{{#context#}}"
	HistoryToken      = "{{#histories#}}"
	QueryToken        = "{{#query#}}"
	RequestURLToken   = "{{#url#}}"
	CurrentToken      = "{{#current#}}"
	LastRunToken      = "{{#last_run#}}"
	ErrorMessageToken = "{{#error_message#}}"
)

// Patterns of parametrized placeholders.
var (
	VariableValuePattern    = regexp.MustCompile(`\{\{([a-zA-Z_][a-zA-Z0-9_]{0,29})\}\}`)
	WorkflowVariablePattern = regexp.MustCompile(`\{\{#([a-zA-Z0-9_-]{1,50})((?:\.[a-zA-Z_][a-zA-Z0-9_]{0,29}){1,10})#\}\}`)
	HITLOutputPattern       = regexp.MustCompile(`\{\{#\$output\.([a-zA-Z_][a-zA-Z0-9_]{0,29})#\}\}`)
)

// Workflow variable scopes that are not node ids.
const (
	ScopeSystem       = "sys"
	ScopeEnvironment  = "env"
	ScopeConversation = "conversation"
	ScopeRAG          = "rag"
)

// MarkerProps are the decoration props of payload-free kinds.
type MarkerProps struct {
	Text string
}

// ContextProps are the decoration props of context-block nodes.
type ContextProps struct {
	Datasets         []Dataset
	CanNotAddContext bool
}

// HistoryProps are the decoration props of history-block nodes.
type HistoryProps struct {
	RoleName RoleName
}

// VariableValueProps are the decoration props of variable-value-block nodes.
type VariableValueProps struct {
	Name string
}

// WorkflowVariableProps are the decoration props of workflow-variable-block nodes.
type WorkflowVariableProps struct {
	Path           []string
	NodeID         string
	VarName        string
	IsSystem       bool
	IsEnv          bool
	IsConversation bool
	IsRAG          bool
	Valid          bool
	VarType        string
}

// HITLProps are the decoration props of hitl-input-block nodes.
type HITLProps struct {
	VariableName string
	NodeID       string
	FormInput    *FormInput
	Options      []string
}

// BuiltinClasses returns a class for every built-in placeholder kind, in the
// order their transforms are registered by default.
func BuiltinClasses() []Class {
	return []Class{
		&contextClass{},
		&historyClass{},
		newMarkerClass(KindQuery, QueryToken),
		newMarkerClass(KindRequestURL, RequestURLToken),
		newMarkerClass(KindCurrent, CurrentToken),
		newMarkerClass(KindLastRun, LastRunToken),
		newMarkerClass(KindErrorMessage, ErrorMessageToken),
		&hitlClass{},
		&workflowVariableClass{},
		&variableValueClass{},
	}
}

// fixedToken holds the parts shared by fixed-token kinds.
type fixedToken struct {
	kind  Kind
	token string
}

func (f fixedToken) Kind() Kind                        { return f.kind }
func (f fixedToken) Version() int                      { return 1 }
func (f fixedToken) Isolated() bool                    { return false }
func (f fixedToken) Token() string                     { return f.token }
func (f fixedToken) Pattern() *regexp.Regexp           { return nil }
func (f fixedToken) Projection(Payload) string         { return f.token }
func (f fixedToken) PayloadFromMatch([]string) Payload { return nil }

func (f fixedToken) EncodePayload(doc string, _ Payload) (string, error) {
	return doc, nil
}

type markerClass struct {
	fixedToken
}

func newMarkerClass(kind Kind, token string) *markerClass {
	return &markerClass{fixedToken{kind: kind, token: token}}
}

func (c *markerClass) DefaultPayload() Payload { return nil }

func (c *markerClass) CheckPayload(p Payload) error {
	if p != nil {
		return fmt.Errorf("%w: %s takes no payload, got %T", ErrInvalidPayload, c.kind, p)
	}
	return nil
}

func (c *markerClass) DecodePayload(gjson.Result) Payload { return nil }

func (c *markerClass) Props(n *Placeholder, _ DecorateEnv) (any, error) {
	return MarkerProps{Text: n.TextContent()}, nil
}

type contextClass struct{}

func (contextClass) Kind() Kind                        { return KindContext }
func (contextClass) Version() int                      { return 1 }
func (contextClass) Isolated() bool                    { return false }
func (contextClass) Token() string                     { return ContextToken }
func (contextClass) Pattern() *regexp.Regexp           { return nil }
func (contextClass) Projection(Payload) string         { return ContextToken }
func (contextClass) PayloadFromMatch([]string) Payload { return &ContextPayload{Datasets: []Dataset{}} }
func (contextClass) DefaultPayload() Payload           { return &ContextPayload{Datasets: []Dataset{}} }

func (contextClass) CheckPayload(p Payload) error {
	if _, ok := p.(*ContextPayload); !ok {
		return fmt.Errorf("%w: %s expects *ContextPayload, got %T", ErrInvalidPayload, KindContext, p)
	}
	return nil
}

func (contextClass) EncodePayload(doc string, p Payload) (string, error) {
	cp := p.(*ContextPayload)
	datasets := cp.Datasets
	if datasets == nil {
		datasets = []Dataset{}
	}
	doc, err := sjson.Set(doc, "datasets", datasets)
	if err != nil {
		return "", err
	}
	return sjson.Set(doc, "canNotAddContext", cp.CanNotAddContext)
}

func (contextClass) DecodePayload(obj gjson.Result) Payload {
	cp := &ContextPayload{Datasets: []Dataset{}}
	obj.Get("datasets").ForEach(func(_, v gjson.Result) bool {
		cp.Datasets = append(cp.Datasets, Dataset{
			ID:   v.Get("id").String(),
			Name: v.Get("name").String(),
			Type: v.Get("type").String(),
		})
		return true
	})
	cp.CanNotAddContext = obj.Get("canNotAddContext").Bool()
	return cp
}

func (contextClass) Props(n *Placeholder, _ DecorateEnv) (any, error) {
	cp := n.payload.(*ContextPayload)
	return ContextProps{
		Datasets:         append([]Dataset{}, cp.Datasets...),
		CanNotAddContext: cp.CanNotAddContext,
	}, nil
}

type historyClass struct{}

func (historyClass) Kind() Kind                        { return KindHistory }
func (historyClass) Version() int                      { return 1 }
func (historyClass) Isolated() bool                    { return false }
func (historyClass) Token() string                     { return HistoryToken }
func (historyClass) Pattern() *regexp.Regexp           { return nil }
func (historyClass) Projection(Payload) string         { return HistoryToken }
func (historyClass) PayloadFromMatch([]string) Payload { return &HistoryPayload{} }
func (historyClass) DefaultPayload() Payload           { return &HistoryPayload{} }

func (historyClass) CheckPayload(p Payload) error {
	if _, ok := p.(*HistoryPayload); !ok {
		return fmt.Errorf("%w: %s expects *HistoryPayload, got %T", ErrInvalidPayload, KindHistory, p)
	}
	return nil
}

func (historyClass) EncodePayload(doc string, p Payload) (string, error) {
	return sjson.Set(doc, "roleName", p.(*HistoryPayload).RoleName)
}

func (historyClass) DecodePayload(obj gjson.Result) Payload {
	return &HistoryPayload{RoleName: RoleName{
		User:      obj.Get("roleName.user").String(),
		Assistant: obj.Get("roleName.assistant").String(),
	}}
}

func (historyClass) Props(n *Placeholder, _ DecorateEnv) (any, error) {
	return HistoryProps{RoleName: n.payload.(*HistoryPayload).RoleName}, nil
}

type variableValueClass struct{}

func (variableValueClass) Kind() Kind              { return KindVariableValue }
func (variableValueClass) Version() int            { return 1 }
func (variableValueClass) Isolated() bool          { return false }
func (variableValueClass) Token() string           { return "" }
func (variableValueClass) Pattern() *regexp.Regexp { return VariableValuePattern }
func (variableValueClass) DefaultPayload() Payload { return &VariableValuePayload{} }

func (variableValueClass) PayloadFromMatch(groups []string) Payload {
	if len(groups) < 2 {
		return &VariableValuePayload{}
	}
	return &VariableValuePayload{Name: groups[1]}
}

func (variableValueClass) CheckPayload(p Payload) error {
	if _, ok := p.(*VariableValuePayload); !ok {
		return fmt.Errorf("%w: %s expects *VariableValuePayload, got %T", ErrInvalidPayload, KindVariableValue, p)
	}
	return nil
}

func (variableValueClass) Projection(p Payload) string {
	return "{{" + p.(*VariableValuePayload).Name + "}}"
}

func (variableValueClass) EncodePayload(doc string, p Payload) (string, error) {
	return sjson.Set(doc, "text", "{{"+p.(*VariableValuePayload).Name+"}}")
}

func (variableValueClass) DecodePayload(obj gjson.Result) Payload {
	text := obj.Get("text").String()
	if m := VariableValuePattern.FindStringSubmatch(text); m != nil && m[0] == text {
		return &VariableValuePayload{Name: m[1]}
	}
	return &VariableValuePayload{Name: strings.TrimSuffix(strings.TrimPrefix(text, "{{"), "}}")}
}

func (variableValueClass) Props(n *Placeholder, _ DecorateEnv) (any, error) {
	return VariableValueProps{Name: n.payload.(*VariableValuePayload).Name}, nil
}

type workflowVariableClass struct{}

func (workflowVariableClass) Kind() Kind              { return KindWorkflowVariable }
func (workflowVariableClass) Version() int            { return 1 }
func (workflowVariableClass) Isolated() bool          { return false }
func (workflowVariableClass) Token() string           { return "" }
func (workflowVariableClass) Pattern() *regexp.Regexp { return WorkflowVariablePattern }
func (workflowVariableClass) DefaultPayload() Payload { return &WorkflowVariablePayload{Path: []string{}} }

func (workflowVariableClass) PayloadFromMatch(groups []string) Payload {
	if len(groups) < 3 {
		return &WorkflowVariablePayload{Path: []string{}}
	}
	path := []string{groups[1]}
	path = append(path, strings.Split(strings.TrimPrefix(groups[2], "."), ".")...)
	return &WorkflowVariablePayload{Path: path}
}

func (workflowVariableClass) CheckPayload(p Payload) error {
	if _, ok := p.(*WorkflowVariablePayload); !ok {
		return fmt.Errorf("%w: %s expects *WorkflowVariablePayload, got %T", ErrInvalidPayload, KindWorkflowVariable, p)
	}
	return nil
}

func (workflowVariableClass) Projection(p Payload) string {
	return "{{#" + strings.Join(p.(*WorkflowVariablePayload).Path, ".") + "#}}"
}

func (workflowVariableClass) EncodePayload(doc string, p Payload) (string, error) {
	path := p.(*WorkflowVariablePayload).Path
	if path == nil {
		path = []string{}
	}
	return sjson.Set(doc, "variables", path)
}

func (workflowVariableClass) DecodePayload(obj gjson.Result) Payload {
	wp := &WorkflowVariablePayload{Path: []string{}}
	obj.Get("variables").ForEach(func(_, v gjson.Result) bool {
		wp.Path = append(wp.Path, v.String())
		return true
	})
	return wp
}

func (workflowVariableClass) Props(n *Placeholder, env DecorateEnv) (any, error) {
	path := n.payload.(*WorkflowVariablePayload).Path
	props := WorkflowVariableProps{Path: append([]string{}, path...), Valid: true}
	if len(path) == 0 {
		props.Valid = false
		return props, nil
	}
	props.NodeID = path[0]
	props.VarName = strings.Join(path[1:], ".")
	props.IsSystem = path[0] == ScopeSystem
	props.IsEnv = path[0] == ScopeEnvironment
	props.IsConversation = path[0] == ScopeConversation
	props.IsRAG = path[0] == ScopeRAG

	if env.Scope != nil {
		scope := env.Scope
		switch {
		case props.IsSystem:
		case props.IsEnv:
			props.Valid = slices.Contains(scope.Environment, props.VarName)
		case props.IsConversation:
			props.Valid = slices.Contains(scope.Conversation, props.VarName)
		case props.IsRAG:
			props.Valid = slices.Contains(scope.RAG, props.VarName)
		default:
			props.Valid = slices.Contains(scope.NodeIDs, props.NodeID)
		}
	}
	if env.Callbacks != nil {
		if cb := env.Callbacks(KindWorkflowVariable, n.key); cb.GetVarType != nil {
			props.VarType = cb.GetVarType(path)
		}
	}
	return props, nil
}

type hitlClass struct{}

func (hitlClass) Kind() Kind              { return KindHITLInput }
func (hitlClass) Version() int            { return 1 }
func (hitlClass) Isolated() bool          { return true }
func (hitlClass) Token() string           { return "" }
func (hitlClass) Pattern() *regexp.Regexp { return HITLOutputPattern }
func (hitlClass) DefaultPayload() Payload { return &HITLPayload{FormInputs: []FormInput{}} }

func (hitlClass) PayloadFromMatch(groups []string) Payload {
	hp := &HITLPayload{FormInputs: []FormInput{}}
	if len(groups) >= 2 {
		hp.VariableName = groups[1]
	}
	return hp
}

func (hitlClass) CheckPayload(p Payload) error {
	if _, ok := p.(*HITLPayload); !ok {
		return fmt.Errorf("%w: %s expects *HITLPayload, got %T", ErrInvalidPayload, KindHITLInput, p)
	}
	return nil
}

func (hitlClass) Projection(p Payload) string {
	return "{{#$output." + p.(*HITLPayload).VariableName + "#}}"
}

func (hitlClass) EncodePayload(doc string, p Payload) (string, error) {
	hp := p.(*HITLPayload)
	inputs := hp.FormInputs
	if inputs == nil {
		inputs = []FormInput{}
	}
	doc, err := sjson.Set(doc, "variableName", hp.VariableName)
	if err != nil {
		return "", err
	}
	if doc, err = sjson.Set(doc, "nodeId", hp.NodeID); err != nil {
		return "", err
	}
	return sjson.Set(doc, "formInputs", inputs)
}

func (hitlClass) DecodePayload(obj gjson.Result) Payload {
	hp := &HITLPayload{
		VariableName: obj.Get("variableName").String(),
		NodeID:       obj.Get("nodeId").String(),
		FormInputs:   []FormInput{},
	}
	obj.Get("formInputs").ForEach(func(_, v gjson.Result) bool {
		hp.FormInputs = append(hp.FormInputs, FormInput{
			Type:               v.Get("type").String(),
			OutputVariableName: v.Get("output_variable_name").String(),
			Default:            v.Get("default").String(),
			Options:            v.Get("options").String(),
		})
		return true
	})
	return hp
}

func (hitlClass) Props(n *Placeholder, _ DecorateEnv) (any, error) {
	hp := n.payload.(*HITLPayload)
	props := HITLProps{VariableName: hp.VariableName, NodeID: hp.NodeID}
	for i := range hp.FormInputs {
		if hp.FormInputs[i].OutputVariableName == hp.VariableName {
			in := hp.FormInputs[i]
			props.FormInput = &in
			break
		}
	}
	if props.FormInput == nil || props.FormInput.Options == "" {
		return props, nil
	}
	if err := json.Unmarshal([]byte(props.FormInput.Options), &props.Options); err != nil {
		return props, fmt.Errorf("%w: options of %q: %v", ErrInvalidPayload, hp.VariableName, err)
	}
	return props, nil
}
