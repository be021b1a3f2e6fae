package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dshills/promptslot/internal/event"
	"github.com/dshills/promptslot/internal/node"
	"github.com/dshills/promptslot/internal/transform"
)

// ParseRequest is the body of POST /v1/parse.
type ParseRequest struct {
	Text string `json:"text"`
}

// Segment is one scanned run of the parsed text.
type Segment struct {
	Start int       `json:"start"`
	End   int       `json:"end"`
	Text  string    `json:"text"`
	Kind  node.Kind `json:"kind,omitempty"`
}

// Placeholder describes one materialized placeholder.
type Placeholder struct {
	Kind      node.Kind `json:"kind"`
	Text      string    `json:"text"`
	Paragraph int       `json:"paragraph"`
}

// ParseResponse is the body returned by POST /v1/parse.
type ParseResponse struct {
	Text         string          `json:"text"`
	Segments     []Segment       `json:"segments"`
	Placeholders []Placeholder   `json:"placeholders"`
	Document     json.RawMessage `json:"document"`
}

// RenderRequest is the body of POST /v1/render.
type RenderRequest struct {
	Document json.RawMessage `json:"document"`
}

// RenderResponse is the body returned by POST /v1/render.
type RenderResponse struct {
	Text         string `json:"text"`
	Placeholders int    `json:"placeholders"`
}

// Scope lists the variables workflow-variable placeholders may refer to.
type Scope struct {
	NodeIDs      []string `json:"node_ids"`
	Environment  []string `json:"environment"`
	Conversation []string `json:"conversation"`
	RAG          []string `json:"rag"`
}

// ValidateRequest is the body of POST /v1/validate. A nil scope accepts
// every variable.
type ValidateRequest struct {
	Text  string `json:"text"`
	Scope *Scope `json:"scope,omitempty"`
}

// Issue is one problem found by validation.
type Issue struct {
	Kind    node.Kind `json:"kind"`
	Text    string    `json:"text"`
	Message string    `json:"message"`
}

// ValidateResponse is the body returned by POST /v1/validate.
type ValidateResponse struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues"`
}

// PublishRequest is the body of POST /v1/events.
type PublishRequest struct {
	Type       event.Type      `json:"type"`
	InstanceID string          `json:"instanceId"`
	Payload    json.RawMessage `json:"payload"`
}

// PublishResponse is the body returned by POST /v1/events.
type PublishResponse struct {
	ID string `json:"id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if !s.decode(w, r, &req) {
		return
	}

	root, err := s.transformer.Parse(req.Text)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, "parse failed", err)
		return
	}
	doc, err := s.registry.MarshalDocument(root)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, "encode document", err)
		return
	}

	resp := ParseResponse{
		Text:         root.TextContent(),
		Segments:     []Segment{},
		Placeholders: []Placeholder{},
		Document:     doc,
	}
	for _, seg := range s.transformer.Scanner().Scan(req.Text) {
		resp.Segments = append(resp.Segments, Segment{
			Start: seg.Start, End: seg.End, Text: seg.Text, Kind: seg.Kind,
		})
	}
	for i, p := range root.Paragraphs() {
		for _, c := range p.Children() {
			if ph, ok := c.(*node.Placeholder); ok {
				resp.Placeholders = append(resp.Placeholders, Placeholder{
					Kind: ph.Kind(), Text: ph.TextContent(), Paragraph: i,
				})
			}
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req RenderRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Document) == 0 {
		s.fail(w, http.StatusBadRequest, "document is required", nil)
		return
	}

	root, err := s.registry.UnmarshalDocument(req.Document)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if !errors.Is(err, node.ErrInvalidDocument) && !errors.Is(err, node.ErrKindNotRegistered) {
			status = http.StatusInternalServerError
		}
		s.fail(w, status, "invalid document", err)
		return
	}
	s.writeJSON(w, http.StatusOK, RenderResponse{
		Text:         root.TextContent(),
		Placeholders: len(root.Placeholders()),
	})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if !s.decode(w, r, &req) {
		return
	}

	resp := ValidateResponse{Issues: DisabledKinds(s.registry, req.Text)}

	root, err := s.transformer.Parse(req.Text)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, "parse failed", err)
		return
	}
	env := node.DecorateEnv{Logger: s.logger}
	if req.Scope != nil {
		env.Scope = &node.VariableScope{
			NodeIDs:      req.Scope.NodeIDs,
			Environment:  req.Scope.Environment,
			Conversation: req.Scope.Conversation,
			RAG:          req.Scope.RAG,
		}
	}
	for _, p := range root.Placeholders() {
		d, err := s.registry.Decorate(p, env)
		if err != nil {
			s.fail(w, http.StatusInternalServerError, "decorate failed", err)
			return
		}
		if issue, ok := IssueFor(d); ok {
			resp.Issues = append(resp.Issues, issue)
		}
	}

	resp.Valid = len(resp.Issues) == 0
	s.writeJSON(w, http.StatusOK, resp)
}

// DisabledKinds reports placeholder text of kinds reg does not enable.
// Such text stays plain text in the document.
func DisabledKinds(reg *node.Registry, text string) []Issue {
	issues := []Issue{}
	for _, seg := range transform.Scan(text) {
		if !seg.IsPlain() && !reg.Has(seg.Kind) {
			issues = append(issues, Issue{
				Kind: seg.Kind, Text: seg.Text, Message: "placeholder kind not enabled",
			})
		}
	}
	return issues
}

// IssueFor reports a degraded decoration or a workflow variable missing
// from the scope.
func IssueFor(d node.Decoration) (Issue, bool) {
	issue := Issue{Kind: d.Kind, Text: d.Text}
	if d.Degraded {
		issue.Message = fmt.Sprintf("degraded: %v", d.Err)
		return issue, true
	}
	if props, ok := d.Props.(node.WorkflowVariableProps); ok && !props.Valid {
		issue.Message = "unknown variable " + props.NodeID + "." + props.VarName
		return issue, true
	}
	return Issue{}, false
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req PublishRequest
	if !s.decode(w, r, &req) {
		return
	}
	payload := req.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}

	ev, err := event.New(req.Type, req.InstanceID, payload)
	if err != nil {
		s.fail(w, http.StatusBadRequest, "invalid event", err)
		return
	}
	if err := s.channel.Publish(r.Context(), ev); err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, event.ErrInvalidEvent) {
			status = http.StatusBadRequest
		}
		s.fail(w, status, "publish failed", err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, PublishResponse{ID: ev.Metadata.ID})
}

// decode reads a JSON body into v, writing a 400 response on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.fail(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, status int, msg string, err error) {
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "error", msg)
	} else {
		s.logger.Debug("request rejected", "status", status, "error", msg)
	}
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response encode failed", "error", err)
	}
}
