package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/promptslot/internal/event"
	"github.com/dshills/promptslot/internal/node"
)

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	opts.Registerer = reg
	opts.Gatherer = reg
	s, err := New(opts)
	require.NoError(t, err)
	return s
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(v)
	default:
		data, err := json.Marshal(v)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := New(Options{Kinds: []node.Kind{"nope"}, Registerer: prometheus.NewRegistry()})
	assert.ErrorIs(t, err, node.ErrKindNotRegistered)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, Options{})
	rec := do(t, s.Handler(), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestParseAndRender(t *testing.T) {
	s := newTestServer(t, Options{})
	text := "A {{#context#}} B\n{{#query#}}"

	rec := do(t, s.Handler(), http.MethodPost, "/v1/parse", ParseRequest{Text: text})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	parsed := decodeBody[ParseResponse](t, rec)

	assert.Equal(t, text, parsed.Text)
	assert.Equal(t, []Placeholder{
		{Kind: node.KindContext, Text: "{{#context#}}", Paragraph: 0},
		{Kind: node.KindQuery, Text: "{{#query#}}", Paragraph: 1},
	}, parsed.Placeholders)
	require.Len(t, parsed.Segments, 4)
	assert.Equal(t, Segment{Start: 0, End: 2, Text: "A "}, parsed.Segments[0])
	assert.Equal(t, node.KindContext, parsed.Segments[1].Kind)
	assert.Equal(t, node.KindQuery, parsed.Segments[3].Kind)
	assert.Equal(t, len(text), parsed.Segments[3].End)

	rec = do(t, s.Handler(), http.MethodPost, "/v1/render", RenderRequest{Document: parsed.Document})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rendered := decodeBody[RenderResponse](t, rec)
	assert.Equal(t, text, rendered.Text)
	assert.Equal(t, 2, rendered.Placeholders)
}

func TestParse_Errors(t *testing.T) {
	s := newTestServer(t, Options{})

	rec := do(t, s.Handler(), http.MethodPost, "/v1/parse", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[errorResponse](t, rec).Error, "invalid request body")

	rec = do(t, s.Handler(), http.MethodPost, "/v1/parse", `{"text":"x","extra":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/parse", strings.NewReader(`{"text":"x"}`))
	req.Header.Set("Content-Type", "text/plain")
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)

	rec = do(t, s.Handler(), http.MethodGet, "/v1/parse", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRender_Errors(t *testing.T) {
	s := newTestServer(t, Options{})

	rec := do(t, s.Handler(), http.MethodPost, "/v1/render", RenderRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s.Handler(), http.MethodPost, "/v1/render", RenderRequest{Document: json.RawMessage(`{"nope":1}`)})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestValidate(t *testing.T) {
	s := newTestServer(t, Options{})
	text := "{{#context#}} {{#abc.x#}} {{#env.key#}} {{#sys.query#}}"

	rec := do(t, s.Handler(), http.MethodPost, "/v1/validate", ValidateRequest{Text: text})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[ValidateResponse](t, rec)
	assert.True(t, resp.Valid)
	assert.Empty(t, resp.Issues)

	rec = do(t, s.Handler(), http.MethodPost, "/v1/validate", ValidateRequest{
		Text:  text,
		Scope: &Scope{NodeIDs: []string{"abc"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeBody[ValidateResponse](t, rec)
	assert.False(t, resp.Valid)
	require.Len(t, resp.Issues, 1)
	assert.Equal(t, node.KindWorkflowVariable, resp.Issues[0].Kind)
	assert.Equal(t, "{{#env.key#}}", resp.Issues[0].Text)
	assert.Equal(t, "unknown variable env.key", resp.Issues[0].Message)
}

func TestValidate_DisabledKind(t *testing.T) {
	s := newTestServer(t, Options{Kinds: []node.Kind{node.KindQuery}})

	rec := do(t, s.Handler(), http.MethodPost, "/v1/validate", ValidateRequest{Text: "{{#query#}} {{#context#}}"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[ValidateResponse](t, rec)
	assert.False(t, resp.Valid)
	require.Len(t, resp.Issues, 1)
	assert.Equal(t, node.KindContext, resp.Issues[0].Kind)
	assert.Equal(t, "placeholder kind not enabled", resp.Issues[0].Message)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *eventRecorder) handle(_ context.Context, ev event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func TestPublish(t *testing.T) {
	ch := event.NewLocalChannel()
	defer ch.Close()
	rec := &eventRecorder{}
	_, err := ch.Subscribe(event.TypeUpdateValue, rec.handle)
	require.NoError(t, err)

	s := newTestServer(t, Options{Channel: ch})
	resp := do(t, s.Handler(), http.MethodPost, "/v1/events", PublishRequest{
		Type:       event.TypeUpdateValue,
		InstanceID: "a",
		Payload:    json.RawMessage(`{"value":"{{#query#}}"}`),
	})
	require.Equal(t, http.StatusAccepted, resp.Code, resp.Body.String())
	id := decodeBody[PublishResponse](t, resp).ID
	assert.NotEmpty(t, id)

	require.Len(t, rec.events, 1)
	assert.Equal(t, id, rec.events[0].Metadata.ID)
	assert.True(t, rec.events[0].Targets("a"))
	v, err := event.Decode[event.UpdateValue](rec.events[0])
	require.NoError(t, err)
	assert.Equal(t, "{{#query#}}", v.Value)

	resp = do(t, s.Handler(), http.MethodPost, "/v1/events", PublishRequest{Type: "bad..type"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestPublish_NoChannel(t *testing.T) {
	s := newTestServer(t, Options{})
	rec := do(t, s.Handler(), http.MethodPost, "/v1/events", PublishRequest{Type: event.TypeInsertQuickly})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics(t *testing.T) {
	s := newTestServer(t, Options{})
	do(t, s.Handler(), http.MethodGet, "/healthz", nil)
	do(t, s.Handler(), http.MethodPost, "/v1/parse", "{")

	rec := do(t, s.Handler(), http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `promptslot_http_requests_total{code="200",method="GET",route="/healthz"} 1`)
	assert.Contains(t, body, `promptslot_http_requests_total{code="400",method="POST",route="/v1/parse"} 1`)
	assert.Contains(t, body, "promptslot_http_request_duration_seconds")
}

func TestMetrics_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(Options{Registerer: reg, Gatherer: reg})
	require.NoError(t, err)
	_, err = New(Options{Registerer: reg, Gatherer: reg})
	require.NoError(t, err)
}

func TestServe(t *testing.T) {
	s := newTestServer(t, Options{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("server did not stop")
	}
}
