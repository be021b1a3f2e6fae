package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/promptslot/internal/node"
)

// Event is the envelope carried by a Channel.
type Event struct {
	Type Type `json:"type"`

	// InstanceID addresses one editor. Content-sync events may leave it
	// empty to address every editor.
	InstanceID string `json:"instanceId,omitempty"`

	Payload  json.RawMessage `json:"payload,omitempty"`
	Metadata Metadata        `json:"metadata"`
}

// Metadata contains standard information attached to every event.
type Metadata struct {
	// ID is a unique identifier for this event instance.
	ID string `json:"id"`

	// Timestamp is when the event was created.
	Timestamp time.Time `json:"timestamp"`

	// Source identifies the publisher, e.g. a channel origin id.
	Source string `json:"source,omitempty"`
}

// UpdateValue is the payload of TypeUpdateValue.
type UpdateValue struct {
	Value string `json:"value"`
}

// InsertQuickly is the payload of TypeInsertQuickly.
type InsertQuickly struct{}

// DatasetsUpdated is the payload of TypeDatasetsUpdated.
type DatasetsUpdated struct {
	Datasets []node.Dataset `json:"datasets"`
}

// HistoryUpdated is the payload of TypeHistoryUpdated.
type HistoryUpdated struct {
	RoleName node.RoleName `json:"roleName"`
}

// New builds an event of type t for instanceID carrying payload.
func New[T any](t Type, instanceID string, payload T) (Event, error) {
	if !t.IsValid() {
		return Event{}, fmt.Errorf("new %q: %w", t, ErrInvalidEvent)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", t, err)
	}
	return Event{
		Type:       t,
		InstanceID: instanceID,
		Payload:    raw,
		Metadata: Metadata{
			ID:        uuid.NewString(),
			Timestamp: time.Now(),
		},
	}, nil
}

// Decode reads the payload of ev as T.
func Decode[T any](ev Event) (T, error) {
	var v T
	if len(ev.Payload) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(ev.Payload, &v); err != nil {
		return v, fmt.Errorf("decode %s payload: %w: %w", ev.Type, ErrInvalidEvent, err)
	}
	return v, nil
}

// AppliesTo reports whether ev addresses instanceID. Events without an
// instance id address every instance.
func (ev Event) AppliesTo(instanceID string) bool {
	return ev.InstanceID == "" || ev.InstanceID == instanceID
}

// Targets reports whether ev is addressed to exactly instanceID.
func (ev Event) Targets(instanceID string) bool {
	return ev.InstanceID != "" && ev.InstanceID == instanceID
}

func (ev Event) validate() error {
	if !ev.Type.IsValid() {
		return fmt.Errorf("type %q: %w", ev.Type, ErrInvalidEvent)
	}
	return nil
}

func (ev Event) stamped(source string) Event {
	if ev.Metadata.ID == "" {
		ev.Metadata.ID = uuid.NewString()
	}
	if ev.Metadata.Timestamp.IsZero() {
		ev.Metadata.Timestamp = time.Now()
	}
	if ev.Metadata.Source == "" {
		ev.Metadata.Source = source
	}
	return ev
}
