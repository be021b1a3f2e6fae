package editor

import (
	"sync"

	"github.com/dshills/promptslot/internal/node"
)

// callbackTable resolves decoration callbacks by kind and node key. Node
// entries override kind entries field by field.
type callbackTable struct {
	mu     sync.RWMutex
	byKind map[node.Kind]node.Callbacks
	byKey  map[node.Key]node.Callbacks
}

func newCallbackTable(byKind map[node.Kind]node.Callbacks) *callbackTable {
	t := &callbackTable{
		byKind: make(map[node.Kind]node.Callbacks, len(byKind)),
		byKey:  make(map[node.Key]node.Callbacks),
	}
	for k, cb := range byKind {
		t.byKind[k] = cb
	}
	return t
}

func (t *callbackTable) setKind(kind node.Kind, cb node.Callbacks) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byKind[kind] = cb
}

func (t *callbackTable) setKey(key node.Key, cb node.Callbacks) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byKey[key] = cb
}

func (t *callbackTable) drop(key node.Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byKey, key)
}

func (t *callbackTable) resolve(kind node.Kind, key node.Key) node.Callbacks {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cb := t.byKind[kind]
	own, ok := t.byKey[key]
	if !ok {
		return cb
	}
	if own.OnEditRole != nil {
		cb.OnEditRole = own.OnEditRole
	}
	if own.OnAddContext != nil {
		cb.OnAddContext = own.OnAddContext
	}
	if own.OnOpenVariable != nil {
		cb.OnOpenVariable = own.OnOpenVariable
	}
	if own.OnFormInputChange != nil {
		cb.OnFormInputChange = own.OnFormInputChange
	}
	if own.GetVarType != nil {
		cb.GetVarType = own.GetVarType
	}
	return cb
}

// sources holds the payloads given to placeholders materialized from text.
type sources struct {
	mu               sync.RWMutex
	datasets         []node.Dataset
	canNotAddContext bool
	roles            node.RoleName
	formInputs       []node.FormInput
	hitlNodeID       string
}

func (s *sources) setDatasets(ds []node.Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasets = append([]node.Dataset{}, ds...)
}

func (s *sources) setRoles(r node.RoleName) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles = r
}

// payload implements transform.PayloadSource.
func (s *sources) payload(kind node.Kind, derived node.Payload) (node.Payload, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch kind {
	case node.KindContext:
		return &node.ContextPayload{
			Datasets:         append([]node.Dataset{}, s.datasets...),
			CanNotAddContext: s.canNotAddContext,
		}, true
	case node.KindHistory:
		return &node.HistoryPayload{RoleName: s.roles}, true
	case node.KindHITLInput:
		hp, ok := derived.(*node.HITLPayload)
		if !ok || hp == nil {
			return nil, false
		}
		hp.NodeID = s.hitlNodeID
		hp.FormInputs = append([]node.FormInput{}, s.formInputs...)
		return hp, true
	}
	return nil, false
}
