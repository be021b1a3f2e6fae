package node

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const structuralVersion = 1

// MarshalNode serializes an inline node to `{type, version, ...payload}` JSON.
func (r *Registry) MarshalNode(n Inline) (string, error) {
	switch v := n.(type) {
	case *Text:
		doc, err := sjson.Set("{}", "type", string(KindText))
		if err != nil {
			return "", err
		}
		if doc, err = sjson.Set(doc, "version", structuralVersion); err != nil {
			return "", err
		}
		if doc, err = sjson.Set(doc, "text", v.text); err != nil {
			return "", err
		}
		return sjson.Set(doc, "format", int(v.format))

	case *Placeholder:
		c, err := r.Class(v.kind)
		if err != nil {
			return "", kindError("serialize", v.kind, ErrKindNotRegistered)
		}
		doc, err := sjson.Set("{}", "type", string(v.kind))
		if err != nil {
			return "", err
		}
		if doc, err = sjson.Set(doc, "version", c.Version()); err != nil {
			return "", err
		}
		if v.format != 0 {
			if doc, err = sjson.Set(doc, "format", int(v.format)); err != nil {
				return "", err
			}
		}
		if v.payload == nil {
			return doc, nil
		}
		return c.EncodePayload(doc, v.payload)

	default:
		return "", fmt.Errorf("%w: unsupported inline node %T", ErrInvalidDocument, n)
	}
}

// UnmarshalNode decodes an inline node. Missing optional payload fields fall
// back to the kind's defaults; an unknown type fails with ErrKindNotRegistered.
func (r *Registry) UnmarshalNode(data string) (Inline, error) {
	if !gjson.Valid(data) {
		return nil, fmt.Errorf("%w: malformed node json", ErrInvalidDocument)
	}
	return r.decodeInline(gjson.Parse(data))
}

func (r *Registry) decodeInline(obj gjson.Result) (Inline, error) {
	kind := Kind(obj.Get("type").String())
	format := Format(obj.Get("format").Uint())

	if kind == KindText {
		return NewText(obj.Get("text").String(), format), nil
	}
	if kind == "" {
		return nil, fmt.Errorf("%w: node without type", ErrInvalidDocument)
	}

	c, err := r.Class(kind)
	if err != nil {
		return nil, kindError("deserialize", kind, ErrKindNotRegistered)
	}
	return build(c, NewKey(), c.DecodePayload(obj), format)
}

// MarshalDocument serializes a root as `{"root": {...}}` JSON.
func (r *Registry) MarshalDocument(root *Root) ([]byte, error) {
	doc := `{"root":{"type":"root","version":1,"children":[]}}`
	var err error
	for _, p := range root.paragraphs {
		para := `{"type":"paragraph","version":1,"children":[]}`
		for _, c := range p.children {
			raw, err := r.MarshalNode(c)
			if err != nil {
				return nil, err
			}
			if para, err = sjson.SetRaw(para, "children.-1", raw); err != nil {
				return nil, err
			}
		}
		if doc, err = sjson.SetRaw(doc, "root.children.-1", para); err != nil {
			return nil, err
		}
	}
	return []byte(doc), nil
}

// UnmarshalDocument decodes a document produced by MarshalDocument. Every
// node receives a fresh key.
func (r *Registry) UnmarshalDocument(data []byte) (*Root, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: malformed document json", ErrInvalidDocument)
	}
	rootObj := gjson.GetBytes(data, "root")
	if !rootObj.Exists() {
		return nil, fmt.Errorf("%w: missing root", ErrInvalidDocument)
	}
	if t := rootObj.Get("type").String(); t != "" && t != string(KindRoot) {
		return nil, fmt.Errorf("%w: root has type %q", ErrInvalidDocument, t)
	}

	root := NewRoot()
	var decodeErr error
	rootObj.Get("children").ForEach(func(_, pv gjson.Result) bool {
		if t := pv.Get("type").String(); t != string(KindParagraph) {
			decodeErr = fmt.Errorf("%w: root child has type %q", ErrInvalidDocument, t)
			return false
		}
		para := NewParagraph()
		pv.Get("children").ForEach(func(_, cv gjson.Result) bool {
			n, err := r.decodeInline(cv)
			if err != nil {
				decodeErr = err
				return false
			}
			para.Append(n)
			return true
		})
		if decodeErr != nil {
			return false
		}
		root.Append(para)
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}
	if root.Len() == 0 {
		root.Append(NewParagraph())
	}
	return root, nil
}
