// Package editor composes one prompt editor instance.
//
// An Editor owns a document engine, a command bus and the transformer that
// turns placeholder text into placeholder nodes. It registers one block
// plugin per enabled placeholder kind plus the focus/blur, broadcast and
// change plugins, and keeps a selection controller mounted for every
// placeholder in the document.
//
// Hosts feed input through the editor's methods (InsertText, KeyDown,
// Click, Focus, Blur, Insert) or through the command bus directly, and read
// the result through Text, Snapshot, Placeholders and Decorations.
//
//	ed, err := editor.New(editor.Options{
//	    InstanceID: "prompt-1",
//	    Value:      "Answer using {{#context#}}",
//	    Callbacks:  editor.Callbacks{OnChange: save},
//	})
//	if err != nil {
//	    return err
//	}
//	defer ed.Close()
package editor
