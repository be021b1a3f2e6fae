// Package transform materializes placeholder nodes from plain text.
//
// A Scanner splits text into plain and placeholder segments using an
// ordered list of registrations, one per placeholder kind. A Transformer
// attaches a scanner to a document engine so that every update re-scans the
// text nodes it touched before the update commits.
//
// Registrations are tried in order and the first one that matches a piece of
// text wins. Its first match splits the piece into before, match and after;
// before and after are scanned again from the first registration. The
// built-in registrations never overlap, so the order only matters for custom
// registrations.
package transform
