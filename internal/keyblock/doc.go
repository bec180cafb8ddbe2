// Package keyblock holds the ordered node sequence that makes up one
// key record: a primary key followed by user identities, subkeys, and
// the signatures attached to them.
//
// Responsibilities:
// - Keep nodes in record order with stable identifiers that survive
//   deletes until Compact is called.
// - Answer structural queries (primary key, identity section, trailing
//   signature runs, first subkey).
// - Track per-session node flags (selection, audit verdicts, work
//   marks) in a sparse set separate from the nodes themselves.
//
// Non-responsibilities:
// - Wire formats, file storage, and lookup by name (internal/keyring).
// - Signature creation or verification (internal/certify).
// - Editing policy such as which deletes are legal (internal/editor).
package keyblock
