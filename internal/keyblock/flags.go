package keyblock

// Flag bits attached to nodes for the lifetime of one editing session.
// They live outside the nodes so a block never carries stale session
// state into persistence.
type Flag uint8

const (
	// FlagSelectID marks a user identity picked by ordinal selection.
	FlagSelectID Flag = 1 << iota
	// FlagSelectKey marks a subkey picked by ordinal selection.
	FlagSelectKey
	// FlagMark is a scratch bit for multi-step operations.
	FlagMark
	// FlagBadSig marks a signature that failed verification.
	FlagBadSig
	// FlagNoSignerKey marks a signature whose signer key is unavailable.
	FlagNoSignerKey
	// FlagSigError marks a signature that could not be checked at all.
	FlagSigError
)

// AuditMask covers the three mutually exclusive verification verdict
// bits.
const AuditMask = FlagBadSig | FlagNoSignerKey | FlagSigError

// FlagSet is a sparse NodeID to Flag map owned by the session.
type FlagSet map[NodeID]Flag

func NewFlagSet() FlagSet {
	return make(FlagSet)
}

func (fs FlagSet) Has(id NodeID, f Flag) bool {
	return fs[id]&f != 0
}

func (fs FlagSet) Set(id NodeID, f Flag) {
	fs[id] |= f
}

func (fs FlagSet) Clear(id NodeID, f Flag) {
	v := fs[id] &^ f
	if v == 0 {
		delete(fs, id)
		return
	}
	fs[id] = v
}

func (fs FlagSet) Toggle(id NodeID, f Flag) {
	if fs.Has(id, f) {
		fs.Clear(id, f)
		return
	}
	fs.Set(id, f)
}

// ClearAll removes the given bits from every node.
func (fs FlagSet) ClearAll(f Flag) {
	for id := range fs {
		fs.Clear(id, f)
	}
}

// Drop forgets every bit for a node, typically after it is deleted.
func (fs FlagSet) Drop(id NodeID) {
	delete(fs, id)
}
