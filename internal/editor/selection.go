package editor

import (
	"fmt"

	"sigil/keytool/internal/keyblock"
)

// ToggleUserID flips the selection of the index-th identity, counting
// from one in listing order. Index zero clears every identity
// selection instead.
func ToggleUserID(b *keyblock.Block, flags keyblock.FlagSet, index int) error {
	if index == 0 {
		flags.ClearAll(keyblock.FlagSelectID)
		return nil
	}
	ids := b.Collect(func(n keyblock.Node) bool { return n.Kind == keyblock.KindUserID })
	if index < 0 || index > len(ids) {
		return fmt.Errorf("%w: user id %d of %d", ErrInvalidIndex, index, len(ids))
	}
	flags.Toggle(ids[index-1], keyblock.FlagSelectID)
	return nil
}

// ToggleSubkey flips the selection of the index-th subkey, counting
// from one in listing order. Index zero clears every subkey selection.
func ToggleSubkey(b *keyblock.Block, flags keyblock.FlagSet, index int) error {
	if index == 0 {
		flags.ClearAll(keyblock.FlagSelectKey)
		return nil
	}
	ids := b.Collect(func(n keyblock.Node) bool { return n.IsSubkey() })
	if index < 0 || index > len(ids) {
		return fmt.Errorf("%w: subkey %d of %d", ErrInvalidIndex, index, len(ids))
	}
	flags.Toggle(ids[index-1], keyblock.FlagSelectKey)
	return nil
}

// SelectedUserIDs returns the selected identities in listing order.
func SelectedUserIDs(b *keyblock.Block, flags keyblock.FlagSet) []keyblock.NodeID {
	return b.Collect(func(n keyblock.Node) bool {
		return n.Kind == keyblock.KindUserID && flags.Has(n.ID, keyblock.FlagSelectID)
	})
}

// SelectedSubkeys returns the selected subkeys in listing order.
func SelectedSubkeys(b *keyblock.Block, flags keyblock.FlagSet) []keyblock.NodeID {
	return b.Collect(func(n keyblock.Node) bool {
		return n.IsSubkey() && flags.Has(n.ID, keyblock.FlagSelectKey)
	})
}
