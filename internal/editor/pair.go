package editor

import (
	"sigil/keytool/internal/keyblock"
	"sigil/keytool/pkg/packet"
)

// Pair couples the public and secret keyblocks of one key with the
// ring tokens they were loaded under. Secret is nil when only the
// public half is on the ring.
type Pair struct {
	Public      *keyblock.Block
	PublicToken string
	Secret      *keyblock.Block
	SecretToken string
}

func (p *Pair) HasSecret() bool {
	return p != nil && p.Secret != nil
}

// secretUserIDMatches finds secret-side identities byte-equal to name.
func secretUserIDMatches(sec *keyblock.Block, name string) []keyblock.NodeID {
	return sec.Collect(func(n keyblock.Node) bool {
		return n.Kind == keyblock.KindUserID && n.UserID.Name == name
	})
}

// secretSubkeyMatches finds secret-side subkeys with the given key ID.
func secretSubkeyMatches(sec *keyblock.Block, id packet.KeyID) []keyblock.NodeID {
	return sec.Collect(func(n keyblock.Node) bool {
		return n.Kind == keyblock.KindSecretSubkey && n.Secret.KeyID() == id
	})
}
