package editor

import (
	"time"

	"sigil/keytool/internal/keyblock"
	"sigil/keytool/pkg/packet"
)

// View selects which half of the pair a listing is built from.
type View uint8

const (
	ViewPublic View = iota
	ViewSecret
)

func (v View) String() string {
	if v == ViewSecret {
		return "secret"
	}
	return "public"
}

// KeyLine describes one key packet in a listing. OwnerTrust and
// Validity are set on the primary line of a public listing only.
type KeyLine struct {
	Kind       keyblock.Kind
	Algorithm  packet.KeyAlgorithm
	KeyID      packet.KeyID
	CreatedAt  time.Time
	ExpiresAt  time.Time
	Selected   bool
	OwnerTrust TrustLevel
	Validity   TrustLevel
}

// IdentityLine describes one identity in a listing, numbered from one
// in listing order. Prefs is filled only when the listing was built
// with preferences.
type IdentityLine struct {
	Index    int
	Name     string
	Selected bool
	Prefs    []packet.Preference
}

// KeySummary is a full listing of one keyblock: the primary key line
// first, then the identities, then the subkey lines.
type KeySummary struct {
	View       View
	Keys       []KeyLine
	Identities []IdentityLine
	WithPrefs  bool
}

// FingerprintInfo carries everything the fingerprint display needs.
type FingerprintInfo struct {
	Key         KeyLine
	Name        string
	Fingerprint packet.Fingerprint
	Words       []string
}

func buildSummary(b *keyblock.Block, flags keyblock.FlagSet, view View, trust TrustOps, withPrefs bool) KeySummary {
	s := KeySummary{View: view, WithPrefs: withPrefs}
	uidIndex := 0
	b.Walk(func(n keyblock.Node) bool {
		switch {
		case n.IsKey():
			pk := n.PublicHalf()
			line := KeyLine{
				Kind:      n.Kind,
				Algorithm: pk.Algorithm,
				KeyID:     pk.KeyID(),
				CreatedAt: pk.CreatedAt,
				ExpiresAt: pk.ExpiresAt,
				Selected:  n.IsSubkey() && flags.Has(n.ID, keyblock.FlagSelectKey),
			}
			if n.Kind == keyblock.KindPrimaryPublic && trust != nil {
				line.OwnerTrust = trust.OwnerTrust(pk)
				line.Validity = trust.Validity(pk)
			}
			s.Keys = append(s.Keys, line)
		case n.Kind == keyblock.KindUserID:
			uidIndex++
			line := IdentityLine{
				Index:    uidIndex,
				Name:     n.UserID.Name,
				Selected: flags.Has(n.ID, keyblock.FlagSelectID),
			}
			if withPrefs {
				line.Prefs = identityPrefs(b, n.ID)
			}
			s.Identities = append(s.Identities, line)
		}
		return true
	})
	return s
}

// identityPrefs returns the preference list from the newest positive
// self-certification under the identity, or nil when there is none.
func identityPrefs(b *keyblock.Block, uid keyblock.NodeID) []packet.Preference {
	primaryID := b.PrimaryKeyID()
	var best *packet.Signature
	for _, sigID := range b.SignatureRun(uid) {
		n, ok := b.Node(sigID)
		if !ok {
			continue
		}
		sig := n.Signature
		if sig.Class != packet.ClassPositive || sig.Signer != primaryID || len(sig.Prefs) == 0 {
			continue
		}
		if best == nil || sig.CreatedAt.After(best.CreatedAt) {
			best = sig
		}
	}
	if best == nil {
		return nil
	}
	prefs := make([]packet.Preference, len(best.Prefs))
	copy(prefs, best.Prefs)
	return prefs
}

func firstUserIDName(b *keyblock.Block) string {
	ids := b.Collect(func(n keyblock.Node) bool { return n.Kind == keyblock.KindUserID })
	if len(ids) == 0 {
		return ""
	}
	n, ok := b.Node(ids[0])
	if !ok {
		return ""
	}
	return n.UserID.Name
}
