package editor

import (
	"fmt"

	"sigil/keytool/internal/keyblock"
	"sigil/keytool/pkg/packet"
)

// AddIdentity certifies a new identity with the key's own primary
// secret key and splices it, followed by its self-certification, into
// both halves of the pair just before the first subkey.
func AddIdentity(pair *Pair, name string, signer Signer, prefs []packet.Preference) error {
	if !pair.HasSecret() {
		return ErrNoSecretKey
	}
	uid := &packet.UserID{Name: name}
	sig, err := signer.Certify(pair.Public.PrimaryKey(), uid, pair.Secret.Primary().Secret, packet.ClassPositive, prefs)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}
	spliceIdentity(pair.Public, uid, sig)
	spliceIdentity(pair.Secret, uid.Clone(), sig.Clone())
	return nil
}

func spliceIdentity(b *keyblock.Block, uid *packet.UserID, sig *packet.Signature) {
	var uidID keyblock.NodeID
	if sub, ok := b.FirstSubkey(); ok {
		uidID = b.InsertBefore(sub, keyblock.UserID(uid))
	} else {
		uidID = b.Append(keyblock.UserID(uid))
	}
	b.InsertAfter(uidID, keyblock.Signature(sig))
}

// DeleteUserIDs removes every selected identity, with its trailing
// signatures, from both halves of the pair. The whole operation is
// planned before anything is deleted: when a secret half exists and
// any selected identity has no byte-equal counterpart there, it fails
// with ErrPairMismatch and both blocks stay untouched. Removing the
// last identity is refused.
func DeleteUserIDs(pair *Pair, flags keyblock.FlagSet) (int, error) {
	pub := pair.Public
	selected := SelectedUserIDs(pub, flags)
	if len(selected) == 0 {
		return 0, ErrNothingSelected
	}
	if len(selected) >= pub.CountUserIDs() {
		return 0, ErrLastUserID
	}

	var planPub, planSec []keyblock.NodeID
	for _, uidID := range selected {
		planPub = append(planPub, uidID)
		planPub = append(planPub, pub.SignatureRun(uidID)...)
		if !pair.HasSecret() {
			continue
		}
		n, _ := pub.Node(uidID)
		matches := secretUserIDMatches(pair.Secret, n.UserID.Name)
		if len(matches) == 0 {
			return 0, fmt.Errorf("%w: identity %q has no secret counterpart", ErrPairMismatch, n.UserID.Name)
		}
		for _, m := range matches {
			planSec = append(planSec, m)
			planSec = append(planSec, pair.Secret.SignatureRun(m)...)
		}
	}

	applyDeletes(pub, flags, planPub)
	if pair.HasSecret() {
		applyDeletes(pair.Secret, flags, planSec)
	}
	return len(selected), nil
}

// DeleteSubkeys removes every selected subkey, with its trailing
// signatures, from both halves of the pair. Counterparts are matched
// by key ID; as with identities, a missing counterpart fails the
// whole operation before anything is touched.
func DeleteSubkeys(pair *Pair, flags keyblock.FlagSet) (int, error) {
	pub := pair.Public
	selected := SelectedSubkeys(pub, flags)
	if len(selected) == 0 {
		return 0, ErrNothingSelected
	}

	var planPub, planSec []keyblock.NodeID
	for _, keyID := range selected {
		planPub = append(planPub, keyID)
		planPub = append(planPub, pub.SignatureRun(keyID)...)
		if !pair.HasSecret() {
			continue
		}
		n, _ := pub.Node(keyID)
		matches := secretSubkeyMatches(pair.Secret, n.PublicHalf().KeyID())
		if len(matches) == 0 {
			return 0, fmt.Errorf("%w: subkey %s has no secret counterpart", ErrPairMismatch, n.PublicHalf().KeyID())
		}
		for _, m := range matches {
			planSec = append(planSec, m)
			planSec = append(planSec, pair.Secret.SignatureRun(m)...)
		}
	}

	applyDeletes(pub, flags, planPub)
	if pair.HasSecret() {
		applyDeletes(pair.Secret, flags, planSec)
	}
	return len(selected), nil
}

func applyDeletes(b *keyblock.Block, flags keyblock.FlagSet, ids []keyblock.NodeID) {
	for _, id := range ids {
		b.Delete(id)
		flags.Drop(id)
	}
	b.Compact()
}

// SignUserIDs certifies the target identities with each signer key in
// turn. Targets are the selected identities, or all of them when
// nothing is selected. Identities a signer has already certified are
// reported and skipped; each signer's remaining batch is confirmed
// before any signature is made. Signatures land in the public block
// directly after their identity. A signing failure aborts the run but
// keeps the signatures made so far, so the count is meaningful even
// when err is non-nil.
func SignUserIDs(pair *Pair, flags keyblock.FlagSet, signers []SignerKey, signer Signer, prompt Prompter, present Presenter) (int, error) {
	pub := pair.Public
	primary := pub.PrimaryKey()
	signed := 0

	for _, sk := range signers {
		signerID := sk.Key.KeyID()
		targets := SelectedUserIDs(pub, flags)
		if len(targets) == 0 {
			targets = pub.Collect(func(n keyblock.Node) bool { return n.Kind == keyblock.KindUserID })
		}

		var plan []keyblock.NodeID
		var names []string
		for _, uidID := range targets {
			n, _ := pub.Node(uidID)
			if alreadyCertified(pub, uidID, signerID) {
				present.Notice(Notice{Code: NoticeAlreadySigned, Name: n.UserID.Name, Signer: sk.Name, KeyID: signerID})
				continue
			}
			plan = append(plan, uidID)
			names = append(names, n.UserID.Name)
		}
		if len(plan) == 0 {
			present.Notice(Notice{Code: NoticeNothingToSign, Signer: sk.Name, KeyID: signerID})
			continue
		}

		ok, err := prompt.Confirm(Confirm{Code: ConfirmSign, Names: names, Signer: sk.Name})
		if err != nil {
			return signed, err
		}
		if !ok {
			continue
		}
		for _, uidID := range plan {
			n, _ := pub.Node(uidID)
			sig, err := signer.Certify(primary, n.UserID, sk.Key, packet.ClassGeneric, nil)
			if err != nil {
				return signed, fmt.Errorf("%w: %w", ErrSigningFailed, err)
			}
			pub.InsertAfter(uidID, keyblock.Signature(sig))
			signed++
		}
	}
	return signed, nil
}

func alreadyCertified(b *keyblock.Block, uid keyblock.NodeID, signer packet.KeyID) bool {
	for _, sigID := range b.SignatureRun(uid) {
		n, ok := b.Node(sigID)
		if !ok {
			continue
		}
		if n.Signature.Certifying() && n.Signature.Signer == signer {
			return true
		}
	}
	return false
}
