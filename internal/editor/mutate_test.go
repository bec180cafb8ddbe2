package editor

import (
	"errors"
	"testing"

	"sigil/keytool/internal/keyblock"
	"sigil/keytool/pkg/packet"
)

const newName = "Carol <carol@example.org>"

func TestAddIdentitySplicesBeforeSubkeys(t *testing.T) {
	pair := fullPair(t, true)
	prefs := []packet.Preference{{Type: packet.PrefCipher, Value: 9}}

	if err := AddIdentity(pair, newName, &fakeSigner{}, prefs); err != nil {
		t.Fatalf("add identity: %v", err)
	}
	for _, b := range []*keyblock.Block{pair.Public, pair.Secret} {
		if got := b.CountUserIDs(); got != 3 {
			t.Fatalf("want 3 identities, got %d", got)
		}
		uid := nthUserID(t, b, 3)
		n, _ := b.Node(uid)
		if n.UserID.Name != newName {
			t.Fatalf("new identity should list last, got %q", n.UserID.Name)
		}
		if !b.InIdentitySection(uid) {
			t.Fatal("new identity landed after the subkeys")
		}
		run := b.SignatureRun(uid)
		if len(run) != 1 {
			t.Fatalf("new identity should carry exactly its self-certification, got %d", len(run))
		}
		sn, _ := b.Node(run[0])
		if sn.Signature.Class != packet.ClassPositive || sn.Signature.Signer != b.PrimaryKeyID() {
			t.Fatalf("unexpected self-certification: %+v", sn.Signature)
		}
		if len(sn.Signature.Prefs) != 1 || sn.Signature.Prefs[0].Value != 9 {
			t.Fatalf("preferences not carried: %+v", sn.Signature.Prefs)
		}
	}
}

func TestAddIdentityWithoutSubkeysAppends(t *testing.T) {
	pair := singlePair(t, true)
	if err := AddIdentity(pair, newName, &fakeSigner{}, nil); err != nil {
		t.Fatalf("add identity: %v", err)
	}
	nodes := pair.Public.Nodes()
	last := nodes[len(nodes)-1]
	if last.Kind != keyblock.KindSignature {
		t.Fatalf("block should end with the new self-certification, ends with %v", last.Kind)
	}
	uid := nodes[len(nodes)-2]
	if uid.Kind != keyblock.KindUserID || uid.UserID.Name != newName {
		t.Fatalf("new identity not appended: %+v", uid)
	}
}

func TestAddIdentityNeedsSecret(t *testing.T) {
	pair := fullPair(t, false)
	if err := AddIdentity(pair, newName, &fakeSigner{}, nil); !errors.Is(err, ErrNoSecretKey) {
		t.Fatalf("want ErrNoSecretKey, got %v", err)
	}
}

func TestAddIdentitySigningFailure(t *testing.T) {
	pair := fullPair(t, true)
	failing := &fakeSigner{err: errors.New("no entropy")}
	err := AddIdentity(pair, newName, failing, nil)
	if !errors.Is(err, ErrSigningFailed) {
		t.Fatalf("want ErrSigningFailed, got %v", err)
	}
	if pair.Public.CountUserIDs() != 2 || pair.Secret.CountUserIDs() != 2 {
		t.Fatal("failed add must not touch either block")
	}
}

func TestDeleteUserIDsRemovesRunsOnBothSides(t *testing.T) {
	pair := fullPair(t, true)
	flags := keyblock.FlagSet{}
	if err := ToggleUserID(pair.Public, flags, 2); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	pubBefore, secBefore := pair.Public.Len(), pair.Secret.Len()

	n, err := DeleteUserIDs(pair, flags)
	if err != nil || n != 1 {
		t.Fatalf("delete: n=%d err=%v", n, err)
	}
	// The work identity carried two signatures, so three nodes go per side.
	if got := pair.Public.Len(); got != pubBefore-3 {
		t.Fatalf("public block: want %d nodes, got %d", pubBefore-3, got)
	}
	if got := pair.Secret.Len(); got != secBefore-3 {
		t.Fatalf("secret block: want %d nodes, got %d", secBefore-3, got)
	}
	if pair.Public.CountUserIDs() != 1 || pair.Secret.CountUserIDs() != 1 {
		t.Fatal("work identity should be gone from both sides")
	}
	// The subkey binding signature is outside the deleted run.
	if pair.Public.CountSubkeys() != 1 {
		t.Fatal("subkey must survive an identity delete")
	}
	if sel := SelectedUserIDs(pair.Public, flags); len(sel) != 0 {
		t.Fatalf("selection flags should be dropped with the nodes, got %v", sel)
	}
}

func TestDeleteUserIDsNothingSelected(t *testing.T) {
	pair := fullPair(t, true)
	if _, err := DeleteUserIDs(pair, keyblock.FlagSet{}); !errors.Is(err, ErrNothingSelected) {
		t.Fatalf("want ErrNothingSelected, got %v", err)
	}
}

func TestDeleteUserIDsRefusesLastIdentity(t *testing.T) {
	pair := singlePair(t, true)
	flags := keyblock.FlagSet{}
	if err := ToggleUserID(pair.Public, flags, 1); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if _, err := DeleteUserIDs(pair, flags); !errors.Is(err, ErrLastUserID) {
		t.Fatalf("want ErrLastUserID, got %v", err)
	}
	if pair.Public.CountUserIDs() != 1 {
		t.Fatal("refused delete must not remove anything")
	}
}

func TestDeleteUserIDsPairMismatch(t *testing.T) {
	pair := fullPair(t, true)
	// Rebuild the secret half without the work identity.
	primary := pubKey(0xA1)
	pair.Secret = mustBlock(t, keyblock.PrimarySecret(secKey(0xA1)),
		keyblock.UserID(&packet.UserID{Name: aliceName}),
		keyblock.Signature(sig(primary.KeyID(), packet.ClassPositive)),
	)
	flags := keyblock.FlagSet{}
	if err := ToggleUserID(pair.Public, flags, 2); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	pubBefore := pair.Public.Len()

	_, err := DeleteUserIDs(pair, flags)
	if !errors.Is(err, ErrPairMismatch) {
		t.Fatalf("want ErrPairMismatch, got %v", err)
	}
	if pair.Public.Len() != pubBefore {
		t.Fatal("mismatch must leave the public block untouched")
	}
	if pair.Secret.CountUserIDs() != 1 {
		t.Fatal("mismatch must leave the secret block untouched")
	}
}

func TestDeleteSubkeysRemovesBothSides(t *testing.T) {
	pair := fullPair(t, true)
	flags := keyblock.FlagSet{}
	if err := ToggleSubkey(pair.Public, flags, 1); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	n, err := DeleteSubkeys(pair, flags)
	if err != nil || n != 1 {
		t.Fatalf("delete: n=%d err=%v", n, err)
	}
	if pair.Public.CountSubkeys() != 0 || pair.Secret.CountSubkeys() != 0 {
		t.Fatal("subkey should be gone from both sides")
	}
	// Binding signature goes with it; identities stay whole.
	if pair.Public.CountUserIDs() != 2 || pair.Secret.CountUserIDs() != 2 {
		t.Fatal("identities must survive a subkey delete")
	}
	for _, b := range []*keyblock.Block{pair.Public, pair.Secret} {
		for _, node := range b.Nodes() {
			if node.Kind == keyblock.KindSignature && node.Signature.Class == packet.ClassSubkeyBinding {
				t.Fatal("binding signature left behind")
			}
		}
	}
}

func TestDeleteSubkeysPairMismatch(t *testing.T) {
	pair := fullPair(t, true)
	pair.Secret = singlePair(t, true).Secret
	flags := keyblock.FlagSet{}
	if err := ToggleSubkey(pair.Public, flags, 1); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if _, err := DeleteSubkeys(pair, flags); !errors.Is(err, ErrPairMismatch) {
		t.Fatalf("want ErrPairMismatch, got %v", err)
	}
	if pair.Public.CountSubkeys() != 1 {
		t.Fatal("mismatch must leave the public block untouched")
	}
}

func TestSignUserIDsSignsAllWhenNothingSelected(t *testing.T) {
	pair := fullPair(t, true)
	carol := SignerKey{Key: secKey(0xC0), Name: newName}
	prompt := &scriptPrompter{answers: []bool{true}}
	present := &recordPresenter{}

	signed, err := SignUserIDs(pair, keyblock.FlagSet{}, []SignerKey{carol}, &fakeSigner{}, prompt, present)
	if err != nil || signed != 2 {
		t.Fatalf("signed=%d err=%v", signed, err)
	}
	if len(prompt.asked) != 1 || prompt.asked[0].Code != ConfirmSign {
		t.Fatalf("want one sign confirmation, got %+v", prompt.asked)
	}
	if got := prompt.asked[0].Names; len(got) != 2 || got[0] != aliceName || got[1] != workName {
		t.Fatalf("confirmation should list both identities, got %v", got)
	}
	// New signatures sit directly after their identity, ahead of the
	// certifications that were already there.
	for i := 1; i <= 2; i++ {
		run := pair.Public.SignatureRun(nthUserID(t, pair.Public, i))
		n, _ := pair.Public.Node(run[0])
		if n.Signature.Signer != carol.Key.KeyID() {
			t.Fatalf("identity %d: newest signature should be carol's, got %016X", i, uint64(n.Signature.Signer))
		}
	}
}

func TestSignUserIDsSkipsAlreadySigned(t *testing.T) {
	pair := fullPair(t, true)
	bob := SignerKey{Key: secKey(0xB0), Name: bobName}
	prompt := &scriptPrompter{answers: []bool{true}}
	present := &recordPresenter{}

	signed, err := SignUserIDs(pair, keyblock.FlagSet{}, []SignerKey{bob}, &fakeSigner{}, prompt, present)
	if err != nil || signed != 1 {
		t.Fatalf("signed=%d err=%v", signed, err)
	}
	if present.noticeCount(NoticeAlreadySigned) != 1 {
		t.Fatalf("want one already-signed notice, got %+v", present.notices)
	}
	if got := prompt.asked[0].Names; len(got) != 1 || got[0] != aliceName {
		t.Fatalf("only the unsigned identity should be confirmed, got %v", got)
	}
}

func TestSignUserIDsNothingToSign(t *testing.T) {
	pair := singlePair(t, true)
	// The only identity is already certified by bob.
	bobID := pubKey(0xB0).KeyID()
	pair.Public.InsertAfter(nthUserID(t, pair.Public, 1), keyblock.Signature(sig(bobID, packet.ClassGeneric)))

	bob := SignerKey{Key: secKey(0xB0), Name: bobName}
	prompt := &scriptPrompter{answers: []bool{true}}
	present := &recordPresenter{}

	signed, err := SignUserIDs(pair, keyblock.FlagSet{}, []SignerKey{bob}, &fakeSigner{}, prompt, present)
	if err != nil || signed != 0 {
		t.Fatalf("signed=%d err=%v", signed, err)
	}
	if present.noticeCount(NoticeNothingToSign) != 1 {
		t.Fatalf("want a nothing-to-sign notice, got %+v", present.notices)
	}
	if len(prompt.asked) != 0 {
		t.Fatalf("no confirmation expected, got %+v", prompt.asked)
	}
}

func TestSignUserIDsDeclined(t *testing.T) {
	pair := fullPair(t, true)
	carol := SignerKey{Key: secKey(0xC0), Name: newName}
	prompt := &scriptPrompter{answers: []bool{false}}

	signed, err := SignUserIDs(pair, keyblock.FlagSet{}, []SignerKey{carol}, &fakeSigner{}, prompt, &recordPresenter{})
	if err != nil || signed != 0 {
		t.Fatalf("signed=%d err=%v", signed, err)
	}
	run := pair.Public.SignatureRun(nthUserID(t, pair.Public, 1))
	if len(run) != 1 {
		t.Fatalf("declined run must not add signatures, got %d", len(run))
	}
}

func TestSignUserIDsAbortKeepsProgress(t *testing.T) {
	pair := fullPair(t, true)
	carol := SignerKey{Key: secKey(0xC0), Name: newName}
	prompt := &scriptPrompter{answers: []bool{true}}
	failing := &fakeSigner{err: errors.New("token removed"), failAfter: 1}

	signed, err := SignUserIDs(pair, keyblock.FlagSet{}, []SignerKey{carol}, failing, prompt, &recordPresenter{})
	if !errors.Is(err, ErrSigningFailed) {
		t.Fatalf("want ErrSigningFailed, got %v", err)
	}
	if signed != 1 {
		t.Fatalf("the first signature was made before the failure, signed=%d", signed)
	}
	run := pair.Public.SignatureRun(nthUserID(t, pair.Public, 1))
	n, _ := pair.Public.Node(run[0])
	if n.Signature.Signer != carol.Key.KeyID() {
		t.Fatal("completed signature should stay in the block")
	}
}

func TestSignUserIDsSelectedOnly(t *testing.T) {
	pair := fullPair(t, true)
	flags := keyblock.FlagSet{}
	if err := ToggleUserID(pair.Public, flags, 2); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	carol := SignerKey{Key: secKey(0xC0), Name: newName}
	prompt := &scriptPrompter{answers: []bool{true}}

	signed, err := SignUserIDs(pair, flags, []SignerKey{carol}, &fakeSigner{}, prompt, &recordPresenter{})
	if err != nil || signed != 1 {
		t.Fatalf("signed=%d err=%v", signed, err)
	}
	if run := pair.Public.SignatureRun(nthUserID(t, pair.Public, 1)); len(run) != 1 {
		t.Fatal("unselected identity must stay untouched")
	}
}
