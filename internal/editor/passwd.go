package editor

import (
	"fmt"

	"sigil/keytool/internal/keyblock"
	"sigil/keytool/pkg/packet"
)

// ChangePassphrase reseals every secret key in the block under a new
// passphrase. All keys are unlocked first with one credential; a key
// that will not open aborts the whole operation with ErrCannotUnlock.
// An empty new passphrase, once confirmed, leaves the keys
// unprotected; declining the confirmation ends the operation with no
// change. A resealing failure aborts with ErrProtectionFailed and
// reports no change even though earlier keys in the block may already
// carry the new protection.
func ChangePassphrase(sec *keyblock.Block, prot Protector, prompt Prompter, present Presenter) (changed bool, err error) {
	keys := secretKeys(sec)
	if len(keys) == 0 {
		return false, ErrNoSecretKey
	}

	var cred []byte
	if !keys[0].Protected() {
		present.Notice(Notice{Code: NoticeKeyNotProtected})
	} else {
		present.Notice(Notice{Code: NoticeKeyProtected})
		cred, err = prompt.ReadPassphrase(PassphraseRequest{KeyID: keys[0].KeyID(), Name: firstUserIDName(sec)})
		if err != nil {
			return false, err
		}
	}
	defer zeroBytes(cred)

	materials := make([][]byte, 0, len(keys))
	defer func() {
		for _, m := range materials {
			zeroBytes(m)
		}
	}()
	for _, sk := range keys {
		material, uerr := prot.Unlock(sk, cred)
		if uerr != nil {
			return false, fmt.Errorf("%w: %w", ErrCannotUnlock, uerr)
		}
		materials = append(materials, material)
	}

	for {
		pass, ok, perr := prompt.ReadNewPassphrase()
		if perr != nil {
			return false, perr
		}
		if !ok {
			present.Notice(Notice{Code: NoticePassphraseMismatch})
			continue
		}
		if len(pass) == 0 {
			yes, cerr := prompt.Confirm(Confirm{Code: ConfirmEmptyPassphrase})
			if cerr != nil {
				return false, cerr
			}
			if !yes {
				return false, nil
			}
		}
		for i, sk := range keys {
			if perr := prot.Protect(sk, materials[i], pass); perr != nil {
				zeroBytes(pass)
				return false, fmt.Errorf("%w: %w", ErrProtectionFailed, perr)
			}
		}
		zeroBytes(pass)
		return true, nil
	}
}

func secretKeys(sec *keyblock.Block) []*packet.SecretKey {
	var keys []*packet.SecretKey
	sec.Walk(func(n keyblock.Node) bool {
		if n.Kind == keyblock.KindPrimarySecret || n.Kind == keyblock.KindSecretSubkey {
			keys = append(keys, n.Secret)
		}
		return true
	})
	return keys
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
