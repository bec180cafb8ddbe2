package editor

import (
	"sigil/keytool/internal/keyblock"
	"sigil/keytool/pkg/packet"
)

// Verdict classifies one checked signature.
type Verdict uint8

const (
	VerdictValid Verdict = iota
	VerdictBad
	VerdictNoSignerKey
	VerdictError
)

func (v Verdict) String() string {
	switch v {
	case VerdictValid:
		return "valid"
	case VerdictBad:
		return "bad"
	case VerdictNoSignerKey:
		return "no-signer-key"
	default:
		return "error"
	}
}

// Verification is the Verifier's answer for one signature.
type Verification struct {
	Verdict Verdict
	SelfSig bool
	Err     error
}

// Verifier checks certifying signatures. The editor never inspects
// signature bytes itself.
type Verifier interface {
	Verify(primary *packet.PublicKey, uid *packet.UserID, sig *packet.Signature) Verification
	SignerName(id packet.KeyID) (string, bool)
}

// Signer creates certifying signatures, unlocking the signer key as
// needed.
type Signer interface {
	Certify(primary *packet.PublicKey, uid *packet.UserID, signer *packet.SecretKey, class packet.SigClass, prefs []packet.Preference) (*packet.Signature, error)
}

// Protector moves secret material in and out of passphrase envelopes.
type Protector interface {
	Unlock(sk *packet.SecretKey, passphrase []byte) ([]byte, error)
	Protect(sk *packet.SecretKey, material, passphrase []byte) error
}

// TrustLevel is operator-assigned owner trust or computed validity.
type TrustLevel uint8

const (
	TrustUnknown TrustLevel = iota
	TrustNever
	TrustMarginal
	TrustFull
	TrustUltimate
)

func (l TrustLevel) String() string {
	switch l {
	case TrustNever:
		return "never"
	case TrustMarginal:
		return "marginal"
	case TrustFull:
		return "full"
	case TrustUltimate:
		return "ultimate"
	default:
		return "unknown"
	}
}

// Letter is the one-character listing form.
func (l TrustLevel) Letter() string {
	switch l {
	case TrustNever:
		return "n"
	case TrustMarginal:
		return "m"
	case TrustFull:
		return "f"
	case TrustUltimate:
		return "u"
	default:
		return "q"
	}
}

// TrustOps is the owner-trust store. Validity computation happens
// elsewhere; the editor only reads levels and invalidates the cache.
type TrustOps interface {
	OwnerTrust(pk *packet.PublicKey) TrustLevel
	Validity(pk *packet.PublicKey) TrustLevel
	SetOwnerTrust(pk *packet.PublicKey, level TrustLevel) error
	ClearCache(pk *packet.PublicKey) error
}

// Store persists whole keyblocks back into the ring they came from.
type Store interface {
	CommitPublic(token string, b *keyblock.Block) error
	CommitSecret(token string, b *keyblock.Block) error
}

// PassphraseRequest asks the operator to unlock a specific key.
type PassphraseRequest struct {
	KeyID packet.KeyID
	Name  string
}

// Prompter is the blocking question-and-answer port. Reads return
// io.EOF when the input is gone, which the session treats as quit.
type Prompter interface {
	ReadLine(code PromptCode) (string, error)
	ReadPassphrase(req PassphraseRequest) ([]byte, error)
	// ReadNewPassphrase handles the repeat-to-confirm dance; ok is
	// false when the two entries differ.
	ReadNewPassphrase() (pass []byte, ok bool, err error)
	Confirm(c Confirm) (bool, error)
	// AssumeYes reports preset answers (scripted runs); the session
	// then skips the quit-without-saving double check.
	AssumeYes() bool
}

// Presenter renders structured editor output. The editor never formats
// user-facing text.
type Presenter interface {
	ShowKey(s KeySummary)
	ShowAudit(r AuditReport)
	ShowFingerprint(f FingerprintInfo)
	ShowHelp(cmds []CommandHelp)
	Notice(n Notice)
}

// SignerKey is one local secret key available for signing other keys.
type SignerKey struct {
	Key  *packet.SecretKey
	Name string
}
