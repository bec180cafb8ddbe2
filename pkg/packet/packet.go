// Package packet defines the key-record node payloads shared by the
// editor core, the keyring, and the signing/verification service.
package packet

import (
	"fmt"
	"strconv"
	"time"
)

type KeyAlgorithm string

const (
	AlgoEd25519    KeyAlgorithm = "ed25519"
	AlgoDilithium3 KeyAlgorithm = "dilithium3"
)

// SigClass is the certification class byte. The four certifying classes
// share the high nibble 0x1 and differ only in the low two bits.
type SigClass byte

const (
	ClassGeneric  SigClass = 0x10
	ClassPersona  SigClass = 0x11
	ClassCasual   SigClass = 0x12
	ClassPositive SigClass = 0x13

	// ClassSubkeyBinding ties a subkey to its primary key. It is not
	// a certifying class and the signature audit skips it.
	ClassSubkeyBinding SigClass = 0x18
)

type PrefType byte

const (
	PrefCipher   PrefType = 'S'
	PrefHash     PrefType = 'H'
	PrefCompress PrefType = 'Z'
)

// Preference is one algorithm preference carried by a positive
// self-certification.
type Preference struct {
	Type  PrefType `json:"type"`
	Value uint8    `json:"value"`
}

type PublicKey struct {
	Algorithm KeyAlgorithm `json:"algorithm"`
	Material  []byte       `json:"material"`
	CreatedAt time.Time    `json:"created_at"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// SecretKey pairs the public half with protected or plaintext secret
// material. Exactly one of Sealed and Plain is expected to be set.
type SecretKey struct {
	PublicKey
	Sealed []byte `json:"sealed,omitempty"`
	Plain  []byte `json:"plain,omitempty"`
}

type UserID struct {
	Name string `json:"name"`
}

type Signature struct {
	Class     SigClass     `json:"class"`
	Signer    KeyID        `json:"signer"`
	CreatedAt time.Time    `json:"created_at"`
	HashAlgo  string       `json:"hash_algo"`
	Value     []byte       `json:"value"`
	Prefs     []Preference `json:"prefs,omitempty"`
}

func (c SigClass) Certifying() bool {
	return c&^0x03 == ClassGeneric
}

func (p Preference) String() string {
	return string(p.Type) + strconv.Itoa(int(p.Value))
}

// ParsePreference reads the compact form produced by String, such as
// "S2" or "H8".
func ParsePreference(s string) (Preference, error) {
	if len(s) < 2 {
		return Preference{}, fmt.Errorf("preference %q too short", s)
	}
	t := PrefType(s[0])
	switch t {
	case PrefCipher, PrefHash, PrefCompress:
	default:
		return Preference{}, fmt.Errorf("preference %q: unknown type %q", s, s[0])
	}
	v, err := strconv.ParseUint(s[1:], 10, 8)
	if err != nil {
		return Preference{}, fmt.Errorf("preference %q: %w", s, err)
	}
	return Preference{Type: t, Value: uint8(v)}, nil
}

func (pk *PublicKey) Clone() *PublicKey {
	if pk == nil {
		return nil
	}
	out := *pk
	out.Material = append([]byte(nil), pk.Material...)
	return &out
}

func (sk *SecretKey) Clone() *SecretKey {
	if sk == nil {
		return nil
	}
	out := SecretKey{
		PublicKey: *sk.PublicKey.Clone(),
		Sealed:    append([]byte(nil), sk.Sealed...),
		Plain:     append([]byte(nil), sk.Plain...),
	}
	if len(out.Sealed) == 0 {
		out.Sealed = nil
	}
	if len(out.Plain) == 0 {
		out.Plain = nil
	}
	return &out
}

// Protected reports whether the secret material is under a passphrase
// envelope rather than stored in the clear.
func (sk *SecretKey) Protected() bool {
	return sk != nil && len(sk.Sealed) > 0
}

func (u *UserID) Clone() *UserID {
	if u == nil {
		return nil
	}
	out := *u
	return &out
}

func (s *Signature) Clone() *Signature {
	if s == nil {
		return nil
	}
	out := *s
	out.Value = append([]byte(nil), s.Value...)
	out.Prefs = append([]Preference(nil), s.Prefs...)
	return &out
}

// Certifying reports whether the signature binds an identity to a key
// (classes 0x10 through 0x13).
func (s *Signature) Certifying() bool {
	return s != nil && s.Class.Certifying()
}

