// Package seal protects secret key material at rest with an argon2id
// derived key and an XChaCha20-Poly1305 envelope.
package seal

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"sigil/keytool/internal/platform/ratelimit"
	"sigil/keytool/pkg/packet"
)

const (
	envelopeVersion = 1
	saltSize        = 16
)

var (
	ErrAuthFailed      = errors.New("seal authentication failed")
	ErrInvalid         = errors.New("seal envelope is invalid")
	ErrTooManyAttempts = errors.New("seal unlock attempts exhausted")
)

type envelope struct {
	Version     uint32 `json:"version"`
	KDF         string `json:"kdf"`
	KDFTime     uint32 `json:"kdf_time"`
	KDFMemoryKB uint32 `json:"kdf_memory_kb"`
	KDFThreads  uint8  `json:"kdf_threads"`
	Salt        []byte `json:"salt"`
	Nonce       []byte `json:"nonce"`
	Ciphertext  []byte `json:"ciphertext"`
}

type Params struct {
	Time     uint32
	MemoryKB uint32
	Threads  uint8
}

func DefaultParams() Params {
	return Params{Time: 2, MemoryKB: 64 * 1024, Threads: 1}
}

// Protector seals and unseals secret key material. A nil attempt
// limiter disables throttling.
type Protector struct {
	params   Params
	attempts *ratelimit.Attempts
	now      func() time.Time
}

func New(params Params, attempts *ratelimit.Attempts) *Protector {
	if params.Time == 0 || params.MemoryKB == 0 || params.Threads == 0 {
		params = DefaultParams()
	}
	return &Protector{params: params, attempts: attempts, now: time.Now}
}

// Unlock returns the plaintext secret material. An unprotected key
// yields a copy of its stored material without consuming an attempt.
func (p *Protector) Unlock(sk *packet.SecretKey, passphrase []byte) ([]byte, error) {
	if sk == nil {
		return nil, ErrInvalid
	}
	if !sk.Protected() {
		return append([]byte(nil), sk.Plain...), nil
	}
	if !p.attempts.Allow(sk.Fingerprint().String(), p.now()) {
		return nil, ErrTooManyAttempts
	}

	var env envelope
	if err := json.Unmarshal(sk.Sealed, &env); err != nil {
		return nil, ErrInvalid
	}
	if env.Version != envelopeVersion || env.KDF != "argon2id" {
		return nil, ErrInvalid
	}

	key := deriveKey(passphrase, env.Salt, Params{Time: env.KDFTime, MemoryKB: env.KDFMemoryKB, Threads: env.KDFThreads})
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

// Protect reseals the key with the given passphrase. An empty
// passphrase stores the material in the clear; the are-you-sure gate
// for that belongs to the caller.
func (p *Protector) Protect(sk *packet.SecretKey, material, passphrase []byte) error {
	if sk == nil {
		return ErrInvalid
	}
	if len(passphrase) == 0 {
		sk.Plain = append([]byte(nil), material...)
		sk.Sealed = nil
		return nil
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	key := deriveKey(passphrase, salt, p.params)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return err
	}

	env := envelope{
		Version:     envelopeVersion,
		KDF:         "argon2id",
		KDFTime:     p.params.Time,
		KDFMemoryKB: p.params.MemoryKB,
		KDFThreads:  p.params.Threads,
		Salt:        salt,
		Nonce:       nonce,
		Ciphertext:  aead.Seal(nil, nonce, material, nil),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	sk.Sealed = raw
	sk.Plain = nil
	return nil
}

func deriveKey(passphrase, salt []byte, params Params) []byte {
	return argon2.IDKey(passphrase, salt, params.Time, params.MemoryKB, params.Threads, chacha20poly1305.KeySize)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
