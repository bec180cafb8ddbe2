// Package certify creates and checks the certifying signatures that
// bind user identities to keys, with ed25519 and dilithium3 keys and a
// configurable digest.
package certify

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"golang.org/x/crypto/sha3"

	"sigil/keytool/internal/editor"
	"sigil/keytool/internal/seal"
	"sigil/keytool/pkg/packet"
)

var (
	ErrUnsupportedAlgorithm = errors.New("certify: unsupported key algorithm")
	ErrUnsupportedHash      = errors.New("certify: unsupported hash algorithm")
	ErrBadSecretMaterial    = errors.New("certify: secret material does not decode")
	ErrLocked               = errors.New("certify: signer key is locked and no passphrase source is wired")

	errNotCertifying = errors.New("certify: not a certifying signature")
)

// Directory resolves foreign signer keys, typically the public ring.
type Directory interface {
	LookupKey(id packet.KeyID) (*packet.PublicKey, bool)
	LookupName(id packet.KeyID) (string, bool)
}

// PassphraseFunc asks the operator to unlock a signer key.
type PassphraseFunc func(req editor.PassphraseRequest) ([]byte, error)

// Service implements the editor's Signer and Verifier ports. Unlocked
// signer passphrases are cached for the lifetime of the service, one
// editing session, so signing several identities prompts once.
type Service struct {
	dir       Directory
	protector *seal.Protector
	hashAlgo  string
	prompt    PassphraseFunc
	now       func() time.Time

	mu    sync.Mutex
	cache map[packet.KeyID][]byte
}

func New(dir Directory, protector *seal.Protector, hashAlgo string, prompt PassphraseFunc) *Service {
	if hashAlgo == "" {
		hashAlgo = "sha256"
	}
	return &Service{
		dir:       dir,
		protector: protector,
		hashAlgo:  hashAlgo,
		prompt:    prompt,
		now:       time.Now,
		cache:     make(map[packet.KeyID][]byte),
	}
}

// Forget zeroes and drops every cached passphrase.
func (s *Service) Forget() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, pass := range s.cache {
		zeroBytes(pass)
		delete(s.cache, id)
	}
}

func (s *Service) Certify(primary *packet.PublicKey, uid *packet.UserID, signer *packet.SecretKey, class packet.SigClass, prefs []packet.Preference) (*packet.Signature, error) {
	if primary == nil || uid == nil || signer == nil {
		return nil, errors.New("certify: missing key or identity")
	}
	created := s.now().UTC().Truncate(time.Second)
	digest, err := digestFor(s.hashAlgo, certBytes(primary.Fingerprint(), uid.Name, class, created, prefs))
	if err != nil {
		return nil, err
	}

	material, err := s.signerMaterial(signer)
	if err != nil {
		return nil, err
	}
	defer zeroBytes(material)

	value, err := signDigest(signer.Algorithm, material, digest)
	if err != nil {
		return nil, err
	}
	return &packet.Signature{
		Class:     class,
		Signer:    signer.KeyID(),
		CreatedAt: created,
		HashAlgo:  s.hashAlgo,
		Value:     value,
		Prefs:     append([]packet.Preference(nil), prefs...),
	}, nil
}

func (s *Service) Verify(primary *packet.PublicKey, uid *packet.UserID, sig *packet.Signature) editor.Verification {
	if primary == nil || uid == nil || sig == nil || !sig.Certifying() {
		return editor.Verification{Verdict: editor.VerdictError, Err: errNotCertifying}
	}
	self := sig.Signer == primary.KeyID()

	signerKey := primary
	if !self {
		pk, ok := s.dir.LookupKey(sig.Signer)
		if !ok {
			return editor.Verification{Verdict: editor.VerdictNoSignerKey}
		}
		signerKey = pk
	}

	digest, err := digestFor(sig.HashAlgo, certBytes(primary.Fingerprint(), uid.Name, sig.Class, sig.CreatedAt, sig.Prefs))
	if err != nil {
		return editor.Verification{Verdict: editor.VerdictError, SelfSig: self, Err: err}
	}
	ok, err := verifyDigest(signerKey.Algorithm, signerKey.Material, digest, sig.Value)
	if err != nil {
		return editor.Verification{Verdict: editor.VerdictError, SelfSig: self, Err: err}
	}
	if !ok {
		return editor.Verification{Verdict: editor.VerdictBad, SelfSig: self}
	}
	return editor.Verification{Verdict: editor.VerdictValid, SelfSig: self}
}

func (s *Service) SignerName(id packet.KeyID) (string, bool) {
	return s.dir.LookupName(id)
}

func (s *Service) signerMaterial(sk *packet.SecretKey) ([]byte, error) {
	if !sk.Protected() {
		return s.protector.Unlock(sk, nil)
	}
	id := sk.KeyID()

	s.mu.Lock()
	pass, cached := s.cache[id]
	s.mu.Unlock()
	if cached {
		material, err := s.protector.Unlock(sk, pass)
		if err == nil {
			return material, nil
		}
		// cached passphrase went stale, fall through and ask again
		s.mu.Lock()
		zeroBytes(pass)
		delete(s.cache, id)
		s.mu.Unlock()
	}

	if s.prompt == nil {
		return nil, ErrLocked
	}
	name, _ := s.dir.LookupName(id)
	pass, err := s.prompt(editor.PassphraseRequest{KeyID: id, Name: name})
	if err != nil {
		return nil, err
	}
	material, err := s.protector.Unlock(sk, pass)
	if err != nil {
		zeroBytes(pass)
		return nil, err
	}
	s.mu.Lock()
	s.cache[id] = pass
	s.mu.Unlock()
	return material, nil
}

// certBytes is the deterministic byte sequence a certification signs:
// primary fingerprint, class, identity name, creation time, and the
// preference list, NUL separated.
func certBytes(fp packet.Fingerprint, name string, class packet.SigClass, created time.Time, prefs []packet.Preference) []byte {
	b := make([]byte, 0, packet.FingerprintSize+len(name)+2*len(prefs)+12)
	b = append(b, fp[:]...)
	b = append(b, 0, byte(class), 0)
	b = append(b, []byte(name)...)
	b = append(b, 0)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(created.UTC().Unix()))
	b = append(b, ts[:]...)
	for _, p := range prefs {
		b = append(b, byte(p.Type), p.Value)
	}
	return b
}

func digestFor(hashAlgo string, message []byte) ([]byte, error) {
	switch hashAlgo {
	case "sha256":
		s := sha256.Sum256(message)
		return s[:], nil
	case "sha512":
		s := sha512.Sum512(message)
		return s[:], nil
	case "sha3-256":
		s := sha3.Sum256(message)
		return s[:], nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedHash, hashAlgo)
	}
}

func signDigest(algo packet.KeyAlgorithm, material, digest []byte) ([]byte, error) {
	switch algo {
	case packet.AlgoEd25519:
		if len(material) != ed25519.PrivateKeySize {
			return nil, ErrBadSecretMaterial
		}
		return ed25519.Sign(ed25519.PrivateKey(material), digest), nil
	case packet.AlgoDilithium3:
		var priv mode3.PrivateKey
		if err := priv.UnmarshalBinary(material); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadSecretMaterial, err)
		}
		sig := make([]byte, mode3.SignatureSize)
		mode3.SignTo(&priv, digest, sig)
		return sig, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, algo)
	}
}

func verifyDigest(algo packet.KeyAlgorithm, material, digest, sig []byte) (bool, error) {
	switch algo {
	case packet.AlgoEd25519:
		if len(material) != ed25519.PublicKeySize {
			return false, errors.New("certify: invalid ed25519 public key length")
		}
		return ed25519.Verify(ed25519.PublicKey(material), digest, sig), nil
	case packet.AlgoDilithium3:
		var pub mode3.PublicKey
		if err := pub.UnmarshalBinary(material); err != nil {
			return false, fmt.Errorf("certify: invalid dilithium3 public key: %v", err)
		}
		if len(sig) != mode3.SignatureSize {
			return false, nil
		}
		return mode3.Verify(&pub, digest, sig), nil
	default:
		return false, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, algo)
	}
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
