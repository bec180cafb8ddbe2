package packet

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/mr-tron/base58/base58"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/blake2b"
)

const (
	// FingerprintSize is the length of a key fingerprint in bytes.
	FingerprintSize = 20

	handlePrefix = "sgl1"
)

// Fingerprint is the BLAKE2b digest of a key's algorithm and material,
// truncated to FingerprintSize bytes.
type Fingerprint [FingerprintSize]byte

// KeyID is the trailing eight bytes of a fingerprint, big endian.
type KeyID uint64

func (pk *PublicKey) Fingerprint() Fingerprint {
	material := make([]byte, 0, len(pk.Algorithm)+1+len(pk.Material))
	material = append(material, []byte(pk.Algorithm)...)
	material = append(material, 0)
	material = append(material, pk.Material...)
	sum := blake2b.Sum256(material)

	var fp Fingerprint
	copy(fp[:], sum[:FingerprintSize])
	return fp
}

func (pk *PublicKey) KeyID() KeyID {
	return pk.Fingerprint().KeyID()
}

// Handle is the short textual form of a key, a prefixed base58 encoding
// of its fingerprint.
func (pk *PublicKey) Handle() string {
	fp := pk.Fingerprint()
	return handlePrefix + base58.Encode(fp[:])
}

func (f Fingerprint) KeyID() KeyID {
	return KeyID(binary.BigEndian.Uint64(f[FingerprintSize-8:]))
}

func (f Fingerprint) String() string {
	return fmt.Sprintf("%X", f[:])
}

// Words renders the fingerprint as a mnemonic word sequence for verbal
// comparison.
func (f Fingerprint) Words() ([]string, error) {
	mnemonic, err := bip39.NewMnemonic(f[:])
	if err != nil {
		return nil, fmt.Errorf("render fingerprint words: %w", err)
	}
	return strings.Fields(mnemonic), nil
}

func (id KeyID) String() string {
	return fmt.Sprintf("%016X", uint64(id))
}

// Short is the low 32 bits in hex, the familiar short form.
func (id KeyID) Short() string {
	return fmt.Sprintf("%08X", uint32(id))
}

// ParseKeyID accepts a full 16-digit hex key ID, optionally 0x-prefixed.
func ParseKeyID(s string) (KeyID, bool) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}
	if len(s) != 16 {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, false
	}
	return KeyID(v), true
}

// IsHandle reports whether s looks like a key handle.
func IsHandle(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), handlePrefix)
}
