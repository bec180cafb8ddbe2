// Package trust keeps operator-assigned owner trust per key plus a
// cache of computed validity, persisted as one JSON file. Computing
// validity from the signature graph happens elsewhere; this store only
// records and invalidates results.
package trust

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"sigil/keytool/internal/editor"
	"sigil/keytool/pkg/packet"
)

const fileVersion = 1

type fileFormat struct {
	Version    int               `json:"version"`
	OwnerTrust map[string]string `json:"owner_trust"`
	Validity   map[string]string `json:"validity"`
}

type Store struct {
	mu    sync.Mutex
	path  string
	owner map[string]editor.TrustLevel
	cache map[string]editor.TrustLevel
}

func Open(path string) (*Store, error) {
	s := &Store{
		path:  path,
		owner: make(map[string]editor.TrustLevel),
		cache: make(map[string]editor.TrustLevel),
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read trust store: %w", err)
	}
	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode trust store: %w", err)
	}
	for fp, lv := range f.OwnerTrust {
		s.owner[fp] = parseLevel(lv)
	}
	for fp, lv := range f.Validity {
		s.cache[fp] = parseLevel(lv)
	}
	return s, nil
}

func (s *Store) OwnerTrust(pk *packet.PublicKey) editor.TrustLevel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner[pk.Fingerprint().String()]
}

// Validity returns the cached computed validity, falling back to the
// assigned owner trust when nothing has been computed yet.
func (s *Store) Validity(pk *packet.PublicKey) editor.TrustLevel {
	s.mu.Lock()
	defer s.mu.Unlock()
	fp := pk.Fingerprint().String()
	if lv, ok := s.cache[fp]; ok {
		return lv
	}
	return s.owner[fp]
}

func (s *Store) SetOwnerTrust(pk *packet.PublicKey, level editor.TrustLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owner[pk.Fingerprint().String()] = level
	return s.persistLocked()
}

// SetValidity records a computed validity for later queries.
func (s *Store) SetValidity(pk *packet.PublicKey, level editor.TrustLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[pk.Fingerprint().String()] = level
	return s.persistLocked()
}

// ClearCache drops the cached validity for a key, typically after its
// signatures changed.
func (s *Store) ClearCache(pk *packet.PublicKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fp := pk.Fingerprint().String()
	if _, ok := s.cache[fp]; !ok {
		return nil
	}
	delete(s.cache, fp)
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	f := fileFormat{
		Version:    fileVersion,
		OwnerTrust: make(map[string]string, len(s.owner)),
		Validity:   make(map[string]string, len(s.cache)),
	}
	for fp, lv := range s.owner {
		f.OwnerTrust[fp] = lv.String()
	}
	for fp, lv := range s.cache {
		f.Validity[fp] = lv.String()
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode trust store: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create trust dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write trust store: %w", err)
	}
	return nil
}

func parseLevel(s string) editor.TrustLevel {
	switch s {
	case "never":
		return editor.TrustNever
	case "marginal":
		return editor.TrustMarginal
	case "full":
		return editor.TrustFull
	case "ultimate":
		return editor.TrustUltimate
	default:
		return editor.TrustUnknown
	}
}
