// Package keyring stores key records as JSON ring files and finds them
// by user identity, key ID, or handle. Records are addressed by opaque
// position tokens so an edited block can be committed back to the slot
// it came from.
package keyring

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"sigil/keytool/internal/keyblock"
	"sigil/keytool/pkg/packet"
)

const (
	ringVersion = 1
	pubRingFile = "pubring.json"
	secRingFile = "secring.json"
)

var (
	ErrNotFound     = errors.New("keyring: no matching key")
	ErrUnknownToken = errors.New("keyring: unknown record token")
)

type ringFile struct {
	Version int      `json:"version"`
	Records []record `json:"records"`
}

type record struct {
	Token string       `json:"token"`
	Nodes []nodeRecord `json:"nodes"`
}

type Store struct {
	mu  sync.Mutex
	dir string
	pub []record
	sec []record

	lookups        prometheus.Counter
	lookupMisses   prometheus.Counter
	commits        prometheus.Counter
	commitFailures prometheus.Counter
}

// Open loads both ring files from dir, creating the directory when
// missing. Metrics land on reg; a nil reg leaves them unregistered.
func Open(dir string, reg prometheus.Registerer) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create keyring dir: %w", err)
	}
	s := &Store{dir: dir}

	factory := promauto.With(reg)
	s.lookups = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "sigil", Subsystem: "keyring", Name: "lookups_total",
		Help: "Keyring lookups by name, key ID, or handle.",
	})
	s.lookupMisses = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "sigil", Subsystem: "keyring", Name: "lookup_misses_total",
		Help: "Keyring lookups that matched nothing.",
	})
	s.commits = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "sigil", Subsystem: "keyring", Name: "commits_total",
		Help: "Keyblock records written back to a ring file.",
	})
	s.commitFailures = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "sigil", Subsystem: "keyring", Name: "commit_failures_total",
		Help: "Keyblock commits that failed to persist.",
	})

	var err error
	if s.pub, err = loadRing(filepath.Join(dir, pubRingFile)); err != nil {
		return nil, err
	}
	if s.sec, err = loadRing(filepath.Join(dir, secRingFile)); err != nil {
		return nil, err
	}
	return s, nil
}

func loadRing(path string) ([]record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ring %s: %w", filepath.Base(path), err)
	}
	var ring ringFile
	if err := json.Unmarshal(data, &ring); err != nil {
		return nil, fmt.Errorf("decode ring %s: %w", filepath.Base(path), err)
	}
	return ring.Records, nil
}

// FindPublic returns the first public block matching the query and the
// token to commit it back with.
func (s *Store) FindPublic(query string) (*keyblock.Block, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findLocked(s.pub, query)
}

// FindSecret is FindPublic for the secret ring.
func (s *Store) FindSecret(query string) (*keyblock.Block, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findLocked(s.sec, query)
}

func (s *Store) findLocked(ring []record, query string) (*keyblock.Block, string, error) {
	s.lookups.Inc()
	query = strings.TrimSpace(query)
	for _, rec := range ring {
		if recordMatches(rec, query) {
			b, err := decodeBlock(rec.Nodes)
			if err != nil {
				return nil, "", fmt.Errorf("record %s: %w", rec.Token, err)
			}
			return b, rec.Token, nil
		}
	}
	s.lookupMisses.Inc()
	return nil, "", fmt.Errorf("%w: %q", ErrNotFound, query)
}

// FindSecretByKeyID returns the secret block whose primary key matches,
// used to pair the secret side with an already loaded public block.
func (s *Store) FindSecretByKeyID(id packet.KeyID) (*keyblock.Block, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.sec {
		if len(rec.Nodes) > 0 && rec.Nodes[0].Secret != nil && rec.Nodes[0].Secret.KeyID() == id {
			b, err := decodeBlock(rec.Nodes)
			if err != nil {
				return nil, "", fmt.Errorf("record %s: %w", rec.Token, err)
			}
			return b, rec.Token, nil
		}
	}
	return nil, "", fmt.Errorf("%w: secret for %s", ErrNotFound, id)
}

// AddPublic appends a new public record and persists the ring.
func (s *Store) AddPublic(b *keyblock.Block) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(&s.pub, pubRingFile, b)
}

// AddSecret appends a new secret record and persists the ring.
func (s *Store) AddSecret(b *keyblock.Block) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(&s.sec, secRingFile, b)
}

func (s *Store) addLocked(ring *[]record, file string, b *keyblock.Block) (string, error) {
	rec := record{Token: uuid.NewString(), Nodes: encodeBlock(b)}
	next := append(append([]record(nil), *ring...), rec)
	if err := s.persist(file, next); err != nil {
		return "", err
	}
	*ring = next
	return rec.Token, nil
}

// CommitPublic writes the block back over the record the token names.
func (s *Store) CommitPublic(token string, b *keyblock.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked(&s.pub, pubRingFile, token, b)
}

// CommitSecret is CommitPublic for the secret ring.
func (s *Store) CommitSecret(token string, b *keyblock.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked(&s.sec, secRingFile, token, b)
}

func (s *Store) commitLocked(ring *[]record, file, token string, b *keyblock.Block) error {
	at := -1
	for i, rec := range *ring {
		if rec.Token == token {
			at = i
			break
		}
	}
	if at < 0 {
		s.commitFailures.Inc()
		return fmt.Errorf("%w: %s", ErrUnknownToken, token)
	}
	next := append([]record(nil), *ring...)
	next[at] = record{Token: token, Nodes: encodeBlock(b)}
	if err := s.persist(file, next); err != nil {
		s.commitFailures.Inc()
		return err
	}
	*ring = next
	s.commits.Inc()
	return nil
}

func (s *Store) persist(file string, records []record) error {
	data, err := json.MarshalIndent(ringFile{Version: ringVersion, Records: records}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ring %s: %w", file, err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, file), data, 0o600); err != nil {
		return fmt.Errorf("write ring %s: %w", file, err)
	}
	return nil
}

// LookupKey resolves a primary key or subkey on the public ring, for
// signature verification.
func (s *Store) LookupKey(id packet.KeyID) (*packet.PublicKey, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.pub {
		for _, n := range rec.Nodes {
			if n.Key != nil && n.Key.KeyID() == id {
				return n.Key.Clone(), true
			}
		}
	}
	return nil, false
}

// LookupName resolves the first user identity of the record holding the
// key, for display next to foreign signatures.
func (s *Store) LookupName(id packet.KeyID) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.pub {
		owns := false
		for _, n := range rec.Nodes {
			if n.Key != nil && n.Key.KeyID() == id {
				owns = true
				break
			}
		}
		if !owns {
			continue
		}
		for _, n := range rec.Nodes {
			if n.UserID != nil {
				return n.UserID.Name, true
			}
		}
		return "", false
	}
	return "", false
}

func recordMatches(rec record, query string) bool {
	if query == "" {
		return false
	}
	if id, ok := packet.ParseKeyID(query); ok {
		return recordHasKeyID(rec, id)
	}
	if short, ok := shortKeyID(query); ok {
		for _, n := range rec.Nodes {
			if n.Key != nil && n.Key.KeyID().Short() == short {
				return true
			}
			if n.Secret != nil && n.Secret.KeyID().Short() == short {
				return true
			}
		}
		return false
	}
	if packet.IsHandle(query) {
		for _, n := range rec.Nodes {
			if n.Key != nil && n.Key.Handle() == query {
				return true
			}
			if n.Secret != nil && n.Secret.Handle() == query {
				return true
			}
		}
		return false
	}
	lower := strings.ToLower(query)
	for _, n := range rec.Nodes {
		if n.UserID != nil && strings.Contains(strings.ToLower(n.UserID.Name), lower) {
			return true
		}
	}
	return false
}

func recordHasKeyID(rec record, id packet.KeyID) bool {
	for _, n := range rec.Nodes {
		if n.Key != nil && n.Key.KeyID() == id {
			return true
		}
		if n.Secret != nil && n.Secret.KeyID() == id {
			return true
		}
	}
	return false
}

func shortKeyID(query string) (string, bool) {
	if !strings.HasPrefix(query, "0x") && !strings.HasPrefix(query, "0X") {
		return "", false
	}
	hex := strings.ToUpper(query[2:])
	if len(hex) != 8 {
		return "", false
	}
	for _, c := range hex {
		if (c < '0' || c > '9') && (c < 'A' || c > 'F') {
			return "", false
		}
	}
	return hex, true
}
