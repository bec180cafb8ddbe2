package editor

import (
	"bytes"
	"io"
	"testing"
	"time"

	"sigil/keytool/internal/keyblock"
	"sigil/keytool/pkg/packet"
)

const (
	aliceName = "Alice <alice@example.org>"
	workName  = "Work <work@example.org>"
	bobName   = "Bob <bob@example.org>"
)

func pubKey(seed byte) *packet.PublicKey {
	return &packet.PublicKey{
		Algorithm: packet.AlgoEd25519,
		Material:  bytes.Repeat([]byte{seed}, 32),
		CreatedAt: time.Unix(1700000000, 0).UTC(),
	}
}

func secKey(seed byte) *packet.SecretKey {
	return &packet.SecretKey{
		PublicKey: *pubKey(seed),
		Plain:     bytes.Repeat([]byte{seed ^ 0xff}, 32),
	}
}

func sig(signer packet.KeyID, class packet.SigClass, prefs ...packet.Preference) *packet.Signature {
	return &packet.Signature{
		Class:     class,
		Signer:    signer,
		CreatedAt: time.Unix(1700000100, 0).UTC(),
		HashAlgo:  "sha256",
		Value:     []byte{0xde, 0xad},
		Prefs:     prefs,
	}
}

func mustBlock(t *testing.T, first keyblock.Node, rest ...keyblock.Node) *keyblock.Block {
	t.Helper()
	b, err := keyblock.New(first, rest...)
	if err != nil {
		t.Fatalf("build block: %v", err)
	}
	return b
}

// fullPair builds the standard fixture: Alice's key with two
// identities, a self-certification on each, Bob's certification on
// the work identity, and one subkey with its binding signature. The
// secret half mirrors the public one node for node.
func fullPair(t *testing.T, withSecret bool) *Pair {
	t.Helper()
	primary := pubKey(0xA1)
	primaryID := primary.KeyID()
	bobID := pubKey(0xB0).KeyID()
	subPub := pubKey(0xA2)

	prefs := []packet.Preference{{Type: packet.PrefCipher, Value: 2}, {Type: packet.PrefHash, Value: 8}}
	pub := mustBlock(t, keyblock.PrimaryPublic(primary),
		keyblock.UserID(&packet.UserID{Name: aliceName}),
		keyblock.Signature(sig(primaryID, packet.ClassPositive, prefs...)),
		keyblock.UserID(&packet.UserID{Name: workName}),
		keyblock.Signature(sig(primaryID, packet.ClassPositive)),
		keyblock.Signature(sig(bobID, packet.ClassGeneric)),
		keyblock.PublicSubkey(subPub),
		keyblock.Signature(sig(primaryID, packet.ClassSubkeyBinding)),
	)
	pair := &Pair{Public: pub, PublicToken: "pub-token"}
	if !withSecret {
		return pair
	}
	sec := mustBlock(t, keyblock.PrimarySecret(secKey(0xA1)),
		keyblock.UserID(&packet.UserID{Name: aliceName}),
		keyblock.Signature(sig(primaryID, packet.ClassPositive, prefs...)),
		keyblock.UserID(&packet.UserID{Name: workName}),
		keyblock.Signature(sig(primaryID, packet.ClassPositive)),
		keyblock.Signature(sig(bobID, packet.ClassGeneric)),
		keyblock.SecretSubkey(secKey(0xA2)),
		keyblock.Signature(sig(primaryID, packet.ClassSubkeyBinding)),
	)
	pair.Secret = sec
	pair.SecretToken = "sec-token"
	return pair
}

// singlePair builds a one-identity key without subkeys.
func singlePair(t *testing.T, withSecret bool) *Pair {
	t.Helper()
	primary := pubKey(0xA1)
	pub := mustBlock(t, keyblock.PrimaryPublic(primary),
		keyblock.UserID(&packet.UserID{Name: aliceName}),
		keyblock.Signature(sig(primary.KeyID(), packet.ClassPositive)),
	)
	pair := &Pair{Public: pub, PublicToken: "pub-token"}
	if withSecret {
		pair.Secret = mustBlock(t, keyblock.PrimarySecret(secKey(0xA1)),
			keyblock.UserID(&packet.UserID{Name: aliceName}),
			keyblock.Signature(sig(primary.KeyID(), packet.ClassPositive)),
		)
		pair.SecretToken = "sec-token"
	}
	return pair
}

func nthUserID(t *testing.T, b *keyblock.Block, n int) keyblock.NodeID {
	t.Helper()
	ids := b.Collect(func(nd keyblock.Node) bool { return nd.Kind == keyblock.KindUserID })
	if n < 1 || n > len(ids) {
		t.Fatalf("no user id %d, have %d", n, len(ids))
	}
	return ids[n-1]
}

type fakeVerifier struct {
	bad   map[*packet.Signature]bool
	errs  map[*packet.Signature]error
	known map[packet.KeyID]string
}

func (v *fakeVerifier) Verify(primary *packet.PublicKey, _ *packet.UserID, s *packet.Signature) Verification {
	self := s.Signer == primary.KeyID()
	if err, ok := v.errs[s]; ok {
		return Verification{Verdict: VerdictError, SelfSig: self, Err: err}
	}
	if v.bad[s] {
		return Verification{Verdict: VerdictBad, SelfSig: self}
	}
	if !self {
		if _, ok := v.known[s.Signer]; !ok {
			return Verification{Verdict: VerdictNoSignerKey}
		}
	}
	return Verification{Verdict: VerdictValid, SelfSig: self}
}

func (v *fakeVerifier) SignerName(id packet.KeyID) (string, bool) {
	name, ok := v.known[id]
	return name, ok
}

type fakeSigner struct {
	err       error
	failAfter int
	calls     int
}

func (f *fakeSigner) Certify(_ *packet.PublicKey, _ *packet.UserID, signer *packet.SecretKey, class packet.SigClass, prefs []packet.Preference) (*packet.Signature, error) {
	f.calls++
	if f.err != nil && (f.failAfter == 0 || f.calls > f.failAfter) {
		return nil, f.err
	}
	out := sig(signer.KeyID(), class)
	out.Prefs = append([]packet.Preference(nil), prefs...)
	return out, nil
}

type fakeProtector struct {
	pass       []byte
	protectErr error
	unlocks    int
	protects   int
}

func (p *fakeProtector) Unlock(sk *packet.SecretKey, passphrase []byte) ([]byte, error) {
	p.unlocks++
	if sk.Protected() && !bytes.Equal(passphrase, p.pass) {
		return nil, io.ErrUnexpectedEOF
	}
	return append([]byte(nil), sk.Material...), nil
}

// Protect records the new passphrase in Sealed so tests can observe
// which protection each key ended up with.
func (p *fakeProtector) Protect(sk *packet.SecretKey, material, passphrase []byte) error {
	if p.protectErr != nil {
		return p.protectErr
	}
	p.protects++
	if len(passphrase) == 0 {
		sk.Sealed = nil
		sk.Plain = append([]byte(nil), material...)
		return nil
	}
	sk.Sealed = append([]byte(nil), passphrase...)
	sk.Plain = nil
	return nil
}

type newPassAnswer struct {
	pass []byte
	ok   bool
}

type scriptPrompter struct {
	lines       []string
	passphrases [][]byte
	newPass     []newPassAnswer
	answers     []bool
	asked       []Confirm
	yes         bool

	passphraseReads int
}

func (p *scriptPrompter) ReadLine(PromptCode) (string, error) {
	if len(p.lines) == 0 {
		return "", io.EOF
	}
	line := p.lines[0]
	p.lines = p.lines[1:]
	return line, nil
}

func (p *scriptPrompter) ReadPassphrase(PassphraseRequest) ([]byte, error) {
	p.passphraseReads++
	if len(p.passphrases) == 0 {
		return nil, io.EOF
	}
	pass := p.passphrases[0]
	p.passphrases = p.passphrases[1:]
	return pass, nil
}

func (p *scriptPrompter) ReadNewPassphrase() ([]byte, bool, error) {
	if len(p.newPass) == 0 {
		return nil, false, io.EOF
	}
	a := p.newPass[0]
	p.newPass = p.newPass[1:]
	return a.pass, a.ok, nil
}

func (p *scriptPrompter) Confirm(c Confirm) (bool, error) {
	p.asked = append(p.asked, c)
	if len(p.answers) == 0 {
		return false, io.EOF
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a, nil
}

func (p *scriptPrompter) AssumeYes() bool { return p.yes }

type recordPresenter struct {
	summaries []KeySummary
	audits    []AuditReport
	fprs      []FingerprintInfo
	helps     [][]CommandHelp
	notices   []Notice
}

func (p *recordPresenter) ShowKey(s KeySummary) { p.summaries = append(p.summaries, s) }

func (p *recordPresenter) ShowAudit(r AuditReport) { p.audits = append(p.audits, r) }

func (p *recordPresenter) ShowFingerprint(f FingerprintInfo) { p.fprs = append(p.fprs, f) }

func (p *recordPresenter) ShowHelp(cmds []CommandHelp) { p.helps = append(p.helps, cmds) }

func (p *recordPresenter) Notice(n Notice) { p.notices = append(p.notices, n) }

func (p *recordPresenter) noticeCount(code NoticeCode) int {
	n := 0
	for _, v := range p.notices {
		if v.Code == code {
			n++
		}
	}
	return n
}

type memStore struct {
	pub        map[string]*keyblock.Block
	sec        map[string]*keyblock.Block
	pubErr     error
	secErr     error
	pubCommits int
	secCommits int
}

func newMemStore() *memStore {
	return &memStore{pub: map[string]*keyblock.Block{}, sec: map[string]*keyblock.Block{}}
}

func (m *memStore) CommitPublic(token string, b *keyblock.Block) error {
	if m.pubErr != nil {
		return m.pubErr
	}
	m.pubCommits++
	m.pub[token] = b
	return nil
}

func (m *memStore) CommitSecret(token string, b *keyblock.Block) error {
	if m.secErr != nil {
		return m.secErr
	}
	m.secCommits++
	m.sec[token] = b
	return nil
}

type fakeTrust struct {
	owner  map[packet.KeyID]TrustLevel
	valid  map[packet.KeyID]TrustLevel
	setErr error
	clears int
}

func newFakeTrust() *fakeTrust {
	return &fakeTrust{owner: map[packet.KeyID]TrustLevel{}, valid: map[packet.KeyID]TrustLevel{}}
}

func (f *fakeTrust) OwnerTrust(pk *packet.PublicKey) TrustLevel { return f.owner[pk.KeyID()] }
func (f *fakeTrust) Validity(pk *packet.PublicKey) TrustLevel   { return f.valid[pk.KeyID()] }

func (f *fakeTrust) SetOwnerTrust(pk *packet.PublicKey, level TrustLevel) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.owner[pk.KeyID()] = level
	return nil
}

func (f *fakeTrust) ClearCache(*packet.PublicKey) error {
	f.clears++
	return nil
}
