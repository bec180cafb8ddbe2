package cli

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigil/keytool/internal/certify"
	"sigil/keytool/internal/config"
	"sigil/keytool/internal/console"
	"sigil/keytool/internal/keyblock"
	"sigil/keytool/internal/keyring"
	"sigil/keytool/internal/seal"
	"sigil/keytool/internal/trust"
	"sigil/keytool/pkg/packet"
)

const aliceName = "Alice <alice@example.org>"

func edKey(t *testing.T) (*packet.PublicKey, *packet.SecretKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	pk := &packet.PublicKey{
		Algorithm: packet.AlgoEd25519,
		Material:  append([]byte(nil), pub...),
		CreatedAt: time.Unix(1700000000, 0).UTC(),
	}
	return pk, &packet.SecretKey{PublicKey: *pk.Clone(), Plain: append([]byte(nil), priv...)}
}

type cliEnv struct {
	rt  *runtime
	out *bytes.Buffer
}

// newCLIEnv wires a runtime around a throwaway home directory, with
// scripted console input.
func newCLIEnv(t *testing.T, input string) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	ring, err := keyring.Open(dir, nil)
	require.NoError(t, err)
	trustStore, err := trust.Open(filepath.Join(dir, "trustdb.json"))
	require.NoError(t, err)
	sealer := seal.New(seal.Params{Time: 1, MemoryKB: 64, Threads: 1}, nil)
	out := &bytes.Buffer{}
	term := console.New(strings.NewReader(input), out, false)

	cfg := config.Default()
	cfg.HomeDir = dir
	return &cliEnv{
		rt: &runtime{
			cfg:     cfg,
			log:     slog.New(slog.DiscardHandler),
			ring:    ring,
			trust:   trustStore,
			sealer:  sealer,
			signSvc: certify.New(ring, sealer, cfg.HashAlgorithm, term.ReadPassphrase),
			term:    term,
		},
		out: out,
	}
}

// seedKey adds a freshly generated, self-certified pair to both rings.
func seedKey(t *testing.T, env *cliEnv, name string, tamper bool) *packet.PublicKey {
	t.Helper()
	pk, sk := edKey(t)
	uid := &packet.UserID{Name: name}
	sig, err := env.rt.signSvc.Certify(pk, uid, sk, packet.ClassPositive, nil)
	require.NoError(t, err)
	if tamper {
		sig.Value[0] ^= 0xff
	}

	pub, err := keyblock.New(keyblock.PrimaryPublic(pk),
		keyblock.UserID(uid),
		keyblock.Signature(sig))
	require.NoError(t, err)
	_, err = env.rt.ring.AddPublic(pub)
	require.NoError(t, err)

	sec, err := keyblock.New(keyblock.PrimarySecret(sk),
		keyblock.UserID(uid.Clone()),
		keyblock.Signature(sig.Clone()))
	require.NoError(t, err)
	_, err = env.rt.ring.AddSecret(sec)
	require.NoError(t, err)
	return pk
}

func TestRunEditQuitSession(t *testing.T) {
	env := newCLIEnv(t, "quit\n")
	seedKey(t, env, aliceName, false)

	require.NoError(t, runEdit(env.rt, "alice", nil))

	text := env.out.String()
	assert.Contains(t, text, "Secret key is available.")
	assert.Contains(t, text, "pub")
	assert.Contains(t, text, aliceName)
}

func TestRunEditUnknownKey(t *testing.T) {
	env := newCLIEnv(t, "")
	err := runEdit(env.rt, "ghost", nil)
	assert.ErrorIs(t, err, keyring.ErrNotFound)
}

func TestRunEditCheckVerifiesSelfSignature(t *testing.T) {
	env := newCLIEnv(t, "check\nquit\n")
	seedKey(t, env, aliceName, false)

	require.NoError(t, runEdit(env.rt, "alice", nil))

	text := env.out.String()
	assert.Contains(t, text, "sig!")
	assert.Contains(t, text, "[self-signature]")
}

func TestRunAuditCleanKey(t *testing.T) {
	env := newCLIEnv(t, "")
	seedKey(t, env, aliceName, false)

	require.NoError(t, runAudit(env.rt, "alice"))
	assert.Contains(t, env.out.String(), "sig!")
}

func TestRunAuditBadSignature(t *testing.T) {
	env := newCLIEnv(t, "")
	seedKey(t, env, aliceName, true)

	err := runAudit(env.rt, "alice")
	require.Error(t, err)
	assert.Contains(t, env.out.String(), "sig-")
	assert.Contains(t, env.out.String(), "1 bad signature")
}

func TestResolveSignersExplicit(t *testing.T) {
	env := newCLIEnv(t, "")
	pk := seedKey(t, env, aliceName, false)

	signers, err := resolveSigners(env.rt, []string{"alice"})
	require.NoError(t, err)
	require.Len(t, signers, 1)
	assert.Equal(t, aliceName, signers[0].Name)
	assert.Equal(t, pk.KeyID(), signers[0].Key.PublicKey.KeyID())
}

func TestResolveSignersConfigDefault(t *testing.T) {
	env := newCLIEnv(t, "")
	seedKey(t, env, aliceName, false)
	env.rt.cfg.DefaultSigners = []string{"alice@example.org"}

	signers, err := resolveSigners(env.rt, nil)
	require.NoError(t, err)
	assert.Len(t, signers, 1)
}

func TestResolveSignersUnknown(t *testing.T) {
	env := newCLIEnv(t, "")
	_, err := resolveSigners(env.rt, []string{"ghost"})
	assert.ErrorIs(t, err, keyring.ErrNotFound)
}

func TestRootHelpListsCommands(t *testing.T) {
	buf := &bytes.Buffer{}
	root := NewRootCmd()
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"--help"})

	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "edit")
	assert.Contains(t, buf.String(), "audit")
}

func TestVersionCommand(t *testing.T) {
	buf := &bytes.Buffer{}
	root := NewRootCmd()
	root.SetOut(buf)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "sigil")
}

func TestEditCommandUnknownKey(t *testing.T) {
	for _, key := range []string{"SIGIL_CONFIG", "SIGIL_LOG_LEVEL", "SIGIL_METRICS_ADDR", "SIGIL_HASH"} {
		t.Setenv(key, "")
	}
	t.Setenv("SIGIL_HOME", t.TempDir())

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"edit", "ghost"})

	err := root.Execute()
	assert.ErrorIs(t, err, keyring.ErrNotFound)
}
