package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"sigil/keytool/internal/editor"
	"sigil/keytool/internal/keyblock"
	"sigil/keytool/internal/keyring"
)

func editCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <key>",
		Short: "Interactively edit a key block",
		Long:  "Edit looks up a key by user ID, key ID, or fingerprint and starts the interactive session. Nothing is written back until you save.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			rt, err := newRuntime(opts)
			if err != nil {
				return err
			}
			defer rt.Close()
			return runEdit(rt, args[0], opts.localUsers)
		},
	}
}

func runEdit(rt *runtime, query string, localUsers []string) error {
	pub, pubToken, err := rt.ring.FindPublic(query)
	if err != nil {
		return fmt.Errorf("key %q: %w", query, err)
	}
	pair := &editor.Pair{Public: pub, PublicToken: pubToken}

	sec, secToken, err := rt.ring.FindSecretByKeyID(pub.PrimaryKeyID())
	switch {
	case err == nil:
		pair.Secret = sec
		pair.SecretToken = secToken
	case errors.Is(err, keyring.ErrNotFound):
		// Public-only edit.
	default:
		return fmt.Errorf("secret half of %q: %w", query, err)
	}

	signers, err := resolveSigners(rt, localUsers)
	if err != nil {
		return err
	}
	prefs, err := rt.cfg.Preferences()
	if err != nil {
		return err
	}

	rt.log.Debug("editing key", "key_id", pub.PrimaryKeyID().String(), "public_only", !pair.HasSecret())
	sess := editor.NewSession(pair, editor.Deps{
		Store:     rt.ring,
		Verifier:  rt.signSvc,
		Signer:    rt.signSvc,
		Protector: rt.sealer,
		Trust:     rt.trust,
		Prompter:  rt.term,
		Presenter: rt.term,
		Signers:   signers,
		Prefs:     prefs,
		Log:       rt.log,
	})
	return sess.Run()
}

// resolveSigners loads the certification keys named on the command
// line, falling back to the configured defaults. No names means no
// signers; the sign command then reports that.
func resolveSigners(rt *runtime, localUsers []string) ([]editor.SignerKey, error) {
	names := localUsers
	if len(names) == 0 {
		names = rt.cfg.DefaultSigners
	}
	signers := make([]editor.SignerKey, 0, len(names))
	for _, name := range names {
		block, _, err := rt.ring.FindSecret(name)
		if err != nil {
			return nil, fmt.Errorf("local user %q: %w", name, err)
		}
		display := name
		if n := firstName(block); n != "" {
			display = n
		} else if n, ok := rt.ring.LookupName(block.PrimaryKeyID()); ok {
			display = n
		}
		signers = append(signers, editor.SignerKey{Key: block.Primary().Secret, Name: display})
	}
	return signers, nil
}

func firstName(b *keyblock.Block) string {
	var name string
	b.Walk(func(n keyblock.Node) bool {
		if n.UserID != nil {
			name = n.UserID.Name
			return false
		}
		return true
	})
	return name
}
