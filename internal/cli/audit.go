package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"sigil/keytool/internal/editor"
	"sigil/keytool/internal/keyblock"
)

func auditCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "audit <key>",
		Short: "Check the certifications on a key block",
		Long:  "Audit verifies every certifying signature on the key and prints one row per signature. The exit status is non-zero when any signature is bad, unverifiable, or a user ID lacks a valid self-signature.",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			rt, err := newRuntime(opts)
			if err != nil {
				return err
			}
			defer rt.Close()
			return runAudit(rt, args[0])
		},
	}
}

func runAudit(rt *runtime, query string) error {
	pub, _, err := rt.ring.FindPublic(query)
	if err != nil {
		return fmt.Errorf("key %q: %w", query, err)
	}

	rep := editor.AuditSignatures(pub, keyblock.FlagSet{}, false, rt.signSvc)
	rt.term.ShowAudit(*rep)
	if !rep.Clean() {
		return errors.New("signature audit found problems")
	}
	return nil
}
