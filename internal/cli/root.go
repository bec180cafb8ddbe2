// Package cli assembles the sigil commands: flag parsing, config and
// logger setup, and the wiring between the key rings and the
// interactive editor.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is stamped at build time.
var Version = "dev"

type options struct {
	configPath string
	assumeYes  bool
	localUsers []string
}

// NewRootCmd returns the `sigil` command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "sigil",
		Short:         "sigil - key certification tool",
		Long:          "Sigil edits key blocks: inspect and select user IDs and subkeys, audit certifications, sign, and manage passphrases and owner trust.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file path")
	pf.BoolVarP(&opts.assumeYes, "yes", "y", false, "assume yes on most questions")
	pf.StringSliceVarP(&opts.localUsers, "local-user", "u", nil, "certify with this key (repeatable)")

	root.AddCommand(editCmd(opts))
	root.AddCommand(auditCmd(opts))
	root.AddCommand(versionCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the sigil version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "sigil", Version)
		},
	}
}
