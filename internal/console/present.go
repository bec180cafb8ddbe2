package console

import (
	"fmt"
	"strings"
	"time"

	"sigil/keytool/internal/editor"
	"sigil/keytool/internal/keyblock"
	"sigil/keytool/pkg/packet"
)

func dateString(t time.Time) string {
	return t.Format("2006-01-02")
}

func expiresString(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format("2006-01-02")
}

func (t *Terminal) ShowKey(s editor.KeySummary) {
	if len(s.Keys) == 0 {
		return
	}
	t.printKeyLine(s.Keys[0])
	for _, id := range s.Identities {
		marker := " "
		if id.Selected {
			marker = "*"
		}
		line := fmt.Sprintf("  (%d)%s %s", id.Index, marker, id.Name)
		if id.Selected {
			line = selectedStyle.Render(line)
		}
		fmt.Fprintln(t.out, line)
		if s.WithPrefs {
			fmt.Fprintln(t.out, mutedStyle.Render("       "+prefString(id.Prefs)))
		}
	}
	for _, k := range s.Keys[1:] {
		t.printKeyLine(k)
	}
	fmt.Fprintln(t.out)
}

func (t *Terminal) printKeyLine(k editor.KeyLine) {
	line := fmt.Sprintf("%s  %s/%s  created: %s  expires: %s",
		keyLabel(k.Kind), k.Algorithm, k.KeyID, dateString(k.CreatedAt), expiresString(k.ExpiresAt))
	if k.Kind == keyblock.KindPrimaryPublic {
		line += fmt.Sprintf("  trust: %s/%s", k.OwnerTrust.Letter(), k.Validity.Letter())
	}
	if k.Selected {
		fmt.Fprintln(t.out, selectedStyle.Render(line+" *"))
		return
	}
	fmt.Fprintln(t.out, headerStyle.Render(line))
}

func keyLabel(kind keyblock.Kind) string {
	switch kind {
	case keyblock.KindPrimaryPublic:
		return "pub"
	case keyblock.KindPrimarySecret:
		return "sec"
	case keyblock.KindPublicSubkey:
		return "sub"
	case keyblock.KindSecretSubkey:
		return "ssb"
	default:
		return "???"
	}
}

func prefString(prefs []packet.Preference) string {
	if len(prefs) == 0 {
		return "no preferences recorded"
	}
	parts := make([]string, len(prefs))
	for i, p := range prefs {
		parts[i] = p.String()
	}
	return strings.Join(parts, " ")
}

func (t *Terminal) ShowAudit(r editor.AuditReport) {
	for _, row := range r.Rows {
		switch row.Kind {
		case editor.RowIdentity:
			fmt.Fprintln(t.out, headerStyle.Render("uid  "+row.Name))
		case editor.RowSignature:
			t.printSigRow(row)
		}
	}
	if r.Invalid > 0 {
		fmt.Fprintln(t.out, badStyle.Render(plural(r.Invalid, "bad signature")))
	}
	if r.NoSignerKey > 0 {
		fmt.Fprintln(t.out, warnStyle.Render(plural(r.NoSignerKey, "signature")+" not checked due to a missing key"))
	}
	if r.OtherErrors > 0 {
		fmt.Fprintln(t.out, warnStyle.Render(plural(r.OtherErrors, "signature")+" could not be checked due to an error"))
	}
	if r.MissingSelfSigs > 0 {
		fmt.Fprintln(t.out, warnStyle.Render(plural(r.MissingSelfSigs, "user ID")+" without a valid self-signature"))
	}
}

func (t *Terminal) printSigRow(row editor.AuditRow) {
	var mark string
	style := goodStyle
	switch row.Verdict {
	case editor.VerdictValid:
		mark = "sig!"
	case editor.VerdictBad:
		mark, style = "sig-", badStyle
	case editor.VerdictNoSignerKey:
		mark, style = "sig?", mutedStyle
	default:
		mark, style = "sig%", warnStyle
	}
	who := "[?]"
	switch {
	case row.SelfSig:
		who = "[self-signature]"
	case row.SignerName != "":
		who = row.SignerName
	}
	line := fmt.Sprintf("%s  %s  %s", mark, row.Sig.Signer, who)
	if row.Err != nil {
		line += fmt.Sprintf(" (%v)", row.Err)
	}
	fmt.Fprintln(t.out, style.Render(line))
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func (t *Terminal) ShowFingerprint(f editor.FingerprintInfo) {
	t.printKeyLine(f.Key)
	if f.Name != "" {
		fmt.Fprintln(t.out, "     "+f.Name)
	}
	fmt.Fprintln(t.out, " Fingerprint: "+groupedFingerprint(f.Fingerprint))
	if len(f.Words) > 0 {
		fmt.Fprintln(t.out, " Words:")
		for i := 0; i < len(f.Words); i += 5 {
			end := i + 5
			if end > len(f.Words) {
				end = len(f.Words)
			}
			fmt.Fprintln(t.out, mutedStyle.Render("   "+strings.Join(f.Words[i:end], " ")))
		}
	}
}

// groupedFingerprint formats the fingerprint as ten four-digit hex
// groups with a wider gap in the middle.
func groupedFingerprint(fp packet.Fingerprint) string {
	hex := fp.String()
	var b strings.Builder
	for i := 0; i < len(hex); i += 4 {
		if i > 0 {
			b.WriteByte(' ')
			if i == len(hex)/2 {
				b.WriteByte(' ')
			}
		}
		b.WriteString(hex[i : i+4])
	}
	return b.String()
}

func (t *Terminal) ShowHelp(cmds []editor.CommandHelp) {
	for _, c := range cmds {
		name := c.Name
		if c.Alias != "" {
			name += ", " + c.Alias
		}
		line := fmt.Sprintf("  %-12s %s", name, c.Desc)
		if c.NeedsSecret {
			line += mutedStyle.Render(" (needs the secret key)")
		}
		fmt.Fprintln(t.out, line)
	}
}

func (t *Terminal) Notice(n editor.Notice) {
	switch n.Code {
	case editor.NoticeSecretAvailable:
		fmt.Fprintln(t.out, goodStyle.Render("Secret key is available."))
	case editor.NoticeNeedSecret:
		fmt.Fprintln(t.out, warnStyle.Render("Need the secret key to do this."))
	case editor.NoticeUnknownCommand:
		fmt.Fprintln(t.out, warnStyle.Render(`Invalid command (try "help")`))
	case editor.NoticeInvalidIndex:
		what := n.Name
		if what == "" {
			what = "item"
		}
		fmt.Fprintln(t.out, warnStyle.Render(fmt.Sprintf("No %s with index %d", what, n.Index)))
	case editor.NoticeSelectUserID:
		fmt.Fprintln(t.out, warnStyle.Render("You must select at least one user ID."))
	case editor.NoticeSelectKey:
		fmt.Fprintln(t.out, warnStyle.Render("You must select at least one key."))
	case editor.NoticeLastUserID:
		fmt.Fprintln(t.out, badStyle.Render("You can't delete the last user ID!"))
	case editor.NoticePairMismatch:
		fmt.Fprintln(t.out, badStyle.Render(fmt.Sprintf("Public and secret keyblocks are out of step: %v", n.Err)))
	case editor.NoticeAlreadySigned:
		fmt.Fprintln(t.out, mutedStyle.Render(fmt.Sprintf("%q was already signed by key %s", n.Name, n.KeyID)))
	case editor.NoticeNothingToSign:
		fmt.Fprintln(t.out, mutedStyle.Render(fmt.Sprintf("Nothing to sign with key %s", n.KeyID)))
	case editor.NoticeNoSignerKeys:
		fmt.Fprintln(t.out, warnStyle.Render("No signing key available; configure a default signer or use --local-user."))
	case editor.NoticeHintSelectUserIDs:
		fmt.Fprintln(t.out, mutedStyle.Render("Hint: Select the user IDs to sign"))
	case editor.NoticeSigningFailed:
		fmt.Fprintln(t.out, badStyle.Render(fmt.Sprintf("Signing failed: %v", n.Err)))
	case editor.NoticeKeyProtected:
		fmt.Fprintln(t.out, "This key is protected.")
	case editor.NoticeKeyNotProtected:
		fmt.Fprintln(t.out, warnStyle.Render("This key is not protected."))
	case editor.NoticeCannotUnlock:
		fmt.Fprintln(t.out, badStyle.Render(fmt.Sprintf("Can't unlock the secret key: %v", n.Err)))
	case editor.NoticeProtectFailed:
		fmt.Fprintln(t.out, badStyle.Render(fmt.Sprintf("Protecting the key failed: %v", n.Err)))
	case editor.NoticePassphraseMismatch:
		fmt.Fprintln(t.out, warnStyle.Render("Passphrase not correctly repeated; try again."))
	case editor.NoticeInvalidTrustLevel:
		fmt.Fprintln(t.out, warnStyle.Render(fmt.Sprintf("Invalid answer %q; enter a number from 1 to 5.", n.Name)))
	case editor.NoticeSaveFailed:
		fmt.Fprintln(t.out, badStyle.Render(fmt.Sprintf("Update failed: %v", n.Err)))
	case editor.NoticeNoChanges:
		fmt.Fprintln(t.out, "Key not changed so no update needed.")
	case editor.NoticeCancelled:
		fmt.Fprintln(t.out, "Cancelled.")
	}
}
