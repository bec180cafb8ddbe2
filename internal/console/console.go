// Package console is the line-oriented terminal front end of the key
// editor. It implements the editor's Prompter and Presenter ports:
// reading commands, passphrases, and confirmations, and rendering
// listings, audit reports, and notices.
package console

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"sigil/keytool/internal/editor"
)

// Terminal reads from in and writes to out. Passphrases are read
// without echo when in is a terminal, and as plain lines otherwise,
// so scripted runs can pipe everything through stdin.
type Terminal struct {
	in        *bufio.Reader
	out       io.Writer
	inFD      int
	isTTY     bool
	assumeYes bool
}

func New(in io.Reader, out io.Writer, assumeYes bool) *Terminal {
	t := &Terminal{in: bufio.NewReader(in), out: out, inFD: -1, assumeYes: assumeYes}
	if f, ok := in.(*os.File); ok {
		fd := int(f.Fd())
		if term.IsTerminal(fd) {
			t.inFD = fd
			t.isTTY = true
		}
	}
	return t
}

func (t *Terminal) AssumeYes() bool { return t.assumeYes }

func (t *Terminal) ReadLine(code editor.PromptCode) (string, error) {
	fmt.Fprint(t.out, promptText(code))
	return t.readLine()
}

func (t *Terminal) readLine() (string, error) {
	line, err := t.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func promptText(code editor.PromptCode) string {
	switch code {
	case editor.PromptNewUserID:
		return promptStyle.Render("User ID: ")
	case editor.PromptTrustLevel:
		return trustMenu + promptStyle.Render("Your decision? ")
	default:
		return promptStyle.Render("sigil> ")
	}
}

const trustMenu = `Please decide how far you trust this user to correctly verify
other users' keys:

  1 = I don't know or won't say
  2 = I do NOT trust
  3 = I trust marginally
  4 = I trust fully
  5 = I trust ultimately

`

func (t *Terminal) ReadPassphrase(req editor.PassphraseRequest) ([]byte, error) {
	if req.Name != "" {
		fmt.Fprintln(t.out, mutedStyle.Render(fmt.Sprintf("Unlocking key %s (%s)", req.KeyID, req.Name)))
	}
	return t.readSecret("Passphrase: ")
}

func (t *Terminal) ReadNewPassphrase() ([]byte, bool, error) {
	pass, err := t.readSecret("Enter the new passphrase: ")
	if err != nil {
		return nil, false, err
	}
	if len(pass) == 0 {
		return pass, true, nil
	}
	again, err := t.readSecret("Repeat the new passphrase: ")
	if err != nil {
		return nil, false, err
	}
	if !bytes.Equal(pass, again) {
		return nil, false, nil
	}
	return pass, true, nil
}

func (t *Terminal) readSecret(prompt string) ([]byte, error) {
	fmt.Fprint(t.out, promptStyle.Render(prompt))
	if t.isTTY {
		pass, err := term.ReadPassword(t.inFD)
		fmt.Fprintln(t.out)
		return pass, err
	}
	line, err := t.readLine()
	if err != nil {
		return nil, err
	}
	return []byte(line), nil
}

// Confirm asks a yes/no question, defaulting to no. With preset
// answers it reports yes without asking, echoing the answer so the
// transcript stays readable.
func (t *Terminal) Confirm(c editor.Confirm) (bool, error) {
	question := confirmText(c)
	if t.assumeYes {
		fmt.Fprintf(t.out, "%s y\n", question)
		return true, nil
	}
	for {
		fmt.Fprint(t.out, question)
		line, err := t.readLine()
		if err != nil {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		case "n", "no", "":
			return false, nil
		}
		fmt.Fprintln(t.out, mutedStyle.Render("Please answer y or n."))
	}
}

func confirmText(c editor.Confirm) string {
	switch c.Code {
	case editor.ConfirmSaveChanges:
		return promptStyle.Render("Save changes? (y/N) ")
	case editor.ConfirmQuitDiscard:
		return promptStyle.Render("Quit without saving? (y/N) ")
	case editor.ConfirmDeleteUserIDs:
		if c.Count == 1 {
			return promptStyle.Render("Really remove this user ID? (y/N) ")
		}
		return promptStyle.Render(fmt.Sprintf("Really remove these %d user IDs? (y/N) ", c.Count))
	case editor.ConfirmDeleteSubkeys:
		if c.Count == 1 {
			return promptStyle.Render("Really delete this subkey? (y/N) ")
		}
		return promptStyle.Render(fmt.Sprintf("Really delete these %d subkeys? (y/N) ", c.Count))
	case editor.ConfirmSignAll:
		return promptStyle.Render("Really sign all user IDs? (y/N) ")
	case editor.ConfirmSign:
		var b strings.Builder
		for _, name := range c.Names {
			b.WriteString("  " + name + "\n")
		}
		b.WriteString(promptStyle.Render(fmt.Sprintf("Really sign with the key %q? (y/N) ", c.Signer)))
		return b.String()
	case editor.ConfirmEmptyPassphrase:
		return warnStyle.Render("You don't want a passphrase; the secret key will be stored in the clear.") +
			promptStyle.Render("\nContinue? (y/N) ")
	default:
		return promptStyle.Render("Continue? (y/N) ")
	}
}
