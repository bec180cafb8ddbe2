package editor

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"sigil/keytool/internal/keyblock"
	"sigil/keytool/pkg/packet"
)

// Deps are the collaborators a session works through. Log may be nil.
type Deps struct {
	Store     Store
	Verifier  Verifier
	Signer    Signer
	Protector Protector
	Trust     TrustOps
	Prompter  Prompter
	Presenter Presenter
	Signers   []SignerKey
	Prefs     []packet.Preference
	Log       *slog.Logger
}

// Session drives one interactive edit of a key pair. Selection flags
// are kept per half and die with the session; only save writes
// anything back to the ring.
type Session struct {
	pair *Pair
	deps Deps
	log  *slog.Logger

	pubFlags  keyblock.FlagSet
	secFlags  keyblock.FlagSet
	view      View
	dirtyPub  bool
	dirtySec  bool
	redisplay bool
}

func NewSession(pair *Pair, deps Deps) *Session {
	log := deps.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Session{
		pair:     pair,
		deps:     deps,
		log:      log,
		pubFlags: keyblock.FlagSet{},
		secFlags: keyblock.FlagSet{},
	}
}

// CommandHelp is one row of the help listing.
type CommandHelp struct {
	Name        string
	Alias       string
	Desc        string
	NeedsSecret bool
}

type command struct {
	name        string
	alias       string
	needsSecret bool
	desc        string
	run         func(s *Session, arg string) (quit bool)
}

// Populated in init: the help handler walks this table, so a literal
// initializer would be an initialization cycle.
var commands []command

func init() {
	commands = []command{
		{name: "quit", alias: "q", desc: "quit this menu", run: (*Session).cmdQuit},
		{name: "save", desc: "save and quit", run: (*Session).cmdSave},
		{name: "help", alias: "?", desc: "show this help", run: (*Session).cmdHelp},
		{name: "fpr", desc: "show key fingerprint", run: (*Session).cmdFpr},
		{name: "list", alias: "l", desc: "list key and user IDs", run: (*Session).cmdList},
		{name: "uid", desc: "select user ID N, 0 to deselect all", run: (*Session).cmdSelUID},
		{name: "key", desc: "select subkey N, 0 to deselect all", run: (*Session).cmdSelKey},
		{name: "check", alias: "c", desc: "check the signatures on the user IDs", run: (*Session).cmdCheck},
		{name: "sign", alias: "s", desc: "sign the user IDs with a local key", run: (*Session).cmdSign},
		{name: "adduid", needsSecret: true, desc: "add a user ID", run: (*Session).cmdAddUID},
		{name: "deluid", desc: "delete the selected user IDs", run: (*Session).cmdDelUID},
		{name: "delkey", desc: "delete the selected subkeys", run: (*Session).cmdDelKey},
		{name: "pref", desc: "list the preferences of the user IDs", run: (*Session).cmdPref},
		{name: "passwd", needsSecret: true, desc: "change the passphrase", run: (*Session).cmdPasswd},
		{name: "toggle", alias: "t", needsSecret: true, desc: "toggle between the public and secret listings", run: (*Session).cmdToggle},
		{name: "trust", desc: "change the ownertrust", run: (*Session).cmdTrust},
	}
}

func lookupCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name || (c.alias != "" && c.alias == name) {
			return c, true
		}
	}
	return command{}, false
}

// Run reads and dispatches commands until quit or save. A bare number
// is shorthand for selecting that user ID. io.EOF on the command
// prompt quits, with the same save confirmations as an explicit quit.
func (s *Session) Run() error {
	if s.pair.HasSecret() {
		s.deps.Presenter.Notice(Notice{Code: NoticeSecretAvailable})
	}
	s.redisplay = true
	for {
		if s.redisplay {
			s.showKey(false)
			s.redisplay = false
		}
		line, err := s.deps.Prompter.ReadLine(PromptCommand)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return err
			}
			line = "quit"
		}
		name, arg := splitCommand(line)
		if name == "" {
			name = "list"
		}
		if isDigits(name) {
			name, arg = "uid", name
		}
		cmd, ok := lookupCommand(name)
		if !ok {
			s.deps.Presenter.Notice(Notice{Code: NoticeUnknownCommand, Name: name})
			continue
		}
		if cmd.needsSecret && !s.pair.HasSecret() {
			s.deps.Presenter.Notice(Notice{Code: NoticeNeedSecret, Name: cmd.name})
			continue
		}
		if cmd.run(s, arg) {
			return nil
		}
	}
}

func splitCommand(line string) (name, arg string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", ""
	}
	return strings.ToLower(fields[0]), strings.Join(fields[1:], " ")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func (s *Session) cmdQuit(_ string) bool {
	if !s.dirtyPub && !s.dirtySec {
		return true
	}
	yes, err := s.deps.Prompter.Confirm(Confirm{Code: ConfirmSaveChanges})
	if err != nil {
		return true
	}
	if yes {
		return s.saveChanges()
	}
	if s.deps.Prompter.AssumeYes() {
		return true
	}
	discard, err := s.deps.Prompter.Confirm(Confirm{Code: ConfirmQuitDiscard})
	if err != nil {
		return true
	}
	return discard
}

func (s *Session) cmdSave(_ string) bool {
	if !s.dirtyPub && !s.dirtySec {
		s.deps.Presenter.Notice(Notice{Code: NoticeNoChanges})
		return true
	}
	return s.saveChanges()
}

// saveChanges writes the dirty halves back to the ring. On failure the
// dirty flags stay set and the session continues, so the operator can
// retry or still quit without saving.
func (s *Session) saveChanges() bool {
	keyID := s.pair.Public.PrimaryKeyID().String()
	if s.dirtyPub {
		if err := s.deps.Store.CommitPublic(s.pair.PublicToken, s.pair.Public); err != nil {
			err = fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
			s.log.Error("public keyblock update failed", "key_id", keyID, "err", err)
			s.deps.Presenter.Notice(Notice{Code: NoticeSaveFailed, Err: err})
			return false
		}
	}
	if s.dirtySec {
		if err := s.deps.Store.CommitSecret(s.pair.SecretToken, s.pair.Secret); err != nil {
			err = fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
			s.log.Error("secret keyblock update failed", "key_id", keyID, "err", err)
			s.deps.Presenter.Notice(Notice{Code: NoticeSaveFailed, Err: err})
			return false
		}
	}
	s.log.Info("key saved", "key_id", keyID, "pubring", s.dirtyPub, "secring", s.dirtySec)
	s.dirtyPub, s.dirtySec = false, false
	return true
}

func (s *Session) cmdHelp(_ string) bool {
	rows := make([]CommandHelp, 0, len(commands))
	for _, c := range commands {
		rows = append(rows, CommandHelp{Name: c.name, Alias: c.alias, Desc: c.desc, NeedsSecret: c.needsSecret})
	}
	s.deps.Presenter.ShowHelp(rows)
	return false
}

func (s *Session) cmdList(_ string) bool {
	s.redisplay = true
	return false
}

func (s *Session) cmdFpr(_ string) bool {
	primary := s.pair.Public.Primary()
	pk := primary.PublicHalf()
	fp := pk.Fingerprint()
	words, err := fp.Words()
	if err != nil {
		s.log.Warn("fingerprint words unavailable", "err", err)
	}
	s.deps.Presenter.ShowFingerprint(FingerprintInfo{
		Key: KeyLine{
			Kind:      primary.Kind,
			Algorithm: pk.Algorithm,
			KeyID:     pk.KeyID(),
			CreatedAt: pk.CreatedAt,
			ExpiresAt: pk.ExpiresAt,
		},
		Name:        firstUserIDName(s.pair.Public),
		Fingerprint: fp,
		Words:       words,
	})
	return false
}

func (s *Session) cmdPref(_ string) bool {
	s.showKey(true)
	return false
}

// Selection arguments follow the numeric contract of the menu: a
// missing or unparsable argument acts as zero and clears the
// selection.
func (s *Session) cmdSelUID(arg string) bool {
	n, _ := strconv.Atoi(arg)
	if err := ToggleUserID(s.currentBlock(), s.currentFlags(), n); err != nil {
		s.deps.Presenter.Notice(Notice{Code: NoticeInvalidIndex, Index: n, Name: "user ID"})
		return false
	}
	s.redisplay = true
	return false
}

func (s *Session) cmdSelKey(arg string) bool {
	n, _ := strconv.Atoi(arg)
	if err := ToggleSubkey(s.currentBlock(), s.currentFlags(), n); err != nil {
		s.deps.Presenter.Notice(Notice{Code: NoticeInvalidIndex, Index: n, Name: "subkey"})
		return false
	}
	s.redisplay = true
	return false
}

func (s *Session) cmdToggle(_ string) bool {
	if s.view == ViewPublic {
		s.view = ViewSecret
	} else {
		s.view = ViewPublic
	}
	s.redisplay = true
	return false
}

func (s *Session) cmdCheck(_ string) bool {
	pub := s.pair.Public
	onlySelected := len(SelectedUserIDs(pub, s.pubFlags)) > 0
	rep := AuditSignatures(pub, s.pubFlags, onlySelected, s.deps.Verifier)
	s.log.Debug("signature audit",
		"key_id", pub.PrimaryKeyID().String(),
		"invalid", rep.Invalid,
		"no_signer_key", rep.NoSignerKey,
		"errors", rep.OtherErrors,
		"missing_selfsigs", rep.MissingSelfSigs)
	s.deps.Presenter.ShowAudit(*rep)
	return false
}

func (s *Session) cmdSign(_ string) bool {
	pub := s.pair.Public
	if len(s.deps.Signers) == 0 {
		s.deps.Presenter.Notice(Notice{Code: NoticeNoSignerKeys})
		return false
	}
	if len(SelectedUserIDs(pub, s.pubFlags)) == 0 && pub.CountUserIDs() > 1 {
		yes, err := s.deps.Prompter.Confirm(Confirm{Code: ConfirmSignAll})
		if err != nil {
			return false
		}
		if !yes {
			s.deps.Presenter.Notice(Notice{Code: NoticeHintSelectUserIDs})
			return false
		}
	}
	signed, err := SignUserIDs(s.pair, s.pubFlags, s.deps.Signers, s.deps.Signer, s.deps.Prompter, s.deps.Presenter)
	if signed > 0 {
		s.dirtyPub = true
		s.redisplay = true
		if cerr := s.deps.Trust.ClearCache(pub.PrimaryKey()); cerr != nil {
			s.log.Warn("trust cache clear failed", "key_id", pub.PrimaryKeyID().String(), "err", cerr)
		}
		s.log.Info("identities signed", "key_id", pub.PrimaryKeyID().String(), "count", signed)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		s.deps.Presenter.Notice(Notice{Code: NoticeSigningFailed, Err: err})
	}
	return false
}

func (s *Session) cmdAddUID(_ string) bool {
	line, err := s.deps.Prompter.ReadLine(PromptNewUserID)
	if err != nil {
		return false
	}
	name := strings.TrimSpace(line)
	if name == "" {
		s.deps.Presenter.Notice(Notice{Code: NoticeCancelled})
		return false
	}
	if err := AddIdentity(s.pair, name, s.deps.Signer, s.deps.Prefs); err != nil {
		s.deps.Presenter.Notice(Notice{Code: NoticeSigningFailed, Err: err})
		return false
	}
	s.dirtyPub, s.dirtySec = true, true
	s.redisplay = true
	return false
}

func (s *Session) cmdDelUID(_ string) bool {
	count := len(SelectedUserIDs(s.pair.Public, s.pubFlags))
	if count == 0 {
		s.deps.Presenter.Notice(Notice{Code: NoticeSelectUserID})
		return false
	}
	yes, err := s.deps.Prompter.Confirm(Confirm{Code: ConfirmDeleteUserIDs, Count: count})
	if err != nil || !yes {
		return false
	}
	n, err := DeleteUserIDs(s.pair, s.pubFlags)
	if err != nil {
		switch {
		case errors.Is(err, ErrLastUserID):
			s.deps.Presenter.Notice(Notice{Code: NoticeLastUserID})
		case errors.Is(err, ErrPairMismatch):
			s.deps.Presenter.Notice(Notice{Code: NoticePairMismatch, Err: err})
		default:
			s.deps.Presenter.Notice(Notice{Code: NoticeSelectUserID})
		}
		return false
	}
	s.dirtyPub = true
	s.dirtySec = s.pair.HasSecret()
	s.redisplay = true
	s.log.Info("identities deleted", "key_id", s.pair.Public.PrimaryKeyID().String(), "count", n)
	return false
}

func (s *Session) cmdDelKey(_ string) bool {
	count := len(SelectedSubkeys(s.pair.Public, s.pubFlags))
	if count == 0 {
		s.deps.Presenter.Notice(Notice{Code: NoticeSelectKey})
		return false
	}
	yes, err := s.deps.Prompter.Confirm(Confirm{Code: ConfirmDeleteSubkeys, Count: count})
	if err != nil || !yes {
		return false
	}
	n, err := DeleteSubkeys(s.pair, s.pubFlags)
	if err != nil {
		switch {
		case errors.Is(err, ErrPairMismatch):
			s.deps.Presenter.Notice(Notice{Code: NoticePairMismatch, Err: err})
		default:
			s.deps.Presenter.Notice(Notice{Code: NoticeSelectKey})
		}
		return false
	}
	s.dirtyPub = true
	s.dirtySec = s.pair.HasSecret()
	s.redisplay = true
	s.log.Info("subkeys deleted", "key_id", s.pair.Public.PrimaryKeyID().String(), "count", n)
	return false
}

func (s *Session) cmdPasswd(_ string) bool {
	changed, err := ChangePassphrase(s.pair.Secret, s.deps.Protector, s.deps.Prompter, s.deps.Presenter)
	if err != nil {
		switch {
		case errors.Is(err, io.EOF):
		case errors.Is(err, ErrCannotUnlock):
			s.deps.Presenter.Notice(Notice{Code: NoticeCannotUnlock, Err: err})
		default:
			s.deps.Presenter.Notice(Notice{Code: NoticeProtectFailed, Err: err})
		}
		return false
	}
	if changed {
		s.dirtySec = true
	}
	return false
}

func (s *Session) cmdTrust(_ string) bool {
	s.showKey(false)
	line, err := s.deps.Prompter.ReadLine(PromptTrustLevel)
	if err != nil {
		return false
	}
	answer := strings.TrimSpace(line)
	if answer == "" {
		s.deps.Presenter.Notice(Notice{Code: NoticeCancelled})
		return false
	}
	level, ok := parseTrustAnswer(answer)
	if !ok {
		s.deps.Presenter.Notice(Notice{Code: NoticeInvalidTrustLevel, Name: answer})
		return false
	}
	pk := s.pair.Public.PrimaryKey()
	if err := s.deps.Trust.SetOwnerTrust(pk, level); err != nil {
		s.log.Error("owner trust update failed", "key_id", pk.KeyID().String(), "err", err)
		s.deps.Presenter.Notice(Notice{Code: NoticeSaveFailed, Err: err})
		return false
	}
	if err := s.deps.Trust.ClearCache(pk); err != nil {
		s.log.Warn("trust cache clear failed", "key_id", pk.KeyID().String(), "err", err)
	}
	s.redisplay = true
	return false
}

// parseTrustAnswer accepts the menu digits: 1 undefined, 2 never,
// 3 marginal, 4 full, 5 ultimate.
func parseTrustAnswer(s string) (TrustLevel, bool) {
	switch s {
	case "1":
		return TrustUnknown, true
	case "2":
		return TrustNever, true
	case "3":
		return TrustMarginal, true
	case "4":
		return TrustFull, true
	case "5":
		return TrustUltimate, true
	}
	return TrustUnknown, false
}

func (s *Session) showKey(withPrefs bool) {
	s.deps.Presenter.ShowKey(buildSummary(s.currentBlock(), s.currentFlags(), s.view, s.deps.Trust, withPrefs))
}

func (s *Session) currentBlock() *keyblock.Block {
	if s.view == ViewSecret && s.pair.HasSecret() {
		return s.pair.Secret
	}
	return s.pair.Public
}

func (s *Session) currentFlags() keyblock.FlagSet {
	if s.view == ViewSecret && s.pair.HasSecret() {
		return s.secFlags
	}
	return s.pubFlags
}
