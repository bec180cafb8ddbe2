package editor

import "sigil/keytool/pkg/packet"

// NoticeCode names an event the presenter turns into words.
type NoticeCode uint8

const (
	NoticeSecretAvailable NoticeCode = iota + 1
	NoticeNeedSecret
	NoticeUnknownCommand
	NoticeInvalidIndex
	NoticeSelectUserID
	NoticeSelectKey
	NoticeLastUserID
	NoticePairMismatch
	NoticeAlreadySigned
	NoticeNothingToSign
	NoticeNoSignerKeys
	NoticeHintSelectUserIDs
	NoticeSigningFailed
	NoticeKeyProtected
	NoticeKeyNotProtected
	NoticeCannotUnlock
	NoticeProtectFailed
	NoticePassphraseMismatch
	NoticeInvalidTrustLevel
	NoticeSaveFailed
	NoticeNoChanges
	NoticeCancelled
)

// Notice is a structured event; unused fields stay zero.
type Notice struct {
	Code   NoticeCode
	Index  int
	Count  int
	Name   string
	Signer string
	KeyID  packet.KeyID
	Err    error
}

// ConfirmCode names a yes/no gate.
type ConfirmCode uint8

const (
	ConfirmSaveChanges ConfirmCode = iota + 1
	ConfirmQuitDiscard
	ConfirmDeleteUserIDs
	ConfirmDeleteSubkeys
	ConfirmSignAll
	ConfirmSign
	ConfirmEmptyPassphrase
)

// Confirm carries the context a gate is asked with.
type Confirm struct {
	Code   ConfirmCode
	Count  int
	Names  []string
	Signer string
}

// PromptCode names a free-form input request.
type PromptCode uint8

const (
	PromptCommand PromptCode = iota + 1
	PromptNewUserID
	PromptTrustLevel
)
