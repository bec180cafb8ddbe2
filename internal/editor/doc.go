// Package editor is the interactive key-record editing core: ordinal
// selection, the signature audit, structural mutations on a
// public/secret block pair, passphrase changes, and the command
// session that drives them.
//
// Responsibilities:
// - Keep the public and secret blocks of one key aligned through every
//   mutation, planning each change on the public side and translating
//   it to the secret side before anything is touched.
// - Track per-session selection and audit flags and the per-side dirty
//   state that decides what save persists.
// - Drive confirmation and prompting through the Prompter port and
//   hand all output to the Presenter port as structured data.
//
// Non-responsibilities:
// - Cryptography. Signing, verification, and secret-material
//   protection happen behind the Signer, Verifier, and Protector
//   ports (internal/certify, internal/seal).
// - Keyring files and lookup (internal/keyring) and trust persistence
//   (internal/trust).
// - Rendering text for people (internal/console).
package editor
