package editor

import (
	"sigil/keytool/internal/keyblock"
	"sigil/keytool/pkg/packet"
)

type RowKind uint8

const (
	RowIdentity RowKind = iota + 1
	RowSignature
)

// AuditRow is one line of a signature audit: either an identity
// heading or the result for one certifying signature under it.
type AuditRow struct {
	Kind       RowKind
	Name       string
	Sig        *packet.Signature
	Verdict    Verdict
	SelfSig    bool
	SignerName string
	Err        error
}

// AuditReport is the outcome of walking a keyblock's certifying
// signatures. The counters cover only the identities that took part
// in the walk.
type AuditReport struct {
	Rows            []AuditRow
	Invalid         int
	NoSignerKey     int
	OtherErrors     int
	MissingSelfSigs int
}

func (r *AuditReport) Clean() bool {
	return r.Invalid == 0 && r.NoSignerKey == 0 && r.OtherErrors == 0 && r.MissingSelfSigs == 0
}

// AuditSignatures verifies every certifying signature under the
// block's identities and refreshes the verdict flags as it goes. With
// onlySelected set, identities without a selection flag are skipped
// entirely. An identity with no valid self-certification counts
// toward MissingSelfSigs, including the last one in the block.
func AuditSignatures(b *keyblock.Block, flags keyblock.FlagSet, onlySelected bool, v Verifier) *AuditReport {
	rep := &AuditReport{}
	primary := b.PrimaryKey()

	var curUID *packet.UserID
	participating := false
	hasSelfSig := false
	closeIdentity := func() {
		if participating && !hasSelfSig {
			rep.MissingSelfSigs++
		}
	}

	b.Walk(func(n keyblock.Node) bool {
		switch {
		case n.Kind == keyblock.KindUserID:
			closeIdentity()
			curUID = n.UserID
			participating = !onlySelected || flags.Has(n.ID, keyblock.FlagSelectID)
			hasSelfSig = false
			if participating {
				rep.Rows = append(rep.Rows, AuditRow{Kind: RowIdentity, Name: curUID.Name})
			}
		case n.Kind == keyblock.KindSignature:
			if curUID == nil || !participating || !n.Signature.Certifying() {
				return true
			}
			res := v.Verify(primary, curUID, n.Signature)
			flags.Clear(n.ID, keyblock.AuditMask)
			row := AuditRow{
				Kind:    RowSignature,
				Sig:     n.Signature,
				Verdict: res.Verdict,
				SelfSig: res.SelfSig,
				Err:     res.Err,
			}
			switch res.Verdict {
			case VerdictValid:
				if res.SelfSig {
					hasSelfSig = true
				}
				if name, ok := v.SignerName(n.Signature.Signer); ok {
					row.SignerName = name
				}
			case VerdictBad:
				flags.Set(n.ID, keyblock.FlagBadSig)
				rep.Invalid++
			case VerdictNoSignerKey:
				flags.Set(n.ID, keyblock.FlagNoSignerKey)
				rep.NoSignerKey++
			case VerdictError:
				flags.Set(n.ID, keyblock.FlagSigError)
				rep.OtherErrors++
			}
			rep.Rows = append(rep.Rows, row)
		}
		return true
	})
	closeIdentity()
	return rep
}
