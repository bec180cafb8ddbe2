package keyring

import (
	"errors"
	"fmt"

	"sigil/keytool/internal/keyblock"
	"sigil/keytool/pkg/packet"
)

var errEmptyRecord = errors.New("keyring: empty record")

type nodeRecord struct {
	Kind      string            `json:"kind"`
	Key       *packet.PublicKey `json:"key,omitempty"`
	Secret    *packet.SecretKey `json:"secret,omitempty"`
	UserID    *packet.UserID    `json:"user_id,omitempty"`
	Signature *packet.Signature `json:"signature,omitempty"`
}

// encodeBlock snapshots the live nodes with copied payloads so later
// edits to the block cannot reach the stored record.
func encodeBlock(b *keyblock.Block) []nodeRecord {
	nodes := b.Nodes()
	out := make([]nodeRecord, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, nodeRecord{
			Kind:      n.Kind.String(),
			Key:       n.Key.Clone(),
			Secret:    n.Secret.Clone(),
			UserID:    n.UserID.Clone(),
			Signature: n.Signature.Clone(),
		})
	}
	return out
}

// decodeBlock builds a fresh block; payloads are copied so the caller
// can mutate freely before committing.
func decodeBlock(nodes []nodeRecord) (*keyblock.Block, error) {
	if len(nodes) == 0 {
		return nil, errEmptyRecord
	}
	built := make([]keyblock.Node, 0, len(nodes))
	for _, nr := range nodes {
		kind, err := parseKind(nr.Kind)
		if err != nil {
			return nil, err
		}
		built = append(built, keyblock.Node{
			Kind:      kind,
			Key:       nr.Key.Clone(),
			Secret:    nr.Secret.Clone(),
			UserID:    nr.UserID.Clone(),
			Signature: nr.Signature.Clone(),
		})
	}
	b, err := keyblock.New(built[0], built[1:]...)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func parseKind(s string) (keyblock.Kind, error) {
	switch s {
	case "public-key":
		return keyblock.KindPrimaryPublic, nil
	case "secret-key":
		return keyblock.KindPrimarySecret, nil
	case "public-subkey":
		return keyblock.KindPublicSubkey, nil
	case "secret-subkey":
		return keyblock.KindSecretSubkey, nil
	case "user-id":
		return keyblock.KindUserID, nil
	case "signature":
		return keyblock.KindSignature, nil
	default:
		return 0, fmt.Errorf("keyring: unknown node kind %q", s)
	}
}
