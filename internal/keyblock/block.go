package keyblock

import (
	"errors"
	"fmt"

	"sigil/keytool/pkg/packet"
)

type Kind uint8

const (
	KindPrimaryPublic Kind = iota + 1
	KindPrimarySecret
	KindPublicSubkey
	KindSecretSubkey
	KindUserID
	KindSignature
)

var (
	ErrNoPrimary = errors.New("keyblock does not start with a primary key")
	ErrBadNode   = errors.New("keyblock node payload does not match its kind")
)

// NodeID identifies a node within one block. IDs are assigned once and
// stay valid across deletes until Compact discards the tombstones.
// Zero is never assigned.
type NodeID uint64

type Node struct {
	ID        NodeID
	Kind      Kind
	Key       *packet.PublicKey
	Secret    *packet.SecretKey
	UserID    *packet.UserID
	Signature *packet.Signature
}

func PrimaryPublic(pk *packet.PublicKey) Node { return Node{Kind: KindPrimaryPublic, Key: pk} }
func PrimarySecret(sk *packet.SecretKey) Node { return Node{Kind: KindPrimarySecret, Secret: sk} }
func PublicSubkey(pk *packet.PublicKey) Node  { return Node{Kind: KindPublicSubkey, Key: pk} }
func SecretSubkey(sk *packet.SecretKey) Node  { return Node{Kind: KindSecretSubkey, Secret: sk} }
func UserID(u *packet.UserID) Node            { return Node{Kind: KindUserID, UserID: u} }
func Signature(s *packet.Signature) Node      { return Node{Kind: KindSignature, Signature: s} }

func (k Kind) String() string {
	switch k {
	case KindPrimaryPublic:
		return "public-key"
	case KindPrimarySecret:
		return "secret-key"
	case KindPublicSubkey:
		return "public-subkey"
	case KindSecretSubkey:
		return "secret-subkey"
	case KindUserID:
		return "user-id"
	case KindSignature:
		return "signature"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

func (n Node) IsPrimary() bool {
	return n.Kind == KindPrimaryPublic || n.Kind == KindPrimarySecret
}

func (n Node) IsSubkey() bool {
	return n.Kind == KindPublicSubkey || n.Kind == KindSecretSubkey
}

func (n Node) IsKey() bool {
	return n.IsPrimary() || n.IsSubkey()
}

// PublicHalf returns the public key material of any key node, reaching
// through the secret wrapper on the secret side. Nil for non-key nodes.
func (n Node) PublicHalf() *packet.PublicKey {
	switch n.Kind {
	case KindPrimaryPublic, KindPublicSubkey:
		return n.Key
	case KindPrimarySecret, KindSecretSubkey:
		if n.Secret == nil {
			return nil
		}
		return &n.Secret.PublicKey
	default:
		return nil
	}
}

func (n Node) validPayload() bool {
	switch n.Kind {
	case KindPrimaryPublic, KindPublicSubkey:
		return n.Key != nil
	case KindPrimarySecret, KindSecretSubkey:
		return n.Secret != nil
	case KindUserID:
		return n.UserID != nil
	case KindSignature:
		return n.Signature != nil
	default:
		return false
	}
}

// Block is one key record held as a flat arena in record order. Deletes
// leave tombstones so planned node IDs stay addressable until Compact.
type Block struct {
	nodes []Node
	dead  map[NodeID]bool
	next  NodeID
}

// New builds a block from nodes in record order. The first node must be
// a primary key.
func New(first Node, rest ...Node) (*Block, error) {
	if !first.IsPrimary() {
		return nil, ErrNoPrimary
	}
	b := &Block{dead: make(map[NodeID]bool)}
	for _, n := range append([]Node{first}, rest...) {
		if !n.validPayload() {
			return nil, fmt.Errorf("%w: %s", ErrBadNode, n.Kind)
		}
		b.place(len(b.nodes), n)
	}
	return b, nil
}

func (b *Block) place(at int, n Node) NodeID {
	b.next++
	n.ID = b.next
	b.nodes = append(b.nodes, Node{})
	copy(b.nodes[at+1:], b.nodes[at:])
	b.nodes[at] = n
	return n.ID
}

func (b *Block) index(id NodeID) int {
	for i := range b.nodes {
		if b.nodes[i].ID == id {
			return i
		}
	}
	return -1
}

// Len counts live nodes.
func (b *Block) Len() int {
	return len(b.nodes) - len(b.dead)
}

// Primary returns the leading primary key node.
func (b *Block) Primary() Node {
	return b.nodes[0]
}

// PrimaryKey returns the public half of the primary key.
func (b *Block) PrimaryKey() *packet.PublicKey {
	return b.nodes[0].PublicHalf()
}

func (b *Block) PrimaryKeyID() packet.KeyID {
	return b.PrimaryKey().KeyID()
}

// Node returns the live node with the given ID.
func (b *Block) Node(id NodeID) (Node, bool) {
	i := b.index(id)
	if i < 0 || b.dead[id] {
		return Node{}, false
	}
	return b.nodes[i], true
}

// Append adds a node at the end of the block and returns its ID.
func (b *Block) Append(n Node) NodeID {
	return b.place(len(b.nodes), n)
}

// InsertAfter places a node directly after the anchor. An unknown
// anchor appends.
func (b *Block) InsertAfter(anchor NodeID, n Node) NodeID {
	i := b.index(anchor)
	if i < 0 {
		return b.Append(n)
	}
	return b.place(i+1, n)
}

// InsertBefore places a node directly before the anchor. An unknown
// anchor appends.
func (b *Block) InsertBefore(anchor NodeID, n Node) NodeID {
	i := b.index(anchor)
	if i < 0 {
		return b.Append(n)
	}
	return b.place(i, n)
}

// Delete tombstones a node. The primary node cannot be deleted.
func (b *Block) Delete(id NodeID) {
	i := b.index(id)
	if i <= 0 {
		return
	}
	b.dead[id] = true
}

// Compact discards tombstoned nodes for good.
func (b *Block) Compact() {
	if len(b.dead) == 0 {
		return
	}
	live := b.nodes[:0]
	for _, n := range b.nodes {
		if !b.dead[n.ID] {
			live = append(live, n)
		}
	}
	b.nodes = live
	b.dead = make(map[NodeID]bool)
}

// Walk visits live nodes in record order until fn returns false.
func (b *Block) Walk(fn func(Node) bool) {
	for _, n := range b.nodes {
		if b.dead[n.ID] {
			continue
		}
		if !fn(n) {
			return
		}
	}
}

// Nodes returns a snapshot of the live nodes in record order.
func (b *Block) Nodes() []Node {
	out := make([]Node, 0, b.Len())
	b.Walk(func(n Node) bool {
		out = append(out, n)
		return true
	})
	return out
}

// Collect gathers the IDs of live nodes matching pred, in record order.
// Mutation planning runs on such a snapshot before any node is touched.
func (b *Block) Collect(pred func(Node) bool) []NodeID {
	var out []NodeID
	b.Walk(func(n Node) bool {
		if pred(n) {
			out = append(out, n.ID)
		}
		return true
	})
	return out
}

func (b *Block) CountUserIDs() int {
	return len(b.Collect(func(n Node) bool { return n.Kind == KindUserID }))
}

func (b *Block) CountSubkeys() int {
	return len(b.Collect(Node.IsSubkey))
}

// FirstSubkey returns the first live subkey node, if any.
func (b *Block) FirstSubkey() (NodeID, bool) {
	ids := b.Collect(Node.IsSubkey)
	if len(ids) == 0 {
		return 0, false
	}
	return ids[0], true
}

// SignatureRun returns the contiguous run of live signature nodes
// directly following the owner, stopping at the next identity, key, or
// the end of the block. Deleting an identity or subkey takes its run
// with it.
func (b *Block) SignatureRun(owner NodeID) []NodeID {
	i := b.index(owner)
	if i < 0 {
		return nil
	}
	var run []NodeID
	for j := i + 1; j < len(b.nodes); j++ {
		n := b.nodes[j]
		if b.dead[n.ID] {
			continue
		}
		if n.Kind != KindSignature {
			break
		}
		run = append(run, n.ID)
	}
	return run
}

// InIdentitySection reports whether the node sits before the first
// subkey, in the stretch of the record that holds user identities.
func (b *Block) InIdentitySection(id NodeID) bool {
	for _, n := range b.nodes {
		if b.dead[n.ID] {
			continue
		}
		if n.ID == id {
			return true
		}
		if n.IsSubkey() {
			return false
		}
	}
	return false
}
