package merkle

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/anthanhphan/go-dhash-replication/pkg/ring"
)

var (
	ErrInvalidShape = errors.New("invalid merkle tree shape")
	ErrInvalidRange = errors.New("range outside merkle tree")
)

// Digest is a sha256 hash. The zero digest stands for an empty subtree.
type Digest [sha256.Size]byte

// IsZero reports whether d is the empty-subtree digest.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// ParseDigest decodes the hex form produced by String.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	b, err := hex.DecodeString(s)
	if err != nil {
		return d, err
	}
	if len(b) != len(d) {
		return d, fmt.Errorf("digest must be %d bytes, got %d", len(d), len(b))
	}
	copy(d[:], b)
	return d, nil
}

// HashBlock returns the digest stored in leaves for a block value.
func HashBlock(value []byte) Digest {
	return sha256.Sum256(value)
}

// Entry is one key and the digest of the block stored under it.
type Entry struct {
	ID     ring.ID `json:"id"`
	Digest Digest  `json:"digest"`
}

// Shape fixes the geometry of the tree. Every node splits its range into
// 2^Bits equal children and leaves sit at Depth. Two trees can only be
// compared when their shapes match.
type Shape struct {
	Bits  uint8 `json:"bits" yaml:"bits"`
	Depth uint8 `json:"depth" yaml:"depth"`
}

// DefaultShape gives 16-way nodes and 65536 leaves.
var DefaultShape = Shape{Bits: 4, Depth: 4}

// Validate checks that the shape fits in a 64-bit id.
func (s Shape) Validate() error {
	if s.Bits == 0 || s.Bits > 8 || s.Depth == 0 || int(s.Bits)*int(s.Depth) > 64 {
		return fmt.Errorf("%w: bits=%d depth=%d", ErrInvalidShape, s.Bits, s.Depth)
	}
	return nil
}

// Fanout is the number of children of an internal node.
func (s Shape) Fanout() int {
	return 1 << s.Bits
}

// Bounds returns the inclusive id interval covered by r.
func (s Shape) Bounds(r Range) (lo, hi ring.ID) {
	width := 64 - uint(r.Depth)*uint(s.Bits)
	lo = ring.ID(r.Prefix << width)
	hi = lo | ring.ID((uint64(1)<<width)-1)
	return lo, hi
}

// Child returns the i-th child range of r.
func (s Shape) Child(r Range, i int) Range {
	return Range{Depth: r.Depth + 1, Prefix: r.Prefix<<s.Bits | uint64(i)}
}

// Leaf returns the leaf range holding id.
func (s Shape) Leaf(id ring.ID) Range {
	return Range{Depth: s.Depth, Prefix: uint64(id) >> (64 - uint(s.Depth)*uint(s.Bits))}
}

func (s Shape) childIndex(id ring.ID, depth uint8) int {
	shift := 64 - (uint(depth)+1)*uint(s.Bits)
	return int((uint64(id) >> shift) & uint64(s.Fanout()-1))
}

func (s Shape) contains(r Range) bool {
	if r.Depth > s.Depth {
		return false
	}
	bits := uint(r.Depth) * uint(s.Bits)
	return bits == 64 || r.Prefix < uint64(1)<<bits
}

// Range names one node of the tree: the Prefix-th node at Depth.
type Range struct {
	Depth  uint8  `json:"depth"`
	Prefix uint64 `json:"prefix"`
}

// RootRange is the range of the root node.
var RootRange = Range{}

func (r Range) String() string {
	return fmt.Sprintf("%d/%x", r.Depth, r.Prefix)
}

// RangeDigest pairs a node range with its digest.
type RangeDigest struct {
	Range  Range  `json:"range"`
	Digest Digest `json:"digest"`
}

// node is immutable once published.
type node struct {
	digest   Digest
	count    int
	children []*node
	entries  []Entry
}

// Tree is an incrementally maintained hash tree over the ring.
//
// Updates copy the path from the root to the affected leaf and publish the
// new root atomically, so readers never observe a half-applied update and
// never block on writers.
type Tree struct {
	shape Shape
	mu    sync.Mutex
	root  atomic.Pointer[node]
}

// NewTree creates an empty tree.
func NewTree(shape Shape) (*Tree, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	return &Tree{shape: shape}, nil
}

// Shape returns the tree geometry.
func (t *Tree) Shape() Shape {
	return t.shape
}

// Update sets the digest stored for id. A zero digest removes the entry.
func (t *Tree) Update(id ring.ID, d Digest) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.root.Store(t.put(t.root.Load(), 0, id, d))
}

// Load replaces the whole tree with entries.
func (t *Tree) Load(entries []Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var root *node
	for _, e := range entries {
		root = t.put(root, 0, e.ID, e.Digest)
	}
	t.root.Store(root)
}

func (t *Tree) put(n *node, depth uint8, id ring.ID, d Digest) *node {
	if depth == t.shape.Depth {
		var entries []Entry
		if n != nil {
			entries = n.entries
		}
		entries = upsert(entries, id, d)
		if len(entries) == 0 {
			return nil
		}
		return &node{digest: leafDigest(entries), count: len(entries), entries: entries}
	}

	idx := t.shape.childIndex(id, depth)
	var children []*node
	if n != nil {
		children = slices.Clone(n.children)
	} else {
		children = make([]*node, t.shape.Fanout())
	}

	var child *node
	if n != nil {
		child = n.children[idx]
	}
	children[idx] = t.put(child, depth+1, id, d)

	count := 0
	for _, c := range children {
		if c != nil {
			count += c.count
		}
	}
	if count == 0 {
		return nil
	}
	return &node{digest: internalDigest(children), count: count, children: children}
}

// upsert returns a new sorted slice with id set to d, or removed when d is zero.
func upsert(entries []Entry, id ring.ID, d Digest) []Entry {
	i := sort.Search(len(entries), func(i int) bool { return entries[i].ID >= id })
	found := i < len(entries) && entries[i].ID == id

	switch {
	case d.IsZero() && !found:
		return entries
	case d.IsZero():
		out := make([]Entry, 0, len(entries)-1)
		out = append(out, entries[:i]...)
		return append(out, entries[i+1:]...)
	case found:
		out := slices.Clone(entries)
		out[i].Digest = d
		return out
	default:
		out := make([]Entry, 0, len(entries)+1)
		out = append(out, entries[:i]...)
		out = append(out, Entry{ID: id, Digest: d})
		return append(out, entries[i:]...)
	}
}

func leafDigest(entries []Entry) Digest {
	h := sha256.New()
	var buf [8]byte
	for _, e := range entries {
		binary.BigEndian.PutUint64(buf[:], uint64(e.ID))
		h.Write(buf[:])
		h.Write(e.Digest[:])
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

func internalDigest(children []*node) Digest {
	h := sha256.New()
	var zero Digest
	for _, c := range children {
		if c == nil {
			h.Write(zero[:])
			continue
		}
		h.Write(c.digest[:])
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// Snapshot returns a consistent read view of the current tree.
func (t *Tree) Snapshot() *Snapshot {
	return &Snapshot{shape: t.shape, root: t.root.Load()}
}

// Root returns the root digest.
func (t *Tree) Root() RangeDigest { return t.Snapshot().Root() }

// Len returns the number of entries in the tree.
func (t *Tree) Len() int { return t.Snapshot().Len() }

// Digest returns the digest of the node at r.
func (t *Tree) Digest(r Range) (Digest, error) { return t.Snapshot().Digest(r) }

// Cover returns the smallest node whose range covers the arc.
func (t *Tree) Cover(arc ring.Arc) RangeDigest { return t.Snapshot().Cover(arc) }

// Children expands one level under r.
func (t *Tree) Children(r Range) ([]RangeDigest, error) { return t.Snapshot().Children(r) }

// LeafEntries lists the entries under r.
func (t *Tree) LeafEntries(r Range) ([]Entry, error) { return t.Snapshot().LeafEntries(r) }

// Snapshot is an immutable view of a Tree at one instant.
type Snapshot struct {
	shape Shape
	root  *node
}

// Shape returns the tree geometry.
func (s *Snapshot) Shape() Shape {
	return s.shape
}

// Root returns the root digest.
func (s *Snapshot) Root() RangeDigest {
	var d Digest
	if s.root != nil {
		d = s.root.digest
	}
	return RangeDigest{Range: RootRange, Digest: d}
}

// Len returns the number of entries.
func (s *Snapshot) Len() int {
	if s.root == nil {
		return 0
	}
	return s.root.count
}

func (s *Snapshot) find(r Range) (*node, error) {
	if !s.shape.contains(r) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRange, r)
	}
	n := s.root
	for depth := uint8(0); depth < r.Depth && n != nil; depth++ {
		shift := uint(r.Depth-1-depth) * uint(s.shape.Bits)
		idx := int((r.Prefix >> shift) & uint64(s.shape.Fanout()-1))
		n = n.children[idx]
	}
	return n, nil
}

// Digest returns the digest of the node at r.
func (s *Snapshot) Digest(r Range) (Digest, error) {
	n, err := s.find(r)
	if err != nil || n == nil {
		return Digest{}, err
	}
	return n.digest, nil
}

// Cover returns the smallest node whose range covers every id of the arc.
// When the arc straddles a node boundary the common ancestor is returned and
// the caller descends from there.
func (s *Snapshot) Cover(arc ring.Arc) RangeDigest {
	r := RootRange
	for r.Depth < s.shape.Depth {
		next, hits := Range{}, 0
		for i := 0; i < s.shape.Fanout(); i++ {
			c := s.shape.Child(r, i)
			lo, hi := s.shape.Bounds(c)
			if arc.Spans(lo, hi) {
				next = c
				hits++
			}
		}
		if hits != 1 {
			break
		}
		r = next
	}
	d, _ := s.Digest(r)
	return RangeDigest{Range: r, Digest: d}
}

// Children returns the digests of every child of r, empty ones included, so
// both sides of a comparison line up index by index. A leaf has no children.
func (s *Snapshot) Children(r Range) ([]RangeDigest, error) {
	n, err := s.find(r)
	if err != nil {
		return nil, err
	}
	if r.Depth == s.shape.Depth {
		return nil, nil
	}

	out := make([]RangeDigest, s.shape.Fanout())
	for i := range out {
		out[i].Range = s.shape.Child(r, i)
		if n != nil && n.children[i] != nil {
			out[i].Digest = n.children[i].digest
		}
	}
	return out, nil
}

// LeafEntries returns every entry stored under r in ring order.
func (s *Snapshot) LeafEntries(r Range) ([]Entry, error) {
	n, err := s.find(r)
	if err != nil || n == nil {
		return nil, err
	}
	out := make([]Entry, 0, n.count)
	return collect(n, out), nil
}

func collect(n *node, out []Entry) []Entry {
	if n == nil {
		return out
	}
	if n.children == nil {
		return append(out, n.entries...)
	}
	for _, c := range n.children {
		out = collect(c, out)
	}
	return out
}
