// Package ids defines the deterministic, content-derived identifiers used
// throughout the code graph. Every identifier is an xxh3-128 digest over a
// domain-separated, length-prefixed byte sequence: equal inputs always
// produce equal ids, and no two id species can collide on the same input.
package ids

import (
	"encoding/hex"

	"github.com/zeebo/xxh3"
)

// Hash is a 128-bit xxh3 digest.
type Hash [16]byte

// Domain separation tags, one per id species.
const (
	tagProject  byte = 0x01
	tagCrate    byte = 0x02
	tagNode     byte = 0x03
	tagResolved byte = 0x04
	tagShape    byte = 0x05
	tagLogical  byte = 0x06
	tagTracking byte = 0x07
)

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

func (h Hash) IsZero() bool { return h == Hash{} }

// digest hashes tag plus length-prefixed parts. Length prefixes keep
// adjacent parts from running together ("ab","c" vs "a","bc").
func digest(tag byte, parts ...[]byte) Hash {
	n := 1
	for _, p := range parts {
		n += 4 + len(p)
	}
	buf := make([]byte, 0, n)
	buf = append(buf, tag)
	for _, p := range parts {
		l := len(p)
		buf = append(buf, byte(l>>24), byte(l>>16), byte(l>>8), byte(l))
		buf = append(buf, p...)
	}
	sum := xxh3.Hash128(buf)
	return Hash(sum.Bytes())
}

// ProjectNamespace derives the root namespace seed for a project.
func ProjectNamespace(name string) Hash {
	return digest(tagProject, []byte(name))
}

// CrateNamespace derives the per-crate namespace:
// hash(project namespace, crate name, crate version).
func CrateNamespace(project Hash, name, version string) Hash {
	return digest(tagCrate, project[:], []byte(name), []byte(version))
}

// IDKind distinguishes provisional ids from fully resolved ones.
type IDKind uint8

const (
	// KindSynthetic marks a provisional, context-derived id assigned
	// during parsing, or retained for targets outside the parsed set.
	KindSynthetic IDKind = iota + 1
	// KindResolved marks a stable, canonical-path-derived id confirmed
	// against the global module tree.
	KindResolved
)

func (k IDKind) String() string {
	switch k {
	case KindSynthetic:
		return "syn"
	case KindResolved:
		return "res"
	}
	return "invalid"
}

// NodeID identifies one declared item in the graph.
type NodeID struct {
	Kind IDKind
	Hash Hash
}

func (n NodeID) Valid() bool { return n.Kind != 0 && !n.Hash.IsZero() }

func (n NodeID) IsSynthetic() bool { return n.Kind == KindSynthetic }

func (n NodeID) String() string { return n.Kind.String() + ":" + n.Hash.String() }

// SyntheticInput carries every component that feeds a synthetic NodeID.
// The parent scope id is not optional: two items with the same name and
// kind in different enclosing definitions (e.g. a type parameter T in two
// impl blocks) must hash differently.
type SyntheticInput struct {
	Crate       Hash
	FilePath    string
	ModulePath  []string
	ParentScope NodeID
	ItemKind    uint8
	Name        string
	CfgHash     uint64
}

// NewSynthetic derives a provisional NodeID from the full parse context.
func NewSynthetic(in SyntheticInput) NodeID {
	parts := make([][]byte, 0, 6+len(in.ModulePath))
	parts = append(parts, in.Crate[:], []byte(in.FilePath))
	for _, seg := range in.ModulePath {
		parts = append(parts, []byte(seg))
	}
	scope := []byte{byte(in.ParentScope.Kind)}
	scope = append(scope, in.ParentScope.Hash[:]...)
	cfg := []byte{
		byte(in.CfgHash >> 56), byte(in.CfgHash >> 48),
		byte(in.CfgHash >> 40), byte(in.CfgHash >> 32),
		byte(in.CfgHash >> 24), byte(in.CfgHash >> 16),
		byte(in.CfgHash >> 8), byte(in.CfgHash),
	}
	parts = append(parts, scope, []byte{in.ItemKind}, []byte(in.Name), cfg)
	return NodeID{Kind: KindSynthetic, Hash: digest(tagNode, parts...)}
}

// NewResolved derives a stable NodeID from an item's canonical path.
func NewResolved(crate Hash, canonicalPath []string, itemKind uint8) NodeID {
	parts := make([][]byte, 0, 2+len(canonicalPath))
	parts = append(parts, crate[:])
	for _, seg := range canonicalPath {
		parts = append(parts, []byte(seg))
	}
	parts = append(parts, []byte{itemKind})
	return NodeID{Kind: KindResolved, Hash: digest(tagResolved, parts...)}
}

// TypeID identifies a structural type expression within one crate version.
type TypeID struct {
	Crate Hash
	Shape Hash
}

func (t TypeID) Valid() bool { return !t.Shape.IsZero() }

func (t TypeID) String() string { return t.Crate.String() + "/" + t.Shape.String() }

// TypeShape hashes the structural shape of a type expression: a kind tag,
// the normalized surface text, the shapes of nested types, and, for
// scope-relative names like Self or a generic parameter, the enclosing
// definition scope.
func TypeShape(kind string, text string, nested []TypeID, scope NodeID) Hash {
	parts := make([][]byte, 0, 3+len(nested))
	parts = append(parts, []byte(kind), []byte(text))
	for _, n := range nested {
		parts = append(parts, append(n.Crate[:], n.Shape[:]...))
	}
	if scope.Valid() {
		s := []byte{byte(scope.Kind)}
		parts = append(parts, append(s, scope.Hash[:]...))
	}
	return digest(tagShape, parts...)
}

// NewTypeID pairs a crate namespace with a shape hash.
func NewTypeID(crate Hash, shape Hash) TypeID {
	return TypeID{Crate: crate, Shape: shape}
}

// LogicalTypeID is a coarser, cross-version-stable identity for a type,
// keyed by project namespace, crate name, and in-crate type path. It lets
// downstream consumers track a type across edits even when its TypeID
// changes.
type LogicalTypeID Hash

func (l LogicalTypeID) String() string { return Hash(l).String() }

func (l LogicalTypeID) IsZero() bool { return Hash(l).IsZero() }

func NewLogicalTypeID(project Hash, crateName string, typePath []string) LogicalTypeID {
	parts := make([][]byte, 0, 2+len(typePath))
	parts = append(parts, project[:], []byte(crateName))
	for _, seg := range typePath {
		parts = append(parts, []byte(seg))
	}
	return LogicalTypeID(digest(tagLogical, parts...))
}

// TrackingHash fingerprints an item's token content for change detection.
// It is never an identity. Whitespace normalization makes it stable across
// reformatting, but comment edits inside the item still change it; an
// accepted limitation, upgradeable to a structural hash later.
type TrackingHash Hash

func (t TrackingHash) String() string { return Hash(t).String() }

func (t TrackingHash) IsZero() bool { return Hash(t).IsZero() }

func NewTrackingHash(crate Hash, filePath string, tokens []byte) TrackingHash {
	return TrackingHash(digest(tagTracking, crate[:], []byte(filePath), tokens))
}

// CfgFingerprint hashes a stack of active conditional-compilation
// predicates into one value. Order matters: nested cfg guards compose.
func CfgFingerprint(predicates []string) uint64 {
	if len(predicates) == 0 {
		return 0
	}
	var h uint64
	for _, p := range predicates {
		buf := make([]byte, 8, 8+len(p))
		buf[0] = byte(h >> 56)
		buf[1] = byte(h >> 48)
		buf[2] = byte(h >> 40)
		buf[3] = byte(h >> 32)
		buf[4] = byte(h >> 24)
		buf[5] = byte(h >> 16)
		buf[6] = byte(h >> 8)
		buf[7] = byte(h)
		buf = append(buf, p...)
		h = xxh3.Hash(buf)
	}
	return h
}
