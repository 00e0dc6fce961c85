package graph

import "github.com/josephleblanc/crategraph/internal/ids"

// TypeKind tags the structural shape of a type expression.
type TypeKind string

const (
	TypeNamed       TypeKind = "named"
	TypeReference   TypeKind = "reference"
	TypeRawPointer  TypeKind = "raw_pointer"
	TypeTuple       TypeKind = "tuple"
	TypeArray       TypeKind = "array"
	TypeSlice       TypeKind = "slice"
	TypeFunction    TypeKind = "function"
	TypeTraitObject TypeKind = "trait_object"
	TypeImplTrait   TypeKind = "impl_trait"
	TypeNever       TypeKind = "never"
	TypeUnit        TypeKind = "unit"
	TypeInferred    TypeKind = "inferred"
	TypeUnknown     TypeKind = "unknown"
)

// TypeNode is one entry in the type arena. Nested types are referenced by
// id, not owned, so self-referential types terminate naturally.
type TypeNode struct {
	ID   ids.TypeID
	Kind TypeKind
	// Path holds the segments of a named type ("std" "vec" "Vec").
	Path []string
	// Text is the normalized surface text of the expression.
	Text string
	// Related holds nested type ids (generic args, element types, params).
	Related []ids.TypeID
	// Mutable marks &mut / *mut shapes.
	Mutable bool
}

// TypeArena owns every TypeNode, addressed by id.
type TypeArena struct {
	nodes map[ids.TypeID]*TypeNode
	order []ids.TypeID
}

func NewTypeArena() *TypeArena {
	return &TypeArena{nodes: make(map[ids.TypeID]*TypeNode)}
}

// Insert adds a node if its id is not yet present and returns the arena's
// canonical instance for that id.
func (a *TypeArena) Insert(n *TypeNode) *TypeNode {
	if existing, ok := a.nodes[n.ID]; ok {
		return existing
	}
	a.nodes[n.ID] = n
	a.order = append(a.order, n.ID)
	return n
}

func (a *TypeArena) Get(id ids.TypeID) (*TypeNode, bool) {
	n, ok := a.nodes[id]
	return n, ok
}

func (a *TypeArena) Len() int { return len(a.nodes) }

// All returns type nodes in insertion order.
func (a *TypeArena) All() []*TypeNode {
	out := make([]*TypeNode, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.nodes[id])
	}
	return out
}

// Merge unions another arena into this one. Content-derived ids make this
// a pure set union; shared shapes collapse to one node.
func (a *TypeArena) Merge(other *TypeArena) {
	for _, id := range other.order {
		a.Insert(other.nodes[id])
	}
}
