package graph

import "github.com/josephleblanc/crategraph/internal/ids"

// RelationKind is the closed set of edge kinds.
type RelationKind string

const (
	RelContains        RelationKind = "contains"
	RelDefinesModule   RelationKind = "defines_module"
	RelRelocatesModule RelationKind = "relocates_module"
	RelImports         RelationKind = "imports"
	RelReExports       RelationKind = "re_exports"
	RelUsesType        RelationKind = "uses_type"
	RelResolvesType    RelationKind = "resolves_type"
	RelFieldOf         RelationKind = "field_of"
	RelParameterOf     RelationKind = "parameter_of"
	RelReturnOf        RelationKind = "return_of"
	RelImplFor         RelationKind = "impl_for"
	RelImplTrait       RelationKind = "impl_trait"
	RelValueType       RelationKind = "value_type"
	RelMacroUse        RelationKind = "macro_use"
)

// RefKind distinguishes node endpoints from type endpoints.
type RefKind uint8

const (
	RefNode RefKind = iota + 1
	RefType
)

// Ref is one relation endpoint: an item node or a type.
type Ref struct {
	Kind RefKind
	Node ids.NodeID
	Type ids.TypeID
}

func NodeRef(id ids.NodeID) Ref { return Ref{Kind: RefNode, Node: id} }

func TypeRef(id ids.TypeID) Ref { return Ref{Kind: RefType, Type: id} }

func (r Ref) IsNode() bool { return r.Kind == RefNode }

// Relation links two graph entities. Endpoints are never dropped: an
// unresolvable target keeps its Synthetic id, and UnresolvedPath retains
// the raw path so downstream consumers can see what was meant.
type Relation struct {
	Source Ref
	Target Ref
	Kind   RelationKind
	// UnresolvedPath is the original path string for targets that stayed
	// Synthetic (external crates, unparsed dependencies). Empty when the
	// target resolved.
	UnresolvedPath string
}

// PendingKind tags the deferred-resolution records emitted during parsing.
type PendingKind uint8

const (
	PendingModuleDecl PendingKind = iota + 1
	PendingImport
	PendingReExport
	PendingTypeUsage
)

func (k PendingKind) String() string {
	switch k {
	case PendingModuleDecl:
		return "module_decl"
	case PendingImport:
		return "import"
	case PendingReExport:
		return "re_export"
	case PendingTypeUsage:
		return "type_usage"
	}
	return "unknown"
}

// PendingRelation is emitted whenever a reference cannot be resolved using
// only the current file's contents. It is processed deterministically by
// the sequential resolution pass instead of guessed at during parsing.
type PendingRelation struct {
	Kind PendingKind
	// Owner is the item that holds the unresolved reference.
	Owner ids.NodeID
	// OwnerType is set instead of Owner for type-to-type references.
	OwnerType ids.TypeID
	// Scope is the enclosing definition-scope id at emission time.
	Scope ids.NodeID
	// ModulePath is the logical path of the enclosing module.
	ModulePath []string
	// Path is the raw unresolved path, segment by segment.
	Path []string
	// PathAttr carries a #[path = "..."] relocation value for module
	// declarations; empty otherwise.
	PathAttr string
	// Glob marks `use foo::*`.
	Glob bool
	// VisibleName is the local binding name for imports.
	VisibleName string
	// Vis is the declared visibility (re-export propagation).
	Vis Visibility
	// CfgHash fingerprints the active cfg predicates at the declaration.
	CfgHash uint64
	Span    Span
	// FilePath is the crate-relative file the reference appeared in.
	FilePath string
}
