package graph

import "github.com/josephleblanc/crategraph/internal/ids"

// Span is a byte range within one source file.
type Span struct {
	Start uint32
	End   uint32
}

// VisKind is the declared visibility of an item.
type VisKind uint8

const (
	VisInherited VisKind = iota // private: current module and descendants
	VisPublic
	VisCrate
	VisSuper
	VisRestricted // pub(in path)
)

func (v VisKind) String() string {
	switch v {
	case VisPublic:
		return "pub"
	case VisCrate:
		return "pub(crate)"
	case VisSuper:
		return "pub(super)"
	case VisRestricted:
		return "pub(in)"
	}
	return "private"
}

// Visibility carries the visibility kind plus the restriction path for
// pub(in some::path).
type Visibility struct {
	Kind VisKind
	Path []string
}

// Attribute is one declared attribute, raw text preserved.
type Attribute struct {
	Name string // first path segment, e.g. "cfg", "path", "derive"
	Raw  string
}

// ModuleOrigin distinguishes how a module item came to exist.
type ModuleOrigin uint8

const (
	// ModuleFileBased is the synthetic root module created for a file.
	ModuleFileBased ModuleOrigin = iota + 1
	// ModuleInline is `mod m { ... }`.
	ModuleInline
	// ModuleDeclaration is a bare `mod m;` awaiting its definition.
	ModuleDeclaration
)

// Param is one function parameter.
type Param struct {
	Name    string
	Type    ids.TypeID
	IsSelf  bool
	Mutable bool
}

// Field is one named or positional aggregate field.
type Field struct {
	Name string // empty for tuple fields
	Type ids.TypeID
	Vis  Visibility
}

// GenericParam is a declared generic parameter (type, lifetime, or const).
type GenericParam struct {
	Name   string
	Kind   string // "type", "lifetime", "const"
	Bounds string // raw bound text, not resolved
}

// ModuleData is the payload for KindModule items.
type ModuleData struct {
	Path   []string // logical path segments, "crate" first
	Origin ModuleOrigin
	// PathAttr is the #[path = "..."] relocation value on a declaration.
	PathAttr string
}

// FunctionData is the payload for KindFunction items.
type FunctionData struct {
	Params   []Param
	Return   *ids.TypeID
	Generics []GenericParam
	// Bodyless marks trait method signatures without a default body.
	Bodyless bool
}

// AggregateData is the payload for struct/enum/union items.
type AggregateData struct {
	Fields   []Field
	Variants []string // enum variant names
	Generics []GenericParam
}

// TraitData is the payload for KindTrait items.
type TraitData struct {
	Generics []GenericParam
}

// ImplData is the payload for KindImpl items.
type ImplData struct {
	SelfType  ids.TypeID
	TraitType *ids.TypeID // nil for inherent impls
	Generics  []GenericParam
}

// TypeAliasData is the payload for KindTypeAlias items.
type TypeAliasData struct {
	Aliased ids.TypeID
}

// ValueData is the payload for const/static items.
type ValueData struct {
	Type    ids.TypeID
	Mutable bool // static mut
}

// ImportData is the payload for KindImport items.
type ImportData struct {
	// SourcePath is the raw path being imported, segment by segment.
	SourcePath []string
	// VisibleName is the local binding name ("" for globs).
	VisibleName string
	IsGlob      bool
	// IsReExport marks `pub use` (any non-private visibility).
	IsReExport bool
	// IsExternCrate marks `extern crate` declarations.
	IsExternCrate bool
}

// ItemNode is one declared item. Kind selects which payload pointer is
// non-nil; the resolver switches on Kind exhaustively.
type ItemNode struct {
	ID       ids.NodeID
	Kind     ItemKind
	Name     string
	Vis      Visibility
	Attrs    []Attribute
	Doc      string
	Span     Span
	FilePath string // crate-relative source file
	CrateNS  ids.Hash
	Tracking ids.TrackingHash
	CfgHash  uint64

	// CanonicalPath is filled by the resolver (step 6); nil until then.
	CanonicalPath []string
	// Logical is assigned during resolution for named type definitions
	// (structs, enums, unions, traits, aliases); zero otherwise.
	Logical ids.LogicalTypeID

	Module    *ModuleData
	Function  *FunctionData
	Aggregate *AggregateData
	Trait     *TraitData
	Impl      *ImplData
	TypeAlias *TypeAliasData
	Value     *ValueData
	Import    *ImportData
}

// IsNamedType reports whether this item introduces a nameable type.
func (n *ItemNode) IsNamedType() bool {
	switch n.Kind {
	case KindStruct, KindEnum, KindUnion, KindTrait, KindTypeAlias:
		return true
	}
	return false
}
