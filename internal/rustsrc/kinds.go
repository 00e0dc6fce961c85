package rustsrc

// Grammar node kinds the visitor dispatches on. These mirror the
// tree-sitter-rust grammar; the set of declared-item kinds is closed.
const (
	KindSourceFile        = "source_file"
	KindModItem           = "mod_item"
	KindFunctionItem      = "function_item"
	KindFunctionSignature = "function_signature_item"
	KindStructItem        = "struct_item"
	KindEnumItem          = "enum_item"
	KindUnionItem         = "union_item"
	KindTraitItem         = "trait_item"
	KindImplItem          = "impl_item"
	KindTypeItem          = "type_item"
	KindConstItem         = "const_item"
	KindStaticItem        = "static_item"
	KindMacroDefinition   = "macro_definition"
	KindMacroInvocation   = "macro_invocation"
	KindUseDeclaration    = "use_declaration"
	KindExternCrate       = "extern_crate_declaration"

	KindAttributeItem      = "attribute_item"
	KindInnerAttributeItem = "inner_attribute_item"
	KindLineComment        = "line_comment"
	KindBlockComment       = "block_comment"
	KindVisibilityModifier = "visibility_modifier"
	KindDeclarationList    = "declaration_list"
	KindFieldDeclList      = "field_declaration_list"
	KindFieldDeclaration   = "field_declaration"
	KindOrderedFieldList   = "ordered_field_declaration_list"
	KindEnumVariantList    = "enum_variant_list"
	KindEnumVariant        = "enum_variant"
	KindParameters         = "parameters"
	KindParameter          = "parameter"
	KindSelfParameter      = "self_parameter"
	KindTypeParameters     = "type_parameters"
	KindTypeParameter      = "type_parameter"
	KindConstParameter     = "const_parameter"
	KindLifetimeParameter  = "lifetime_parameter"

	KindUseAsClause      = "use_as_clause"
	KindUseList          = "use_list"
	KindUseWildcard      = "use_wildcard"
	KindScopedUseList    = "scoped_use_list"
	KindScopedIdentifier = "scoped_identifier"
	KindIdentifier       = "identifier"
	KindCrateSegment     = "crate"
	KindSelfSegment      = "self"
	KindSuperSegment     = "super"

	KindTypeIdentifier       = "type_identifier"
	KindScopedTypeIdentifier = "scoped_type_identifier"
	KindGenericType          = "generic_type"
	KindReferenceType        = "reference_type"
	KindPointerType          = "pointer_type"
	KindTupleType            = "tuple_type"
	KindArrayType            = "array_type"
	KindSliceType            = "slice_type" // appears inside array/reference forms
	KindFunctionType         = "function_type"
	KindUnitType             = "unit_type"
	KindPrimitiveType        = "primitive_type"
	KindDynamicType          = "dynamic_type"
	KindAbstractType         = "abstract_type"
	KindNeverType            = "never_type"
	KindInferredType         = "_" // `_` placeholder
	KindMutableSpecifier     = "mutable_specifier"
)

// itemKinds are the grammar kinds that declare a graph item.
var itemKinds = map[string]bool{
	KindModItem:           true,
	KindFunctionItem:      true,
	KindFunctionSignature: true,
	KindStructItem:        true,
	KindEnumItem:          true,
	KindUnionItem:         true,
	KindTraitItem:         true,
	KindImplItem:          true,
	KindTypeItem:          true,
	KindConstItem:         true,
	KindStaticItem:        true,
	KindMacroDefinition:   true,
	KindUseDeclaration:    true,
	KindExternCrate:       true,
}

// IsItemKind reports whether a grammar node kind declares a graph item.
func IsItemKind(kind string) bool { return itemKinds[kind] }
