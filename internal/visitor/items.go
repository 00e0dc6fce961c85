package visitor

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/josephleblanc/crategraph/internal/graph"
	"github.com/josephleblanc/crategraph/internal/ids"
	"github.com/josephleblanc/crategraph/internal/rustsrc"
)

// visitItems walks the direct children of a file or declaration list,
// accumulating preceding attributes and doc comments, and dispatches each
// declared item. parent is the containing item (module, impl, trait, or
// function) that sources the Contains relation.
func (v *fileVisitor) visitItems(container *tree_sitter.Node, parent ids.NodeID) {
	var ctx itemContext
	for i := uint(0); i < container.NamedChildCount(); i++ {
		n := container.NamedChild(i)
		if n == nil {
			continue
		}
		if ctx.collect(n, v.source) {
			continue
		}
		if rustsrc.IsItemKind(n.Kind()) {
			v.visitItem(n, &ctx, parent)
		} else if n.Kind() == rustsrc.KindMacroInvocation {
			v.recordMacroUse(n, parent)
		}
		ctx.reset()
	}
}

func (v *fileVisitor) visitItem(n *tree_sitter.Node, ctx *itemContext, parent ids.NodeID) {
	switch n.Kind() {
	case rustsrc.KindModItem:
		v.visitModule(n, ctx, parent)
	case rustsrc.KindFunctionItem, rustsrc.KindFunctionSignature:
		v.visitFunction(n, ctx, parent)
	case rustsrc.KindStructItem:
		v.visitAggregate(n, ctx, parent, graph.KindStruct)
	case rustsrc.KindUnionItem:
		v.visitAggregate(n, ctx, parent, graph.KindUnion)
	case rustsrc.KindEnumItem:
		v.visitEnum(n, ctx, parent)
	case rustsrc.KindTraitItem:
		v.visitTrait(n, ctx, parent)
	case rustsrc.KindImplItem:
		v.visitImpl(n, ctx, parent)
	case rustsrc.KindTypeItem:
		v.visitTypeAlias(n, ctx, parent)
	case rustsrc.KindConstItem:
		v.visitValue(n, ctx, parent, graph.KindConst)
	case rustsrc.KindStaticItem:
		v.visitValue(n, ctx, parent, graph.KindStatic)
	case rustsrc.KindMacroDefinition:
		v.visitMacroDef(n, ctx, parent)
	case rustsrc.KindUseDeclaration:
		v.visitUse(n, ctx, parent)
	case rustsrc.KindExternCrate:
		v.visitExternCrate(n, ctx, parent)
	}
}

// newItem runs the shared prologue: id derivation, node creation, and the
// Contains relation from the parent container.
func (v *fileVisitor) newItem(n *tree_sitter.Node, ctx *itemContext, parent ids.NodeID, kind graph.ItemKind, name string) *graph.ItemNode {
	cfg := v.cfgFingerprintWith(ctx.attrs)
	id := v.newID(kind, name, cfg)
	item := &graph.ItemNode{
		ID:       id,
		Kind:     kind,
		Name:     name,
		Vis:      v.visibilityOf(n),
		Attrs:    ctx.attrs,
		Doc:      ctx.docText(),
		Span:     span(n),
		FilePath: v.job.RelPath,
		CrateNS:  v.job.CrateNS,
		CfgHash:  cfg,
	}
	if kind != graph.KindImport {
		item.Tracking = v.trackingHash(n)
	}
	v.addNode(item)
	v.addRelation(graph.Relation{
		Source: graph.NodeRef(parent),
		Target: graph.NodeRef(id),
		Kind:   graph.RelContains,
	})
	return item
}

func (v *fileVisitor) visitModule(n *tree_sitter.Node, ctx *itemContext, parent ids.NodeID) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := rustsrc.NodeText(nameNode, v.source)
	body := n.ChildByFieldName("body")

	item := v.newItem(n, ctx, parent, graph.KindModule, name)
	logical := append(append([]string(nil), v.modPath...), name)

	if body == nil {
		// Bare declaration: definition lives in another file; defer.
		item.Module = &graph.ModuleData{
			Path:     logical,
			Origin:   graph.ModuleDeclaration,
			PathAttr: pathAttr(ctx.attrs),
		}
		v.addPending(graph.PendingRelation{
			Kind:       graph.PendingModuleDecl,
			Owner:      item.ID,
			Scope:      v.currentScope(),
			ModulePath: append([]string(nil), v.modPath...),
			Path:       []string{name},
			PathAttr:   item.Module.PathAttr,
			Vis:        item.Vis,
			CfgHash:    item.CfgHash,
			Span:       item.Span,
		})
		return
	}

	item.Module = &graph.ModuleData{Path: logical, Origin: graph.ModuleInline}
	if doc := v.innerDoc(body); doc != "" && item.Doc == "" {
		item.Doc = doc
	}

	preds := itemCfgPredicates(ctx.attrs)
	v.cfg = append(v.cfg, preds...)
	saved := v.modPath
	v.modPath = logical
	v.pushScope(item.ID, nil)
	v.visitItems(body, item.ID)
	v.popScope()
	v.modPath = saved
	v.cfg = v.cfg[:len(v.cfg)-len(preds)]
}

func (v *fileVisitor) visitFunction(n *tree_sitter.Node, ctx *itemContext, parent ids.NodeID) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := rustsrc.NodeText(nameNode, v.source)
	generics := v.genericsOf(n)

	item := v.newItem(n, ctx, parent, graph.KindFunction, name)
	fn := &graph.FunctionData{Generics: generics}
	item.Function = fn

	v.pushScope(item.ID, generics)
	defer v.popScope()

	if params := n.ChildByFieldName("parameters"); params != nil {
		for _, p := range rustsrc.NamedChildren(params) {
			switch p.Kind() {
			case rustsrc.KindParameter:
				typeNode := p.ChildByFieldName("type")
				if typeNode == nil {
					continue
				}
				tid := v.internType(typeNode)
				pname := ""
				if pat := p.ChildByFieldName("pattern"); pat != nil {
					pname = strings.TrimPrefix(rustsrc.NodeText(pat, v.source), "mut ")
				}
				fn.Params = append(fn.Params, graph.Param{Name: pname, Type: tid})
				v.addRelation(graph.Relation{
					Source: graph.TypeRef(tid),
					Target: graph.NodeRef(item.ID),
					Kind:   graph.RelParameterOf,
				})
			case rustsrc.KindSelfParameter:
				tid := v.internSelfType()
				mutable := strings.Contains(rustsrc.NodeText(p, v.source), "mut ")
				fn.Params = append(fn.Params, graph.Param{Name: "self", Type: tid, IsSelf: true, Mutable: mutable})
				v.addRelation(graph.Relation{
					Source: graph.TypeRef(tid),
					Target: graph.NodeRef(item.ID),
					Kind:   graph.RelParameterOf,
				})
			}
		}
	}

	if ret := n.ChildByFieldName("return_type"); ret != nil {
		tid := v.internType(ret)
		fn.Return = &tid
		v.addRelation(graph.Relation{
			Source: graph.TypeRef(tid),
			Target: graph.NodeRef(item.ID),
			Kind:   graph.RelReturnOf,
		})
	}

	body := n.ChildByFieldName("body")
	if body == nil {
		fn.Bodyless = true
		return
	}
	v.visitBody(body, item.ID)
}

// visitBody scans a function body's direct statements for nested item
// declarations and macro invocations. Deeper expression nesting is out of
// scope: the graph records declarations and macro call sites, not
// control flow.
func (v *fileVisitor) visitBody(body *tree_sitter.Node, owner ids.NodeID) {
	var ctx itemContext
	for i := uint(0); i < body.NamedChildCount(); i++ {
		n := body.NamedChild(i)
		if n == nil {
			continue
		}
		if ctx.collect(n, v.source) {
			continue
		}
		switch {
		case rustsrc.IsItemKind(n.Kind()):
			v.visitItem(n, &ctx, owner)
		case n.Kind() == rustsrc.KindMacroInvocation:
			v.recordMacroUse(n, owner)
		case n.Kind() == "expression_statement":
			if inner := n.NamedChild(0); inner != nil && inner.Kind() == rustsrc.KindMacroInvocation {
				v.recordMacroUse(inner, owner)
			}
		}
		ctx.reset()
	}
}

// recordMacroUse links an item to a macro invocation target. The target
// id is synthetic and name-derived; it stays synthetic unless a parsed
// macro definition claims the name during resolution.
func (v *fileVisitor) recordMacroUse(n *tree_sitter.Node, owner ids.NodeID) {
	macroNode := n.ChildByFieldName("macro")
	if macroNode == nil {
		return
	}
	path := rustsrc.NodeText(macroNode, v.source)
	target := ids.NewSynthetic(ids.SyntheticInput{
		Crate:    v.job.CrateNS,
		ItemKind: graph.KindMacro.Code(),
		Name:     path,
	})
	v.addRelation(graph.Relation{
		Source:         graph.NodeRef(owner),
		Target:         graph.NodeRef(target),
		Kind:           graph.RelMacroUse,
		UnresolvedPath: path,
	})
}

func (v *fileVisitor) visitAggregate(n *tree_sitter.Node, ctx *itemContext, parent ids.NodeID, kind graph.ItemKind) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := rustsrc.NodeText(nameNode, v.source)
	generics := v.genericsOf(n)

	item := v.newItem(n, ctx, parent, kind, name)
	agg := &graph.AggregateData{Generics: generics}
	item.Aggregate = agg

	v.pushScope(item.ID, generics)
	defer v.popScope()

	body := n.ChildByFieldName("body")
	if body == nil {
		return
	}
	switch body.Kind() {
	case rustsrc.KindFieldDeclList:
		var fieldCtx itemContext
		for _, f := range rustsrc.NamedChildren(body) {
			if fieldCtx.collect(f, v.source) {
				continue
			}
			if f.Kind() != rustsrc.KindFieldDeclaration {
				fieldCtx.reset()
				continue
			}
			fname := ""
			if fn := f.ChildByFieldName("name"); fn != nil {
				fname = rustsrc.NodeText(fn, v.source)
			}
			if tn := f.ChildByFieldName("type"); tn != nil {
				tid := v.internType(tn)
				agg.Fields = append(agg.Fields, graph.Field{Name: fname, Type: tid, Vis: v.visibilityOf(f)})
				v.addRelation(graph.Relation{
					Source: graph.TypeRef(tid),
					Target: graph.NodeRef(item.ID),
					Kind:   graph.RelFieldOf,
				})
			}
			fieldCtx.reset()
		}
	case rustsrc.KindOrderedFieldList:
		for _, f := range rustsrc.NamedChildren(body) {
			if f.Kind() == rustsrc.KindVisibilityModifier || f.Kind() == rustsrc.KindAttributeItem {
				continue
			}
			tid := v.internType(f)
			agg.Fields = append(agg.Fields, graph.Field{Type: tid})
			v.addRelation(graph.Relation{
				Source: graph.TypeRef(tid),
				Target: graph.NodeRef(item.ID),
				Kind:   graph.RelFieldOf,
			})
		}
	}
}

func (v *fileVisitor) visitEnum(n *tree_sitter.Node, ctx *itemContext, parent ids.NodeID) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := rustsrc.NodeText(nameNode, v.source)
	generics := v.genericsOf(n)

	item := v.newItem(n, ctx, parent, graph.KindEnum, name)
	agg := &graph.AggregateData{Generics: generics}
	item.Aggregate = agg

	v.pushScope(item.ID, generics)
	defer v.popScope()

	body := n.ChildByFieldName("body")
	if body == nil {
		return
	}
	for _, variant := range rustsrc.NamedChildren(body) {
		if variant.Kind() != rustsrc.KindEnumVariant {
			continue
		}
		if vn := variant.ChildByFieldName("name"); vn != nil {
			agg.Variants = append(agg.Variants, rustsrc.NodeText(vn, v.source))
		}
		vbody := variant.ChildByFieldName("body")
		if vbody == nil {
			continue
		}
		// Variant payload types feed UsesType, not FieldOf: the variant
		// is not an addressable item of its own here.
		switch vbody.Kind() {
		case rustsrc.KindFieldDeclList:
			for _, f := range rustsrc.NamedChildren(vbody) {
				if f.Kind() != rustsrc.KindFieldDeclaration {
					continue
				}
				if tn := f.ChildByFieldName("type"); tn != nil {
					tid := v.internType(tn)
					v.addRelation(graph.Relation{
						Source: graph.NodeRef(item.ID),
						Target: graph.TypeRef(tid),
						Kind:   graph.RelUsesType,
					})
				}
			}
		case rustsrc.KindOrderedFieldList:
			for _, f := range rustsrc.NamedChildren(vbody) {
				if f.Kind() == rustsrc.KindVisibilityModifier || f.Kind() == rustsrc.KindAttributeItem {
					continue
				}
				tid := v.internType(f)
				v.addRelation(graph.Relation{
					Source: graph.NodeRef(item.ID),
					Target: graph.TypeRef(tid),
					Kind:   graph.RelUsesType,
				})
			}
		}
	}
}

func (v *fileVisitor) visitTrait(n *tree_sitter.Node, ctx *itemContext, parent ids.NodeID) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := rustsrc.NodeText(nameNode, v.source)
	generics := v.genericsOf(n)

	item := v.newItem(n, ctx, parent, graph.KindTrait, name)
	item.Trait = &graph.TraitData{Generics: generics}

	v.pushScope(item.ID, generics)
	defer v.popScope()

	if body := n.ChildByFieldName("body"); body != nil {
		v.visitItems(body, item.ID)
	}
}

func (v *fileVisitor) visitImpl(n *tree_sitter.Node, ctx *itemContext, parent ids.NodeID) {
	typeNode := n.ChildByFieldName("type")
	if typeNode == nil {
		return
	}
	selfText := normalizeTypeText(rustsrc.NodeText(typeNode, v.source))
	traitNode := n.ChildByFieldName("trait")

	name := "impl " + selfText
	if traitNode != nil {
		name = "impl " + normalizeTypeText(rustsrc.NodeText(traitNode, v.source)) + " for " + selfText
	}
	generics := v.genericsOf(n)

	item := v.newItem(n, ctx, parent, graph.KindImpl, name)
	impl := &graph.ImplData{Generics: generics}
	item.Impl = impl

	// The impl scope must enclose its own self-type interning: a generic
	// parameter or Self reference inside `impl<T> Wrap<T>` belongs to
	// this impl, not its siblings.
	v.pushScope(item.ID, generics)
	defer v.popScope()

	impl.SelfType = v.internType(typeNode)
	v.addRelation(graph.Relation{
		Source: graph.NodeRef(item.ID),
		Target: graph.TypeRef(impl.SelfType),
		Kind:   graph.RelImplFor,
	})
	if traitNode != nil {
		tid := v.internType(traitNode)
		impl.TraitType = &tid
		v.addRelation(graph.Relation{
			Source: graph.NodeRef(item.ID),
			Target: graph.TypeRef(tid),
			Kind:   graph.RelImplTrait,
		})
	}

	if body := n.ChildByFieldName("body"); body != nil {
		v.visitItems(body, item.ID)
	}
}

func (v *fileVisitor) visitTypeAlias(n *tree_sitter.Node, ctx *itemContext, parent ids.NodeID) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := rustsrc.NodeText(nameNode, v.source)
	generics := v.genericsOf(n)

	item := v.newItem(n, ctx, parent, graph.KindTypeAlias, name)
	v.pushScope(item.ID, generics)
	defer v.popScope()

	if tn := n.ChildByFieldName("type"); tn != nil {
		tid := v.internType(tn)
		item.TypeAlias = &graph.TypeAliasData{Aliased: tid}
		v.addRelation(graph.Relation{
			Source: graph.NodeRef(item.ID),
			Target: graph.TypeRef(tid),
			Kind:   graph.RelUsesType,
		})
	}
}

func (v *fileVisitor) visitValue(n *tree_sitter.Node, ctx *itemContext, parent ids.NodeID, kind graph.ItemKind) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := rustsrc.NodeText(nameNode, v.source)
	item := v.newItem(n, ctx, parent, kind, name)

	value := &graph.ValueData{}
	item.Value = value
	if kind == graph.KindStatic {
		value.Mutable = strings.Contains(rustsrc.NodeText(n, v.source), "static mut ")
	}
	if tn := n.ChildByFieldName("type"); tn != nil {
		value.Type = v.internType(tn)
		v.addRelation(graph.Relation{
			Source: graph.NodeRef(item.ID),
			Target: graph.TypeRef(value.Type),
			Kind:   graph.RelValueType,
		})
	}
}

func (v *fileVisitor) visitMacroDef(n *tree_sitter.Node, ctx *itemContext, parent ids.NodeID) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	v.newItem(n, ctx, parent, graph.KindMacro, rustsrc.NodeText(nameNode, v.source))
}
