// Package visitor converts one Rust source file into a partial graph:
// synthetic identifiers throughout, a per-file type interner, and a queue
// of pending relations for everything that cannot be resolved from this
// file alone. Workers share no mutable state; one file's syntax error
// never blocks its siblings.
package visitor

import (
	"fmt"
	"os"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/josephleblanc/crategraph/internal/graph"
	"github.com/josephleblanc/crategraph/internal/ids"
	"github.com/josephleblanc/crategraph/internal/rustsrc"
)

// FileJob is the input for one parse worker.
type FileJob struct {
	CrateName string
	CrateNS   ids.Hash
	AbsPath   string
	RelPath   string // crate-relative, slash-separated
	EntryFile string // the crate's entry file (module path guessing)
}

// scopeFrame is one entry on the enclosing-definition-scope stack.
// Generic parameter names declared by the scope feed type interning:
// a `T` in two different frames must never intern to one TypeID.
type scopeFrame struct {
	id       ids.NodeID
	generics map[string]bool
}

type typeKey struct {
	text  string
	scope ids.NodeID // zero for scope-free types
}

// namedCandidate records a named type occurrence whose definition may live
// outside this file; reconciled against local declarations at the end.
type namedCandidate struct {
	typeID     ids.TypeID
	path       []string
	scope      ids.NodeID
	modulePath []string
	span       graph.Span
}

type fileVisitor struct {
	job     FileJob
	source  []byte
	partial *graph.PartialGraph

	scopes  []scopeFrame
	modPath []string
	cfg     []string // active cfg predicate stack, outermost first

	typeCache  map[typeKey]ids.TypeID
	localTypes map[string]bool // type names declared in this file
	candidates []namedCandidate
}

// ParseFile parses one file and produces its partial graph. A syntax
// error is returned as this file's isolated failure.
func ParseFile(job FileJob) (*graph.PartialGraph, error) {
	source, err := os.ReadFile(job.AbsPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", job.RelPath, err)
	}
	return ParseSource(job, source)
}

// ParseSource is ParseFile over in-memory content (testing, incremental
// drivers that already hold the bytes).
func ParseSource(job FileJob, source []byte) (*graph.PartialGraph, error) {
	tree, err := rustsrc.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", job.RelPath, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if rustsrc.HasSyntaxError(root) {
		return nil, fmt.Errorf("syntax error in %s", job.RelPath)
	}

	v := &fileVisitor{
		job:    job,
		source: source,
		partial: &graph.PartialGraph{
			CrateName: job.CrateName,
			CrateNS:   job.CrateNS,
			FilePath:  job.RelPath,
			Types:     graph.NewTypeArena(),
		},
		typeCache:  make(map[typeKey]ids.TypeID),
		localTypes: make(map[string]bool),
	}

	v.modPath = ModulePathForFile(job.RelPath, job.EntryFile)
	fileModule := v.newFileModule(root)
	v.partial.FileModule = fileModule.ID
	v.pushScope(fileModule.ID, nil)

	v.collectLocalTypes(root)
	v.visitItems(root, fileModule.ID)
	v.popScope()
	v.finishCandidates()

	return v.partial, nil
}

// newFileModule creates the synthetic root-module item representing the
// file, seeded with the logical path guess.
func (v *fileVisitor) newFileModule(root *tree_sitter.Node) *graph.ItemNode {
	name := v.modPath[len(v.modPath)-1]
	id := ids.NewSynthetic(ids.SyntheticInput{
		Crate:      v.job.CrateNS,
		FilePath:   v.job.RelPath,
		ModulePath: v.modPath,
		ItemKind:   graph.KindModule.Code(),
		Name:       name,
	})
	m := &graph.ItemNode{
		ID:       id,
		Kind:     graph.KindModule,
		Name:     name,
		Vis:      graph.Visibility{Kind: graph.VisPublic},
		Span:     span(root),
		FilePath: v.job.RelPath,
		CrateNS:  v.job.CrateNS,
		Doc:      v.innerDoc(root),
		Module:   &graph.ModuleData{Path: append([]string(nil), v.modPath...), Origin: graph.ModuleFileBased},
	}
	v.addNode(m)
	return m
}

func (v *fileVisitor) addNode(n *graph.ItemNode) {
	v.partial.Nodes = append(v.partial.Nodes, n)
}

func (v *fileVisitor) addRelation(r graph.Relation) {
	v.partial.Relations = append(v.partial.Relations, r)
}

func (v *fileVisitor) addPending(p graph.PendingRelation) {
	p.FilePath = v.job.RelPath
	v.partial.Pending = append(v.partial.Pending, p)
}

func (v *fileVisitor) pushScope(id ids.NodeID, generics []graph.GenericParam) {
	frame := scopeFrame{id: id}
	if len(generics) > 0 {
		frame.generics = make(map[string]bool, len(generics))
		for _, g := range generics {
			if g.Kind == "type" {
				frame.generics[g.Name] = true
			}
		}
	}
	v.scopes = append(v.scopes, frame)
}

func (v *fileVisitor) popScope() {
	v.scopes = v.scopes[:len(v.scopes)-1]
}

// currentScope is the top of the enclosing-definition-scope stack.
func (v *fileVisitor) currentScope() ids.NodeID {
	if len(v.scopes) == 0 {
		return ids.NodeID{}
	}
	return v.scopes[len(v.scopes)-1].id
}

// inScopeGeneric reports whether a name is a generic parameter declared by
// any enclosing definition.
func (v *fileVisitor) inScopeGeneric(name string) bool {
	for i := len(v.scopes) - 1; i >= 0; i-- {
		if v.scopes[i].generics[name] {
			return true
		}
	}
	return false
}

// newID derives the synthetic id for an item declared at the current
// position. Every component is mandatory; see ids.SyntheticInput.
func (v *fileVisitor) newID(kind graph.ItemKind, name string, extraCfg uint64) ids.NodeID {
	cfg := ids.CfgFingerprint(v.cfg)
	if extraCfg != 0 {
		cfg = extraCfg
	}
	return ids.NewSynthetic(ids.SyntheticInput{
		Crate:       v.job.CrateNS,
		FilePath:    v.job.RelPath,
		ModulePath:  v.modPath,
		ParentScope: v.currentScope(),
		ItemKind:    kind.Code(),
		Name:        name,
		CfgHash:     cfg,
	})
}

// collectLocalTypes pre-scans the file for declared type names so that
// named type usages can be classified as local or pending without
// forward-reference guessing.
func (v *fileVisitor) collectLocalTypes(root *tree_sitter.Node) {
	rustsrc.Walk(root, func(n *tree_sitter.Node) bool {
		switch n.Kind() {
		case rustsrc.KindStructItem, rustsrc.KindEnumItem, rustsrc.KindUnionItem,
			rustsrc.KindTraitItem, rustsrc.KindTypeItem:
			if nameNode := n.ChildByFieldName("name"); nameNode != nil {
				v.localTypes[rustsrc.NodeText(nameNode, v.source)] = true
			}
		}
		return true
	})
}

// finishCandidates emits a pending type-usage for every named type whose
// first segment is not declared in this file.
func (v *fileVisitor) finishCandidates() {
	for _, c := range v.candidates {
		first := c.path[0]
		if v.localTypes[first] {
			continue
		}
		v.addPending(graph.PendingRelation{
			Kind:       graph.PendingTypeUsage,
			OwnerType:  c.typeID,
			Scope:      c.scope,
			ModulePath: c.modulePath,
			Path:       c.path,
			Span:       c.span,
		})
	}
}

func span(n *tree_sitter.Node) graph.Span {
	return graph.Span{Start: uint32(n.StartByte()), End: uint32(n.EndByte())}
}
