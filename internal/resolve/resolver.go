// Package resolve implements the sequential resolution pass: module tree
// construction, path and import resolution, canonical path assignment,
// and synthetic-to-resolved id promotion. It runs strictly after all
// parallel parse work has been merged; nothing here is concurrent.
package resolve

import (
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/josephleblanc/crategraph/internal/discover"
	"github.com/josephleblanc/crategraph/internal/graph"
	"github.com/josephleblanc/crategraph/internal/ids"
	"github.com/josephleblanc/crategraph/internal/visitor"
)

// Resolution is the output of the batch resolution pass.
type Resolution struct {
	Tree *ModuleTree
	// Unresolved retains every pending reference that could not be
	// resolved inside the parsed set, raw path intact. External crates
	// land here; nothing is dropped.
	Unresolved []graph.PendingRelation
	// Promoted counts synthetic ids rewritten to resolved ids.
	Promoted int
}

type fileKey struct {
	ns   ids.Hash
	file string
}

type resolver struct {
	project ids.Hash
	g       *graph.CodeGraph
	t       *ModuleTree

	crates      map[ids.Hash]*discover.Crate
	rootByName  map[string]ids.NodeID
	fileModules map[fileKey]ids.NodeID
	// defines maps a module declaration node to its definition module.
	defines map[ids.NodeID]ids.NodeID

	structural []error
	unresolved []graph.PendingRelation
}

// Resolve builds the module tree over a merged graph and resolves every
// pending relation it can. Structural failures (orphan declarations, bad
// relocations, duplicate canonical paths) are collected and returned
// joined, so one broken module does not mask the others.
func Resolve(project ids.Hash, crates []*discover.Crate, g *graph.CodeGraph) (*Resolution, error) {
	r := &resolver{
		project:     project,
		g:           g,
		t:           newModuleTree(),
		crates:      make(map[ids.Hash]*discover.Crate, len(crates)),
		rootByName:  make(map[string]ids.NodeID, len(crates)),
		fileModules: make(map[fileKey]ids.NodeID),
		defines:     make(map[ids.NodeID]ids.NodeID),
	}
	r.t.g = g
	for _, c := range crates {
		r.crates[c.Namespace] = c
		r.t.crateNames[c.Namespace] = c.Name
	}

	r.indexFileModules()
	r.resolveDeclarations()
	r.indexModulePaths()
	r.collectMembers()
	r.resolveImports()
	r.resolveTypeUsages()
	r.assignCanonicalPaths()

	if len(r.structural) > 0 {
		return nil, errors.Join(r.structural...)
	}
	res := &Resolution{Tree: r.t, Unresolved: r.unresolved}
	res.Promoted = r.promote()
	return res, nil
}

func (r *resolver) indexFileModules() {
	for _, n := range r.g.NodesByKind(graph.KindModule) {
		if n.Module != nil && n.Module.Origin == graph.ModuleFileBased {
			r.fileModules[fileKey{n.CrateNS, n.FilePath}] = n.ID
		}
	}
	for ns, c := range r.crates {
		root, ok := r.fileModules[fileKey{ns, c.EntryFile}]
		if !ok {
			r.structural = append(r.structural, fmt.Errorf("%s: %w", c.Name, ErrMissingCrateRoot))
			continue
		}
		r.t.crateRoots[ns] = root
		r.rootByName[c.Name] = root
	}
}

// resolveDeclarations walks the declaration graph top-down from each
// crate root. A file module's authoritative logical path comes from the
// declaration that links it, overriding the location-derived guess; the
// correction cascades into that file's inline modules and pending
// records before its own declarations are processed.
func (r *resolver) resolveDeclarations() {
	queue := make([]ids.NodeID, 0, len(r.t.crateRoots))
	for _, c := range r.sortedCrates() {
		if root, ok := r.t.crateRoots[c.Namespace]; ok {
			queue = append(queue, root)
		}
	}

	processed := make(map[fileKey]bool)
	for len(queue) > 0 {
		modID := queue[0]
		queue = queue[1:]
		mn, ok := r.g.Node(modID)
		if !ok {
			continue
		}
		fk := fileKey{mn.CrateNS, mn.FilePath}
		if processed[fk] {
			continue
		}
		processed[fk] = true
		c := r.crates[mn.CrateNS]
		if c == nil {
			continue
		}

		for i := range r.g.Pending {
			p := &r.g.Pending[i]
			if p.Kind != graph.PendingModuleDecl || p.FilePath != mn.FilePath {
				continue
			}
			owner, ok := r.g.Node(p.Owner)
			if !ok || owner.CrateNS != mn.CrateNS {
				continue
			}
			if _, done := r.defines[p.Owner]; done {
				continue
			}

			var target ids.NodeID
			relocated := false
			if p.PathAttr != "" {
				rel := path.Clean(path.Join(path.Dir(p.FilePath), filepath.ToSlash(p.PathAttr)))
				target, ok = r.fileModules[fileKey{mn.CrateNS, rel}]
				if !ok {
					r.structural = append(r.structural, &RelocationError{
						Crate: c.Name, FilePath: p.FilePath, Target: p.PathAttr,
					})
					continue
				}
				relocated = true
			} else {
				target, ok = r.findDeclaredFile(c, mn, p)
				if !ok {
					r.structural = append(r.structural, &OrphanDeclarationError{
						Crate:    c.Name,
						FilePath: p.FilePath,
						Path:     append(append([]string(nil), p.ModulePath...), p.Path[0]),
					})
					continue
				}
			}

			declared := append(append([]string(nil), p.ModulePath...), p.Path[0])
			r.adoptFilePath(c, target, declared)
			r.defines[p.Owner] = target
			if tn, ok := r.g.Node(target); ok {
				// The declaration carries the module's effective visibility.
				tn.Vis = p.Vis
			}
			if parent, ok := r.g.ContainingModule(p.Owner); ok {
				r.t.parent[target] = parent
			}
			r.g.AddRelation(graph.Relation{
				Source: graph.NodeRef(p.Owner),
				Target: graph.NodeRef(target),
				Kind:   graph.RelDefinesModule,
			})
			if relocated {
				r.g.AddRelation(graph.Relation{
					Source: graph.NodeRef(p.Owner),
					Target: graph.NodeRef(target),
					Kind:   graph.RelRelocatesModule,
				})
			}
			queue = append(queue, target)
		}
	}
}

// findDeclaredFile locates the file backing `mod name;` the way rustc
// does: name.rs or name/mod.rs under the declaring module's directory.
func (r *resolver) findDeclaredFile(c *discover.Crate, fileMod *graph.ItemNode, p *graph.PendingRelation) (ids.NodeID, bool) {
	dir := path.Dir(p.FilePath)
	base := path.Base(p.FilePath)
	if p.FilePath != c.EntryFile && base != "mod.rs" {
		dir = path.Join(dir, strings.TrimSuffix(base, ".rs"))
	}
	// Inline module nesting adds directories.
	if fileMod.Module != nil && hasPrefix(p.ModulePath, fileMod.Module.Path) {
		for _, seg := range p.ModulePath[len(fileMod.Module.Path):] {
			dir = path.Join(dir, seg)
		}
	}
	name := p.Path[0]
	for _, candidate := range []string{
		path.Join(dir, name+".rs"),
		path.Join(dir, name, "mod.rs"),
	} {
		if id, ok := r.fileModules[fileKey{fileMod.CrateNS, candidate}]; ok {
			return id, true
		}
	}
	return ids.NodeID{}, false
}

// adoptFilePath installs the declared logical path on a linked file
// module. When it differs from the location-derived guess, the same
// prefix substitution is applied to the file's inline modules and to its
// pending records, so nested declarations and imports resolve against
// the corrected path.
func (r *resolver) adoptFilePath(c *discover.Crate, fileMod ids.NodeID, declared []string) {
	n, ok := r.g.Node(fileMod)
	if !ok || n.Module == nil {
		return
	}
	guess := visitor.ModulePathForFile(n.FilePath, c.EntryFile)
	if samePath(guess, declared) {
		n.Module.Path = declared
		return
	}
	for _, m := range r.g.NodesByKind(graph.KindModule) {
		if m.CrateNS == n.CrateNS && m.FilePath == n.FilePath &&
			m.Module != nil && hasPrefix(m.Module.Path, guess) {
			m.Module.Path = substitutePrefix(m.Module.Path, guess, declared)
		}
	}
	for i := range r.g.Pending {
		p := &r.g.Pending[i]
		if p.FilePath != n.FilePath || r.pendingCrate(p) != n.CrateNS {
			continue
		}
		if hasPrefix(p.ModulePath, guess) {
			p.ModulePath = substitutePrefix(p.ModulePath, guess, declared)
		}
	}
}

func (r *resolver) pendingCrate(p *graph.PendingRelation) ids.Hash {
	if p.Owner.Valid() {
		if n, ok := r.g.Node(p.Owner); ok {
			return n.CrateNS
		}
	}
	return p.OwnerType.Crate
}

// indexModulePaths registers every definition module under its logical
// path. Two modules claiming one path with no relocation between them is
// fatal.
func (r *resolver) indexModulePaths() {
	for _, n := range r.g.NodesByKind(graph.KindModule) {
		if n.Module == nil || n.Module.Origin == graph.ModuleDeclaration {
			continue
		}
		c := r.crates[n.CrateNS]
		if c == nil {
			continue
		}
		key := pathKey(c.Name, n.Module.Path)
		if prev, exists := r.t.byPath[key]; exists && prev != n.ID {
			r.structural = append(r.structural, &DuplicatePathError{
				Crate: c.Name, Path: n.Module.Path, First: prev, Second: n.ID,
			})
			continue
		}
		r.t.byPath[key] = n.ID
	}
}

// collectMembers builds each module's declared namespace. Declaration
// nodes redirect to their definition modules; impls are anonymous and
// imports are handled as aliases later.
func (r *resolver) collectMembers() {
	for _, n := range r.g.Nodes() {
		parent, ok := r.g.ContainingModule(n.ID)
		if !ok {
			continue
		}
		switch n.Kind {
		case graph.KindImpl, graph.KindImport:
			continue
		case graph.KindModule:
			if n.Module != nil && n.Module.Origin == graph.ModuleDeclaration {
				if def, ok := r.defines[n.ID]; ok {
					r.t.addMember(parent, n.Name, def)
				}
				continue
			}
		}
		r.t.addMember(parent, n.Name, n.ID)
	}
}

// resolvePath resolves a raw path from inside a module. The first
// segment anchors the walk: crate, self, super chains, a parsed crate
// name, or a name visible in the module itself (with a crate-root
// fallback for 2015-style paths).
func (r *resolver) resolvePath(crateNS ids.Hash, fromModule ids.NodeID, segs []string) (ids.NodeID, bool) {
	if len(segs) == 0 {
		return ids.NodeID{}, false
	}
	var cur ids.NodeID
	i := 0
	switch segs[0] {
	case "crate":
		root, ok := r.t.crateRoots[crateNS]
		if !ok {
			return ids.NodeID{}, false
		}
		cur = root
		i = 1
	case "self":
		cur = fromModule
		i = 1
	case "super":
		cur = fromModule
		for i < len(segs) && segs[i] == "super" {
			p, ok := r.parentModule(cur)
			if !ok {
				return ids.NodeID{}, false
			}
			cur = p
			i++
		}
	default:
		if id, ok := r.t.lookup(fromModule, segs[0], true, make(map[ids.NodeID]bool)); ok {
			cur = id
		} else if root, ok := r.rootByName[segs[0]]; ok {
			cur = root
		} else if root, ok := r.t.crateRoots[crateNS]; ok {
			id, ok2 := r.t.lookup(root, segs[0], false, make(map[ids.NodeID]bool))
			if !ok2 {
				return ids.NodeID{}, false
			}
			cur = id
		} else {
			return ids.NodeID{}, false
		}
		i = 1
	}
	for ; i < len(segs); i++ {
		next, ok := r.t.lookup(cur, segs[i], false, make(map[ids.NodeID]bool))
		if !ok {
			return ids.NodeID{}, false
		}
		cur = next
	}
	return cur, true
}

// parentModule follows the logical hierarchy: explicit decl parents for
// file modules, containment for inline ones.
func (r *resolver) parentModule(m ids.NodeID) (ids.NodeID, bool) {
	if p, ok := r.t.parent[m]; ok {
		return p, true
	}
	return r.g.ContainingModule(m)
}

// resolveImports runs the import worklist to a fixpoint: re-export
// chains and glob imports can only be resolved once their sources are.
func (r *resolver) resolveImports() {
	var work []*graph.PendingRelation
	for i := range r.g.Pending {
		p := &r.g.Pending[i]
		if p.Kind == graph.PendingImport || p.Kind == graph.PendingReExport {
			work = append(work, p)
		}
	}
	for {
		progress := false
		var next []*graph.PendingRelation
		for _, p := range work {
			owner, ok := r.g.Node(p.Owner)
			if !ok {
				continue
			}
			mod, ok := r.g.ContainingModule(p.Owner)
			if !ok {
				continue
			}
			target, ok := r.resolvePath(owner.CrateNS, mod, p.Path)
			if !ok {
				next = append(next, p)
				continue
			}
			progress = true
			reexport := p.Kind == graph.PendingReExport
			if p.Glob {
				r.addGlob(mod, target)
			} else {
				r.t.addAlias(mod, p.VisibleName, target, reexport)
			}
			kind := graph.RelImports
			if reexport {
				kind = graph.RelReExports
			}
			r.g.AddRelation(graph.Relation{
				Source: graph.NodeRef(p.Owner),
				Target: graph.NodeRef(target),
				Kind:   kind,
			})
		}
		work = next
		if !progress {
			break
		}
	}
	// Leftovers point outside the parsed set. The target stays synthetic
	// and the raw path is retained on both the relation and the record.
	for _, p := range work {
		owner, ok := r.g.Node(p.Owner)
		if !ok {
			continue
		}
		raw := strings.Join(p.Path, "::")
		kind := graph.RelImports
		if p.Kind == graph.PendingReExport {
			kind = graph.RelReExports
		}
		r.g.AddRelation(graph.Relation{
			Source: graph.NodeRef(p.Owner),
			Target: graph.NodeRef(ids.NewSynthetic(ids.SyntheticInput{
				Crate: owner.CrateNS,
				Name:  raw,
			})),
			Kind:           kind,
			UnresolvedPath: raw,
		})
		r.unresolved = append(r.unresolved, *p)
	}
}

func (r *resolver) addGlob(mod, target ids.NodeID) {
	for _, existing := range r.t.globs[mod] {
		if existing == target {
			return
		}
	}
	r.t.globs[mod] = append(r.t.globs[mod], target)
}

var typeDefKinds = map[graph.ItemKind]bool{
	graph.KindStruct:    true,
	graph.KindEnum:      true,
	graph.KindUnion:     true,
	graph.KindTrait:     true,
	graph.KindTypeAlias: true,
}

// resolveTypeUsages links named type occurrences to their definitions
// where the definition was parsed; everything else is retained
// unresolved.
func (r *resolver) resolveTypeUsages() {
	for i := range r.g.Pending {
		p := &r.g.Pending[i]
		if p.Kind != graph.PendingTypeUsage {
			continue
		}
		ns := p.OwnerType.Crate
		c := r.crates[ns]
		if c == nil {
			r.unresolved = append(r.unresolved, *p)
			continue
		}
		mod, ok := r.t.byPath[pathKey(c.Name, p.ModulePath)]
		if !ok {
			r.unresolved = append(r.unresolved, *p)
			continue
		}
		target, ok := r.resolvePath(ns, mod, p.Path)
		if !ok {
			r.unresolved = append(r.unresolved, *p)
			continue
		}
		tn, ok := r.g.Node(target)
		if !ok || !typeDefKinds[tn.Kind] {
			r.unresolved = append(r.unresolved, *p)
			continue
		}
		r.g.AddRelation(graph.Relation{
			Source: graph.TypeRef(p.OwnerType),
			Target: graph.NodeRef(target),
			Kind:   graph.RelResolvesType,
		})
	}
}

// nsClass buckets item kinds into Rust's namespaces so that a function
// and a struct sharing a name do not falsely collide.
func nsClass(kind graph.ItemKind) string {
	switch kind {
	case graph.KindFunction, graph.KindConst, graph.KindStatic:
		return "v"
	case graph.KindMacro:
		return "m"
	default:
		return "t"
	}
}

func implSegment(n *graph.ItemNode) string {
	return "{" + n.Name + "#" + hex.EncodeToString(n.ID.Hash[:4]) + "}"
}

// assignCanonicalPaths walks containment from each crate root, assigns
// every reachable item its canonical path, and verifies path uniqueness
// per namespace. Module declarations hand the path to their definition
// module and the walk continues into the defined file.
func (r *resolver) assignCanonicalPaths() {
	children := make(map[ids.NodeID][]*graph.ItemNode)
	for _, n := range r.g.Nodes() {
		if parent, ok := r.g.ContainingModule(n.ID); ok {
			children[parent] = append(children[parent], n)
		}
	}
	claimed := make(map[string]ids.NodeID)

	var walk func(n *graph.ItemNode, crateName string, p []string)
	walk = func(n *graph.ItemNode, crateName string, p []string) {
		n.CanonicalPath = p

		isDecl := n.Kind == graph.KindModule && n.Module != nil &&
			n.Module.Origin == graph.ModuleDeclaration
		if n.Kind != graph.KindImport && n.Kind != graph.KindImpl && !isDecl {
			key := pathKey(crateName, p) + "#" + nsClass(n.Kind)
			if prev, exists := claimed[key]; exists && prev != n.ID {
				r.structural = append(r.structural, &DuplicatePathError{
					Crate: crateName, Path: p, First: prev, Second: n.ID,
				})
			} else {
				claimed[key] = n.ID
			}
		}

		if isDecl {
			if def, ok := r.defines[n.ID]; ok {
				if dn, ok := r.g.Node(def); ok {
					walk(dn, crateName, p)
				}
			}
			return
		}
		for _, child := range children[n.ID] {
			seg := child.Name
			if child.Kind == graph.KindImpl {
				seg = implSegment(child)
			}
			walk(child, crateName, append(append([]string(nil), p...), seg))
		}
	}

	for _, c := range r.sortedCrates() {
		root, ok := r.t.crateRoots[c.Namespace]
		if !ok {
			continue
		}
		if rn, ok := r.g.Node(root); ok {
			walk(rn, c.Name, []string{"crate"})
		}
	}
}

// promote rewrites every reachable definition's synthetic id to its
// canonical-path-derived resolved id and stamps logical type ids on
// named type definitions. Imports and declaration proxies keep their
// synthetic ids; unreached items (files never linked by a declaration)
// stay synthetic by construction.
func (r *resolver) promote() int {
	idMap := make(map[ids.NodeID]ids.NodeID)
	for _, n := range r.g.Nodes() {
		if len(n.CanonicalPath) == 0 || !n.ID.IsSynthetic() {
			continue
		}
		if n.Kind == graph.KindImport {
			continue
		}
		if n.Kind == graph.KindModule && n.Module != nil &&
			n.Module.Origin == graph.ModuleDeclaration {
			continue
		}
		c := r.crates[n.CrateNS]
		if c == nil {
			continue
		}
		resolved := ids.NewResolved(n.CrateNS, n.CanonicalPath, n.Kind.Code())
		idMap[n.ID] = resolved
		if typeDefKinds[n.Kind] {
			n.Logical = ids.NewLogicalTypeID(r.project, c.Name, n.CanonicalPath)
		}
	}
	for old, resolved := range idMap {
		r.g.ReplaceNodeID(old, resolved)
	}
	remapDefines := make(map[ids.NodeID]ids.NodeID, len(r.defines))
	for decl, def := range r.defines {
		if n, ok := idMap[def]; ok {
			def = n
		}
		remapDefines[decl] = def
	}
	r.defines = remapDefines
	r.t.remap(idMap)
	return len(idMap)
}

func (r *resolver) sortedCrates() []*discover.Crate {
	out := make([]*discover.Crate, 0, len(r.crates))
	for _, c := range r.crates {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func samePath(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func substitutePrefix(p, old, new []string) []string {
	out := append([]string(nil), new...)
	return append(out, p[len(old):]...)
}
