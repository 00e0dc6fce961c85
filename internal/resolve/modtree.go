package resolve

import (
	"strings"

	"github.com/josephleblanc/crategraph/internal/graph"
	"github.com/josephleblanc/crategraph/internal/ids"
)

// ModuleTree is the resolved project-wide module structure: every module
// definition keyed by canonical path, member namespaces per module, and
// the re-export surface used for shortest-public-path queries.
type ModuleTree struct {
	// crateNames maps a crate namespace to its name; crateRoots to the
	// root module of its entry file.
	crateNames map[ids.Hash]string
	crateRoots map[ids.Hash]ids.NodeID

	// byPath maps pathKey(crate, logical path) to the defining module.
	byPath map[string]ids.NodeID

	// members holds declared items and resolved module definitions,
	// visible-name → item, per module.
	members map[ids.NodeID]map[string]ids.NodeID

	// aliases holds local `use` bindings; importable from outside only
	// when mirrored in reexports.
	aliases   map[ids.NodeID]map[string]ids.NodeID
	reexports map[ids.NodeID]map[string]ids.NodeID

	// globs lists resolved `use m::*` source modules per importing module.
	globs map[ids.NodeID][]ids.NodeID

	// parent is the logical module hierarchy: definition module → the
	// module containing its declaration (or inline parent).
	parent map[ids.NodeID]ids.NodeID

	// g backs member-visibility checks on glob imports; set by the
	// resolver before imports are processed.
	g *graph.CodeGraph
}

func newModuleTree() *ModuleTree {
	return &ModuleTree{
		crateNames: make(map[ids.Hash]string),
		crateRoots: make(map[ids.Hash]ids.NodeID),
		byPath:     make(map[string]ids.NodeID),
		members:    make(map[ids.NodeID]map[string]ids.NodeID),
		aliases:    make(map[ids.NodeID]map[string]ids.NodeID),
		reexports:  make(map[ids.NodeID]map[string]ids.NodeID),
		globs:      make(map[ids.NodeID][]ids.NodeID),
		parent:     make(map[ids.NodeID]ids.NodeID),
	}
}

// pathKey flattens a crate-relative logical path into a project-unique
// string key. path[0] is always the literal segment "crate".
func pathKey(crateName string, path []string) string {
	if len(path) <= 1 {
		return crateName
	}
	return crateName + "::" + strings.Join(path[1:], "::")
}

func (t *ModuleTree) CrateRoot(ns ids.Hash) (ids.NodeID, bool) {
	id, ok := t.crateRoots[ns]
	return id, ok
}

func (t *ModuleTree) CrateName(ns ids.Hash) string { return t.crateNames[ns] }

// ModuleAt returns the defining module for a crate-relative logical path.
func (t *ModuleTree) ModuleAt(crateName string, path []string) (ids.NodeID, bool) {
	id, ok := t.byPath[pathKey(crateName, path)]
	return id, ok
}

// Member returns the item a name binds to inside a module, considering
// declared members first, then re-exports, then glob imports.
func (t *ModuleTree) Member(module ids.NodeID, name string) (ids.NodeID, bool) {
	return t.lookup(module, name, false, make(map[ids.NodeID]bool))
}

// Parent returns the logical parent module.
func (t *ModuleTree) Parent(module ids.NodeID) (ids.NodeID, bool) {
	p, ok := t.parent[module]
	return p, ok
}

func (t *ModuleTree) addMember(module ids.NodeID, name string, target ids.NodeID) {
	m := t.members[module]
	if m == nil {
		m = make(map[string]ids.NodeID)
		t.members[module] = m
	}
	if _, exists := m[name]; !exists {
		m[name] = target
	}
}

func (t *ModuleTree) addAlias(module ids.NodeID, name string, target ids.NodeID, reexport bool) {
	a := t.aliases[module]
	if a == nil {
		a = make(map[string]ids.NodeID)
		t.aliases[module] = a
	}
	a[name] = target
	if reexport {
		r := t.reexports[module]
		if r == nil {
			r = make(map[string]ids.NodeID)
			t.reexports[module] = r
		}
		r[name] = target
	}
}

// lookup resolves one name inside a module's namespace. local includes
// private `use` bindings, valid only for paths rooted in that module.
// Glob sources are searched breadth-last with a visited set: glob cycles
// terminate instead of recursing.
func (t *ModuleTree) lookup(module ids.NodeID, name string, local bool, seen map[ids.NodeID]bool) (ids.NodeID, bool) {
	return t.lookupFrom(module, module, name, local, seen)
}

func (t *ModuleTree) lookupFrom(from, module ids.NodeID, name string, local bool, seen map[ids.NodeID]bool) (ids.NodeID, bool) {
	if seen[module] {
		return ids.NodeID{}, false
	}
	seen[module] = true

	if id, ok := t.members[module][name]; ok {
		return id, true
	}
	if local {
		if id, ok := t.aliases[module][name]; ok {
			return id, true
		}
	} else if id, ok := t.reexports[module][name]; ok {
		return id, true
	}
	for _, src := range t.globs[module] {
		id, ok := t.lookupFrom(from, src, name, false, seen)
		if !ok {
			continue
		}
		if t.globImportable(id, src, from) {
			return id, true
		}
	}
	return ids.NodeID{}, false
}

// globImportable applies member visibility to glob imports: a name pulled
// in by `use m::*` binds only when the member would be visible from the
// importing module. Explicitly re-exported names are not filtered here;
// the re-export's own visibility governs those.
func (t *ModuleTree) globImportable(member, src, from ids.NodeID) bool {
	if t.g == nil {
		return true
	}
	n, ok := t.g.Node(member)
	if !ok {
		return false
	}
	if fn, ok := t.g.Node(from); ok && fn.CrateNS != n.CrateNS {
		return n.Vis.Kind == graph.VisPublic
	}
	def := src
	if m, ok := t.g.ContainingModule(member); ok {
		def = m
	}
	defPath := t.modulePathOf(def)
	fromPath := t.modulePathOf(from)
	if defPath == nil || fromPath == nil {
		return true
	}
	return visibleFrom(n.Vis, defPath, fromPath)
}

func (t *ModuleTree) modulePathOf(id ids.NodeID) []string {
	n, ok := t.g.Node(id)
	if !ok || n.Module == nil {
		return nil
	}
	return n.Module.Path
}

// remap rewrites every stored id through the synthetic→resolved promotion
// map produced at the end of resolution.
func (t *ModuleTree) remap(idMap map[ids.NodeID]ids.NodeID) {
	re := func(id ids.NodeID) ids.NodeID {
		if n, ok := idMap[id]; ok {
			return n
		}
		return id
	}
	for ns, id := range t.crateRoots {
		t.crateRoots[ns] = re(id)
	}
	for key, id := range t.byPath {
		t.byPath[key] = re(id)
	}
	for _, table := range []map[ids.NodeID]map[string]ids.NodeID{t.members, t.aliases, t.reexports} {
		remapped := make(map[ids.NodeID]map[string]ids.NodeID, len(table))
		for mod, names := range table {
			for name, target := range names {
				names[name] = re(target)
			}
			remapped[re(mod)] = names
		}
		clear(table)
		for k, v := range remapped {
			table[k] = v
		}
	}
	globs := make(map[ids.NodeID][]ids.NodeID, len(t.globs))
	for mod, srcs := range t.globs {
		for i := range srcs {
			srcs[i] = re(srcs[i])
		}
		globs[re(mod)] = srcs
	}
	t.globs = globs
	parent := make(map[ids.NodeID]ids.NodeID, len(t.parent))
	for child, p := range t.parent {
		parent[re(child)] = re(p)
	}
	t.parent = parent
}

// reexportersOf inverts the re-export table for one target: every
// (module, visible name) pair that publicly re-exports it. Used by
// shortest-public-path search.
func (t *ModuleTree) reexportersOf(target ids.NodeID) []reexportEdge {
	var out []reexportEdge
	for mod, names := range t.reexports {
		for name, tgt := range names {
			if tgt == target {
				out = append(out, reexportEdge{module: mod, name: name})
			}
		}
	}
	return out
}

type reexportEdge struct {
	module ids.NodeID
	name   string
}
