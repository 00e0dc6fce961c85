package visitor

import (
	"testing"

	"github.com/josephleblanc/crategraph/internal/graph"
	"github.com/josephleblanc/crategraph/internal/ids"
)

func testJob() FileJob {
	project := ids.ProjectNamespace("/tmp/demo")
	return FileJob{
		CrateName: "demo",
		CrateNS:   ids.CrateNamespace(project, "demo", "0.1.0"),
		RelPath:   "src/lib.rs",
		EntryFile: "src/lib.rs",
	}
}

func parse(t *testing.T, src string) *graph.PartialGraph {
	t.Helper()
	p, err := ParseSource(testJob(), []byte(src))
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	return p
}

func findNodes(p *graph.PartialGraph, kind graph.ItemKind, name string) []*graph.ItemNode {
	var out []*graph.ItemNode
	for _, n := range p.Nodes {
		if n.Kind == kind && n.Name == name {
			out = append(out, n)
		}
	}
	return out
}

func findNode(t *testing.T, p *graph.PartialGraph, kind graph.ItemKind, name string) *graph.ItemNode {
	t.Helper()
	nodes := findNodes(p, kind, name)
	if len(nodes) != 1 {
		t.Fatalf("expected exactly one %s %q, got %d", kind, name, len(nodes))
	}
	return nodes[0]
}

func pendingOfKind(p *graph.PartialGraph, kind graph.PendingKind) []graph.PendingRelation {
	var out []graph.PendingRelation
	for _, pr := range p.Pending {
		if pr.Kind == kind {
			out = append(out, pr)
		}
	}
	return out
}

func TestSameNamedTypeSharesID(t *testing.T) {
	p := parse(t, `
struct Foo;
fn takes(a: Foo) -> Foo { a }
`)
	fn := findNode(t, p, graph.KindFunction, "takes")
	if fn.Function == nil || len(fn.Function.Params) != 1 || fn.Function.Return == nil {
		t.Fatal("expected one parameter and a return type")
	}
	if fn.Function.Params[0].Type != *fn.Function.Return {
		t.Error("same named type in parameter and return positions must intern to one id")
	}
}

func TestGenericParamsScopedPerFunction(t *testing.T) {
	p := parse(t, `
fn first<T>(x: T) {}
fn second<T>(x: T) {}
`)
	a := findNode(t, p, graph.KindFunction, "first")
	b := findNode(t, p, graph.KindFunction, "second")
	if a.Function.Params[0].Type == b.Function.Params[0].Type {
		t.Error("a generic parameter T in two functions must not share a type id")
	}
}

func TestSelfTypeScopedPerImpl(t *testing.T) {
	p := parse(t, `
struct A;
struct B;
impl A { fn make() -> Self { A } }
impl B { fn make() -> Self { B } }
`)
	fns := findNodes(p, graph.KindFunction, "make")
	if len(fns) != 2 {
		t.Fatalf("expected two make methods, got %d", len(fns))
	}
	if *fns[0].Function.Return == *fns[1].Function.Return {
		t.Error("Self in two impls must not share a type id")
	}
}

func TestImplScopeAppliesToImplGenerics(t *testing.T) {
	p := parse(t, `
struct Wrap<T> { inner: T }
impl<T> Wrap<T> { fn get(&self) -> T { self.inner } }
struct Other<T> { inner: T }
impl<T> Other<T> { fn get(&self) -> T { self.inner } }
`)
	fns := findNodes(p, graph.KindFunction, "get")
	if len(fns) != 2 {
		t.Fatalf("expected two get methods, got %d", len(fns))
	}
	if *fns[0].Function.Return == *fns[1].Function.Return {
		t.Error("T under different impls must not share a type id")
	}
}

func TestSelfParameter(t *testing.T) {
	p := parse(t, `
struct A;
impl A { fn touch(&mut self) {} }
`)
	fn := findNode(t, p, graph.KindFunction, "touch")
	if len(fn.Function.Params) != 1 {
		t.Fatalf("expected one parameter, got %d", len(fn.Function.Params))
	}
	param := fn.Function.Params[0]
	if !param.IsSelf || !param.Mutable {
		t.Errorf("expected mutable self parameter, got %+v", param)
	}
}

func TestTrackingHashIgnoresWhitespace(t *testing.T) {
	a := parse(t, "fn calc(a: u32) -> u32 { a + 1 }\n")
	b := parse(t, "fn   calc(a:   u32)   ->   u32   {\n    a   +   1\n}\n")
	c := parse(t, "fn calc(a: u32) -> u32 { a + 2 }\n")

	ha := findNode(t, a, graph.KindFunction, "calc").Tracking
	hb := findNode(t, b, graph.KindFunction, "calc").Tracking
	hc := findNode(t, c, graph.KindFunction, "calc").Tracking
	if ha != hb {
		t.Error("reformatting must not change the tracking hash")
	}
	if ha == hc {
		t.Error("a body edit must change the tracking hash")
	}
}

func TestDeterministicIDs(t *testing.T) {
	src := `
pub mod util { pub struct Helper; }
pub fn entry(h: util::Helper) {}
`
	a := parse(t, src)
	b := parse(t, src)
	if len(a.Nodes) != len(b.Nodes) {
		t.Fatalf("node counts differ: %d vs %d", len(a.Nodes), len(b.Nodes))
	}
	for i := range a.Nodes {
		if a.Nodes[i].ID != b.Nodes[i].ID {
			t.Errorf("node %d (%s): ids differ across identical parses", i, a.Nodes[i].Name)
		}
	}
}

func TestModuleDeclarationPending(t *testing.T) {
	p := parse(t, `
mod plain;
#[path = "generated/big.rs"]
mod relocated;
`)
	plain := findNode(t, p, graph.KindModule, "plain")
	if plain.Module == nil || plain.Module.Origin != graph.ModuleDeclaration {
		t.Error("bare declaration must carry ModuleDeclaration origin")
	}
	reloc := findNode(t, p, graph.KindModule, "relocated")
	if reloc.Module.PathAttr != "generated/big.rs" {
		t.Errorf("path attribute: got %q", reloc.Module.PathAttr)
	}

	decls := pendingOfKind(p, graph.PendingModuleDecl)
	if len(decls) != 2 {
		t.Fatalf("expected 2 pending declarations, got %d", len(decls))
	}
	byName := map[string]graph.PendingRelation{}
	for _, d := range decls {
		byName[d.Path[len(d.Path)-1]] = d
	}
	if byName["relocated"].PathAttr != "generated/big.rs" {
		t.Errorf("pending relocation attr: got %q", byName["relocated"].PathAttr)
	}
	if byName["plain"].PathAttr != "" {
		t.Errorf("pending plain attr: got %q", byName["plain"].PathAttr)
	}
}

func TestInlineModuleContainment(t *testing.T) {
	p := parse(t, `
mod outer {
    pub mod inner {
        pub struct Deep;
    }
}
`)
	outer := findNode(t, p, graph.KindModule, "outer")
	inner := findNode(t, p, graph.KindModule, "inner")
	deep := findNode(t, p, graph.KindStruct, "Deep")

	if got := inner.Module.Path; len(got) != 3 || got[0] != "crate" || got[1] != "outer" || got[2] != "inner" {
		t.Errorf("inner module path: got %v", got)
	}

	contains := func(src, dst ids.NodeID) bool {
		for _, r := range p.Relations {
			if r.Kind == graph.RelContains && r.Source.Node == src && r.Target.Node == dst {
				return true
			}
		}
		return false
	}
	if !contains(p.FileModule, outer.ID) {
		t.Error("file module must contain outer")
	}
	if !contains(outer.ID, inner.ID) {
		t.Error("outer must contain inner")
	}
	if !contains(inner.ID, deep.ID) {
		t.Error("inner must contain Deep")
	}
}

func TestUseTreeFlattening(t *testing.T) {
	p := parse(t, `
use alpha::{beta, gamma as g, delta::*};
pub use crate::foo::Bar;
`)
	imports := findNodes(p, graph.KindImport, "beta")
	if len(imports) != 1 {
		t.Fatalf("expected one beta import, got %d", len(imports))
	}
	beta := imports[0].Import
	if len(beta.SourcePath) != 2 || beta.SourcePath[0] != "alpha" || beta.SourcePath[1] != "beta" {
		t.Errorf("beta source path: got %v", beta.SourcePath)
	}
	if beta.VisibleName != "beta" || beta.IsGlob || beta.IsReExport {
		t.Errorf("beta import data: got %+v", beta)
	}

	g := findNode(t, p, graph.KindImport, "g").Import
	if g.VisibleName != "g" || g.SourcePath[len(g.SourcePath)-1] != "gamma" {
		t.Errorf("aliased import: got %+v", g)
	}

	glob := findNode(t, p, graph.KindImport, "alpha::delta::*").Import
	if !glob.IsGlob || glob.VisibleName != "" {
		t.Errorf("glob import: got %+v", glob)
	}

	bar := findNode(t, p, graph.KindImport, "Bar").Import
	if !bar.IsReExport {
		t.Error("pub use must mark a re-export")
	}

	if got := len(pendingOfKind(p, graph.PendingImport)); got != 3 {
		t.Errorf("pending imports: got %d, want 3", got)
	}
	reexports := pendingOfKind(p, graph.PendingReExport)
	if len(reexports) != 1 {
		t.Fatalf("pending re-exports: got %d, want 1", len(reexports))
	}
	if path := reexports[0].Path; len(path) != 3 || path[0] != "crate" || path[2] != "Bar" {
		t.Errorf("re-export path: got %v", path)
	}
}

func TestExternCrateImport(t *testing.T) {
	p := parse(t, "extern crate serde as s;\n")
	imp := findNode(t, p, graph.KindImport, "s").Import
	if !imp.IsExternCrate || imp.VisibleName != "s" || imp.SourcePath[0] != "serde" {
		t.Errorf("extern crate import: got %+v", imp)
	}
}

func TestNonLocalTypeUsagePending(t *testing.T) {
	p := parse(t, `
struct Local;
fn f(a: Local, b: other::Thing, c: String, d: u32) {}
`)
	usages := pendingOfKind(p, graph.PendingTypeUsage)
	paths := map[string]bool{}
	for _, u := range usages {
		key := ""
		for i, s := range u.Path {
			if i > 0 {
				key += "::"
			}
			key += s
		}
		paths[key] = true
	}
	if !paths["other::Thing"] {
		t.Error("expected pending usage for other::Thing")
	}
	if !paths["String"] {
		t.Error("expected pending usage for String")
	}
	if paths["Local"] {
		t.Error("locally declared type must not produce a pending usage")
	}
	if paths["u32"] {
		t.Error("primitive type must not produce a pending usage")
	}
}

func TestStructFieldsAndRelations(t *testing.T) {
	p := parse(t, `
pub struct Point {
    pub x: f64,
    y: f64,
}
`)
	point := findNode(t, p, graph.KindStruct, "Point")
	if len(point.Aggregate.Fields) != 2 {
		t.Fatalf("fields: got %d, want 2", len(point.Aggregate.Fields))
	}
	if point.Aggregate.Fields[0].Name != "x" || point.Aggregate.Fields[0].Vis.Kind != graph.VisPublic {
		t.Errorf("field x: got %+v", point.Aggregate.Fields[0])
	}
	if point.Aggregate.Fields[1].Vis.Kind != graph.VisInherited {
		t.Error("field y must be private")
	}
	// Both fields share the f64 type, so one FieldOf edge per field but a
	// single interned type.
	if point.Aggregate.Fields[0].Type != point.Aggregate.Fields[1].Type {
		t.Error("identical field types must intern to one id")
	}
	var fieldEdges int
	for _, r := range p.Relations {
		if r.Kind == graph.RelFieldOf && r.Target.Node == point.ID {
			fieldEdges++
		}
	}
	if fieldEdges != 2 {
		t.Errorf("field_of edges: got %d, want 2", fieldEdges)
	}
}

func TestEnumVariants(t *testing.T) {
	p := parse(t, `
enum Shape {
    Circle(f64),
    Rect { w: f64, h: f64 },
    Empty,
}
`)
	shape := findNode(t, p, graph.KindEnum, "Shape")
	want := []string{"Circle", "Rect", "Empty"}
	if len(shape.Aggregate.Variants) != len(want) {
		t.Fatalf("variants: got %v", shape.Aggregate.Variants)
	}
	for i, name := range want {
		if shape.Aggregate.Variants[i] != name {
			t.Fatalf("variants: got %v", shape.Aggregate.Variants)
		}
	}
	var uses int
	for _, r := range p.Relations {
		if r.Kind == graph.RelUsesType && r.Source.Node == shape.ID {
			uses++
		}
	}
	if uses != 3 {
		t.Errorf("variant payload uses_type edges: got %d, want 3", uses)
	}
}

func TestTraitImplRelations(t *testing.T) {
	p := parse(t, `
struct Meters(f64);
trait Scale { fn scale(&self, by: f64) -> Self; }
impl Scale for Meters { fn scale(&self, by: f64) -> Self { Meters(self.0 * by) } }
`)
	impls := findNodes(p, graph.KindImpl, "impl Scale for Meters")
	if len(impls) != 1 {
		t.Fatalf("expected one impl node, got %d", len(impls))
	}
	impl := impls[0]
	if impl.Impl.TraitType == nil {
		t.Fatal("trait impl must record the trait type")
	}
	var implFor, implTrait bool
	for _, r := range p.Relations {
		if r.Source.Kind != graph.RefNode || r.Source.Node != impl.ID {
			continue
		}
		switch r.Kind {
		case graph.RelImplFor:
			implFor = true
		case graph.RelImplTrait:
			implTrait = true
		}
	}
	if !implFor || !implTrait {
		t.Errorf("impl relations: impl_for=%v impl_trait=%v", implFor, implTrait)
	}

	sig := findNodes(p, graph.KindFunction, "scale")
	var bodyless int
	for _, fn := range sig {
		if fn.Function.Bodyless {
			bodyless++
		}
	}
	if bodyless != 1 {
		t.Errorf("expected exactly one bodyless trait signature, got %d", bodyless)
	}
}

func TestMacroUseRecorded(t *testing.T) {
	p := parse(t, `
fn greet() {
    println!("hi");
}
`)
	fn := findNode(t, p, graph.KindFunction, "greet")
	var found bool
	for _, r := range p.Relations {
		if r.Kind == graph.RelMacroUse && r.Source.Node == fn.ID {
			found = true
			if r.UnresolvedPath != "println" {
				t.Errorf("macro path: got %q", r.UnresolvedPath)
			}
		}
	}
	if !found {
		t.Error("expected a macro_use relation from greet")
	}
}

func TestCfgChangesIdentity(t *testing.T) {
	p := parse(t, `
#[cfg(unix)]
fn platform() {}
`)
	q := parse(t, "fn platform() {}\n")
	a := findNode(t, p, graph.KindFunction, "platform")
	b := findNode(t, q, graph.KindFunction, "platform")
	if a.CfgHash == 0 {
		t.Error("cfg-guarded item must carry a non-zero cfg fingerprint")
	}
	if b.CfgHash != 0 {
		t.Error("unguarded item must carry a zero cfg fingerprint")
	}
	if a.ID == b.ID {
		t.Error("cfg guard must change the synthetic id")
	}
}

func TestDocCommentsAttach(t *testing.T) {
	p := parse(t, `//! Crate docs.

/// Adds one.
/// Wraps on overflow.
fn inc(a: u32) -> u32 { a.wrapping_add(1) }
`)
	for _, n := range p.Nodes {
		if n.ID == p.FileModule && n.Doc != "Crate docs." {
			t.Errorf("file module doc: got %q", n.Doc)
		}
	}
	fn := findNode(t, p, graph.KindFunction, "inc")
	if fn.Doc != "Adds one.\nWraps on overflow." {
		t.Errorf("function doc: got %q", fn.Doc)
	}
}

func TestSyntaxErrorFailsFile(t *testing.T) {
	_, err := ParseSource(testJob(), []byte("fn broken( {\n"))
	if err == nil {
		t.Fatal("expected a syntax error")
	}
}

func TestModulePathForFile(t *testing.T) {
	cases := []struct {
		rel  string
		want []string
	}{
		{"src/lib.rs", []string{"crate"}},
		{"src/foo.rs", []string{"crate", "foo"}},
		{"src/foo/mod.rs", []string{"crate", "foo"}},
		{"src/a/b.rs", []string{"crate", "a", "b"}},
	}
	for _, c := range cases {
		got := ModulePathForFile(c.rel, "src/lib.rs")
		if len(got) != len(c.want) {
			t.Errorf("%s: got %v, want %v", c.rel, got, c.want)
			continue
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Errorf("%s: got %v, want %v", c.rel, got, c.want)
				break
			}
		}
	}
}

func TestGenericParamShadowsFileLevelType(t *testing.T) {
	// A generic parameter named after an earlier-interned concrete type
	// must still get a scoped id, whichever declaration comes first.
	forward := parse(t, `
struct T;
fn uses(x: T) {}
fn shadows<T>(y: T) {}
`)
	reversed := parse(t, `
struct T;
fn shadows<T>(y: T) {}
fn uses(x: T) {}
`)

	fwdConcrete := findNode(t, forward, graph.KindFunction, "uses").Function.Params[0].Type
	fwdGeneric := findNode(t, forward, graph.KindFunction, "shadows").Function.Params[0].Type
	if fwdConcrete == fwdGeneric {
		t.Fatal("generic T conflated with the file-level struct T")
	}

	revConcrete := findNode(t, reversed, graph.KindFunction, "uses").Function.Params[0].Type
	revGeneric := findNode(t, reversed, graph.KindFunction, "shadows").Function.Params[0].Type
	if fwdConcrete != revConcrete || fwdGeneric != revGeneric {
		t.Error("type identity must not depend on declaration order")
	}
}

func TestCompositeTypeScopedByGenericElement(t *testing.T) {
	// &T embeds a scope-relative name, so the whole reference type is
	// scope-qualified and must not reuse a concrete &T interned earlier.
	p := parse(t, `
struct T;
fn uses(x: &T) {}
fn generic<T>(y: &T) {}
`)
	concrete := findNode(t, p, graph.KindFunction, "uses").Function.Params[0].Type
	generic := findNode(t, p, graph.KindFunction, "generic").Function.Params[0].Type
	if concrete == generic {
		t.Error("&T over a generic parameter must not share the concrete &T id")
	}
}

func TestItemSpanCoversSource(t *testing.T) {
	src := "pub struct A;\n"
	p := parse(t, src)
	s := findNode(t, p, graph.KindStruct, "A")
	if s.Span.Start != 0 || s.Span.End != 13 {
		t.Errorf("span = [%d,%d), want [0,13)", s.Span.Start, s.Span.End)
	}
}
