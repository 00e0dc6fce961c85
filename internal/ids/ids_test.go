package ids

import "testing"

func TestSyntheticDeterminism(t *testing.T) {
	project := ProjectNamespace("myproject")
	crate := CrateNamespace(project, "mycrate", "0.1.0")

	in := SyntheticInput{
		Crate:      crate,
		FilePath:   "src/lib.rs",
		ModulePath: []string{"crate", "inner"},
		ItemKind:   2,
		Name:       "do_work",
	}
	a := NewSynthetic(in)
	b := NewSynthetic(in)
	if a != b {
		t.Errorf("same inputs produced different ids: %s vs %s", a, b)
	}
	if !a.IsSynthetic() {
		t.Errorf("expected synthetic id, got %s", a.Kind)
	}
}

func TestSyntheticInputSensitivity(t *testing.T) {
	project := ProjectNamespace("myproject")
	crate := CrateNamespace(project, "mycrate", "0.1.0")

	base := SyntheticInput{
		Crate:      crate,
		FilePath:   "src/lib.rs",
		ModulePath: []string{"crate"},
		ItemKind:   2,
		Name:       "do_work",
	}
	baseID := NewSynthetic(base)

	variants := map[string]SyntheticInput{}

	v := base
	v.Name = "do_other"
	variants["name"] = v

	v = base
	v.FilePath = "src/main.rs"
	variants["file"] = v

	v = base
	v.ItemKind = 3
	variants["kind"] = v

	v = base
	v.ModulePath = []string{"crate", "sub"}
	variants["module path"] = v

	v = base
	v.CfgHash = CfgFingerprint([]string{`feature = "alt"`})
	variants["cfg"] = v

	v = base
	v.Crate = CrateNamespace(project, "mycrate", "0.2.0")
	variants["crate version"] = v

	for label, in := range variants {
		if got := NewSynthetic(in); got == baseID {
			t.Errorf("changing %s did not change the id", label)
		}
	}
}

// A name that is only meaningful relative to its enclosing definition must
// hash differently under two different parent scopes.
func TestSyntheticScopeSensitivity(t *testing.T) {
	project := ProjectNamespace("myproject")
	crate := CrateNamespace(project, "mycrate", "0.1.0")

	scopeA := NewSynthetic(SyntheticInput{Crate: crate, FilePath: "src/lib.rs", ItemKind: 7, Name: "ImplA"})
	scopeB := NewSynthetic(SyntheticInput{Crate: crate, FilePath: "src/lib.rs", ItemKind: 7, Name: "ImplB"})

	in := SyntheticInput{
		Crate:      crate,
		FilePath:   "src/lib.rs",
		ModulePath: []string{"crate"},
		ItemKind:   1,
		Name:       "T",
	}
	in.ParentScope = scopeA
	idA := NewSynthetic(in)
	in.ParentScope = scopeB
	idB := NewSynthetic(in)

	if idA == idB {
		t.Errorf("same name under different enclosing scopes conflated to %s", idA)
	}
}

func TestResolvedDistinctFromSynthetic(t *testing.T) {
	project := ProjectNamespace("myproject")
	crate := CrateNamespace(project, "mycrate", "0.1.0")

	res := NewResolved(crate, []string{"crate", "foo"}, 2)
	if res.Kind != KindResolved {
		t.Fatalf("expected resolved kind, got %s", res.Kind)
	}
	syn := NewSynthetic(SyntheticInput{Crate: crate, FilePath: "src/foo.rs", Name: "foo", ItemKind: 2})
	if res.Hash == syn.Hash {
		t.Errorf("resolved and synthetic hashes collided")
	}
}

func TestTypeShapeScope(t *testing.T) {
	project := ProjectNamespace("p")
	crate := CrateNamespace(project, "c", "1.0.0")
	scopeA := NewSynthetic(SyntheticInput{Crate: crate, FilePath: "src/lib.rs", Name: "A", ItemKind: 7})
	scopeB := NewSynthetic(SyntheticInput{Crate: crate, FilePath: "src/lib.rs", Name: "B", ItemKind: 7})

	a := TypeShape("named", "T", nil, scopeA)
	b := TypeShape("named", "T", nil, scopeB)
	if a == b {
		t.Errorf("type parameter T conflated across scopes")
	}

	// Without a scope the same expression always interns identically.
	x := TypeShape("named", "String", nil, NodeID{})
	y := TypeShape("named", "String", nil, NodeID{})
	if x != y {
		t.Errorf("identical shapes hashed differently")
	}
}

func TestTrackingHash(t *testing.T) {
	project := ProjectNamespace("p")
	crate := CrateNamespace(project, "c", "1.0.0")

	a := NewTrackingHash(crate, "src/lib.rs", []byte("fn a ( ) { }"))
	b := NewTrackingHash(crate, "src/lib.rs", []byte("fn a ( ) { }"))
	if a != b {
		t.Errorf("identical token streams hashed differently")
	}
	c := NewTrackingHash(crate, "src/lib.rs", []byte("fn a ( ) { 1 }"))
	if a == c {
		t.Errorf("different token streams shared a tracking hash")
	}
	d := NewTrackingHash(crate, "src/other.rs", []byte("fn a ( ) { }"))
	if a == d {
		t.Errorf("tracking hash ignored file path scope")
	}
}

func TestCfgFingerprint(t *testing.T) {
	if CfgFingerprint(nil) != 0 {
		t.Errorf("empty predicate stack should fingerprint to zero")
	}
	unix := CfgFingerprint([]string{`unix`})
	windows := CfgFingerprint([]string{`windows`})
	if unix == windows {
		t.Errorf("distinct predicates shared a fingerprint")
	}
	nested := CfgFingerprint([]string{`unix`, `feature = "x"`})
	if nested == unix {
		t.Errorf("nesting a predicate did not change the fingerprint")
	}
	if CfgFingerprint([]string{`unix`, `feature = "x"`}) != nested {
		t.Errorf("cfg fingerprint not deterministic")
	}
}

func TestLogicalTypeIDStableAcrossVersions(t *testing.T) {
	project := ProjectNamespace("p")
	a := NewLogicalTypeID(project, "c", []string{"crate", "Foo"})
	b := NewLogicalTypeID(project, "c", []string{"crate", "Foo"})
	if a != b {
		t.Errorf("logical type id not deterministic")
	}
	// Unlike TypeID, the crate version is deliberately absent.
	other := NewLogicalTypeID(project, "c", []string{"crate", "Bar"})
	if a == other {
		t.Errorf("distinct type paths shared a logical id")
	}
}
