package resolve

import (
	"testing"

	"github.com/josephleblanc/crategraph/internal/graph"
)

func TestVisibleFrom(t *testing.T) {
	cases := []struct {
		name    string
		vis     graph.Visibility
		defPath []string
		from    []string
		want    bool
	}{
		{"pub anywhere", graph.Visibility{Kind: graph.VisPublic},
			[]string{"a", "b"}, []string{"c"}, true},
		{"crate anywhere in crate", graph.Visibility{Kind: graph.VisCrate},
			[]string{"a"}, []string{"b", "c"}, true},
		{"private same module", graph.Visibility{Kind: graph.VisInherited},
			[]string{"a"}, []string{"a"}, true},
		{"private child module", graph.Visibility{Kind: graph.VisInherited},
			[]string{"a"}, []string{"a", "b"}, true},
		{"private sibling denied", graph.Visibility{Kind: graph.VisInherited},
			[]string{"a"}, []string{"b"}, false},
		{"private parent denied", graph.Visibility{Kind: graph.VisInherited},
			[]string{"a", "b"}, []string{"a"}, false},
		{"super from parent", graph.Visibility{Kind: graph.VisSuper},
			[]string{"a", "b"}, []string{"a"}, true},
		{"super from cousin denied", graph.Visibility{Kind: graph.VisSuper},
			[]string{"a", "b"}, []string{"c"}, false},
		{"super at crate root", graph.Visibility{Kind: graph.VisSuper},
			nil, []string{"anywhere"}, true},
		{"restricted crate-anchored", graph.Visibility{Kind: graph.VisRestricted, Path: []string{"crate", "a"}},
			[]string{"crate", "a", "b"}, []string{"crate", "a", "c"}, true},
		{"restricted outside scope denied", graph.Visibility{Kind: graph.VisRestricted, Path: []string{"crate", "a"}},
			[]string{"crate", "a", "b"}, []string{"crate", "d"}, false},
		{"restricted relative scope", graph.Visibility{Kind: graph.VisRestricted, Path: []string{"inner"}},
			[]string{"a"}, []string{"a", "inner", "deep"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := visibleFrom(tc.vis, tc.defPath, tc.from); got != tc.want {
				t.Errorf("visibleFrom(%v, %v, %v) = %v, want %v",
					tc.vis, tc.defPath, tc.from, got, tc.want)
			}
		})
	}
}
