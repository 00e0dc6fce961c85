package resolve

import "github.com/josephleblanc/crategraph/internal/graph"

// visibleFrom reports whether an item with the given visibility, declared
// in the module at defPath, can be named from the module at fromPath.
// Both paths are crate-relative logical paths within the same crate;
// cross-crate queries only ever see pub items.
func visibleFrom(v graph.Visibility, defPath, fromPath []string) bool {
	switch v.Kind {
	case graph.VisPublic:
		return true
	case graph.VisCrate:
		return true
	case graph.VisInherited:
		return hasPrefix(fromPath, defPath)
	case graph.VisSuper:
		if len(defPath) == 0 {
			return true
		}
		return hasPrefix(fromPath, defPath[:len(defPath)-1])
	case graph.VisRestricted:
		scope := v.Path
		if len(scope) == 0 || scope[0] != "crate" {
			// pub(in a::b) without a crate prefix is relative to the
			// declaring module.
			scope = append(append([]string(nil), defPath...), scope...)
		}
		return hasPrefix(fromPath, scope)
	}
	return false
}

func hasPrefix(path, prefix []string) bool {
	if len(path) < len(prefix) {
		return false
	}
	for i := range prefix {
		if path[i] != prefix[i] {
			return false
		}
	}
	return true
}
