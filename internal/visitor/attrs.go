package visitor

import (
	"regexp"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/josephleblanc/crategraph/internal/graph"
	"github.com/josephleblanc/crategraph/internal/ids"
	"github.com/josephleblanc/crategraph/internal/rustsrc"
)

// itemContext carries the attributes and doc comments that precede an
// item. tree-sitter-rust parses outer attributes and /// comments as
// siblings, not children, so the declaration-list walk accumulates them
// until it reaches the item they belong to.
type itemContext struct {
	attrs []graph.Attribute
	doc   []string
}

func (c *itemContext) reset() {
	c.attrs = nil
	c.doc = nil
}

func (c *itemContext) docText() string {
	return strings.Join(c.doc, "\n")
}

var attrNameRe = regexp.MustCompile(`^#!?\[\s*([A-Za-z_][A-Za-z0-9_:]*)`)

// collect consumes one sibling node; returns true when the node was an
// attribute or doc comment (and the caller should move on).
func (c *itemContext) collect(n *tree_sitter.Node, source []byte) bool {
	switch n.Kind() {
	case rustsrc.KindAttributeItem:
		raw := rustsrc.NodeText(n, source)
		name := ""
		if m := attrNameRe.FindStringSubmatch(raw); m != nil {
			name = m[1]
		}
		c.attrs = append(c.attrs, graph.Attribute{Name: name, Raw: raw})
		return true
	case rustsrc.KindLineComment:
		text := rustsrc.NodeText(n, source)
		if strings.HasPrefix(text, "///") {
			c.doc = append(c.doc, strings.TrimSpace(strings.TrimPrefix(text, "///")))
			return true
		}
		// Plain comments break the doc block but are still skipped.
		c.doc = nil
		return true
	case rustsrc.KindBlockComment:
		text := rustsrc.NodeText(n, source)
		if strings.HasPrefix(text, "/**") {
			body := strings.TrimSuffix(strings.TrimPrefix(text, "/**"), "*/")
			c.doc = append(c.doc, strings.TrimSpace(body))
			return true
		}
		c.doc = nil
		return true
	}
	return false
}

var (
	cfgRe  = regexp.MustCompile(`^#\[\s*cfg\s*\((.*)\)\s*\]$`)
	pathRe = regexp.MustCompile(`^#\[\s*path\s*=\s*"(.*)"\s*\]$`)
)

// cfgPredicate extracts the predicate text from a #[cfg(...)] attribute,
// or "" when the attribute is not a cfg guard.
func cfgPredicate(a graph.Attribute) string {
	if a.Name != "cfg" {
		return ""
	}
	if m := cfgRe.FindStringSubmatch(a.Raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// pathAttr extracts the relocation target from a #[path = "..."]
// attribute, or "".
func pathAttr(attrs []graph.Attribute) string {
	for _, a := range attrs {
		if a.Name != "path" {
			continue
		}
		if m := pathRe.FindStringSubmatch(a.Raw); m != nil {
			return m[1]
		}
	}
	return ""
}

// cfgFingerprintWith combines the active predicate stack with an item's
// own cfg attributes.
func (v *fileVisitor) cfgFingerprintWith(attrs []graph.Attribute) uint64 {
	preds := append([]string(nil), v.cfg...)
	for _, a := range attrs {
		if p := cfgPredicate(a); p != "" {
			preds = append(preds, p)
		}
	}
	return ids.CfgFingerprint(preds)
}

// itemCfgPredicates returns just the item's own cfg predicate strings.
func itemCfgPredicates(attrs []graph.Attribute) []string {
	var preds []string
	for _, a := range attrs {
		if p := cfgPredicate(a); p != "" {
			preds = append(preds, p)
		}
	}
	return preds
}

// visibilityOf reads an item's visibility_modifier child.
func (v *fileVisitor) visibilityOf(n *tree_sitter.Node) graph.Visibility {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		if c == nil || c.Kind() != rustsrc.KindVisibilityModifier {
			continue
		}
		text := rustsrc.NodeText(c, v.source)
		switch {
		case text == "pub":
			return graph.Visibility{Kind: graph.VisPublic}
		case text == "pub(crate)":
			return graph.Visibility{Kind: graph.VisCrate}
		case text == "pub(super)":
			return graph.Visibility{Kind: graph.VisSuper}
		case strings.HasPrefix(text, "pub(in "):
			inner := strings.TrimSuffix(strings.TrimPrefix(text, "pub(in "), ")")
			return graph.Visibility{
				Kind: graph.VisRestricted,
				Path: strings.Split(strings.TrimSpace(inner), "::"),
			}
		case text == "pub(self)":
			return graph.Visibility{Kind: graph.VisInherited}
		}
	}
	return graph.Visibility{Kind: graph.VisInherited}
}

// innerDoc collects leading //! and /*! comments for a file or inline
// module body.
func (v *fileVisitor) innerDoc(n *tree_sitter.Node) string {
	var lines []string
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		if c == nil {
			break
		}
		switch c.Kind() {
		case rustsrc.KindLineComment:
			text := rustsrc.NodeText(c, v.source)
			if strings.HasPrefix(text, "//!") {
				lines = append(lines, strings.TrimSpace(strings.TrimPrefix(text, "//!")))
				continue
			}
			return strings.Join(lines, "\n")
		case rustsrc.KindBlockComment:
			text := rustsrc.NodeText(c, v.source)
			if strings.HasPrefix(text, "/*!") {
				body := strings.TrimSuffix(strings.TrimPrefix(text, "/*!"), "*/")
				lines = append(lines, strings.TrimSpace(body))
				continue
			}
			return strings.Join(lines, "\n")
		case rustsrc.KindInnerAttributeItem:
			continue
		default:
			return strings.Join(lines, "\n")
		}
	}
	return strings.Join(lines, "\n")
}

var wsRe = regexp.MustCompile(`\s+`)

// trackingHash fingerprints an item's whitespace-normalized token text.
// Sensitive to comment edits inside the item; accepted limitation.
func (v *fileVisitor) trackingHash(n *tree_sitter.Node) ids.TrackingHash {
	text := rustsrc.NodeText(n, v.source)
	norm := wsRe.ReplaceAllString(strings.TrimSpace(text), " ")
	return ids.NewTrackingHash(v.job.CrateNS, v.job.RelPath, []byte(norm))
}
