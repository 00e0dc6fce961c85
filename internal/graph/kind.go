// Package graph defines the code graph data model: typed item nodes, the
// structural type arena, relations between items, and the deferred
// pending-relation records emitted by parse workers.
package graph

// ItemKind is the closed set of declared item kinds. The resolver matches
// it exhaustively; adding a kind means touching every switch.
type ItemKind uint8

const (
	KindModule ItemKind = iota + 1
	KindFunction
	KindStruct
	KindEnum
	KindUnion
	KindTrait
	KindImpl
	KindTypeAlias
	KindConst
	KindStatic
	KindMacro
	KindImport
)

var kindNames = map[ItemKind]string{
	KindModule:    "module",
	KindFunction:  "function",
	KindStruct:    "struct",
	KindEnum:      "enum",
	KindUnion:     "union",
	KindTrait:     "trait",
	KindImpl:      "impl",
	KindTypeAlias: "type_alias",
	KindConst:     "const",
	KindStatic:    "static",
	KindMacro:     "macro",
	KindImport:    "import",
}

func (k ItemKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Code returns the byte fed into identifier hashing for this kind.
func (k ItemKind) Code() uint8 { return uint8(k) }

// ParseItemKind maps a kind name back to its ItemKind (store loading).
func ParseItemKind(s string) (ItemKind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}
