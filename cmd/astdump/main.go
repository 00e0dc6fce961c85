// astdump prints the tree-sitter parse tree of a Rust file, or of a
// built-in snippet when no file is given. Useful when checking which
// grammar node kinds and fields a construct produces.
package main

import (
	"fmt"
	"os"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/josephleblanc/crategraph/internal/rustsrc"
)

func printAST(node *tree_sitter.Node, source []byte, indent int) {
	if node == nil {
		return
	}
	prefix := ""
	for i := 0; i < indent; i++ {
		prefix += "  "
	}
	parentKind := "nil"
	if node.Parent() != nil {
		parentKind = node.Parent().Kind()
	}
	text := string(source[node.StartByte():node.EndByte()])
	if len(text) > 60 {
		text = text[:60] + "..."
	}
	fmt.Printf("%s%s (parent=%s) %q\n", prefix, node.Kind(), parentKind, text)
	for i := uint(0); i < node.ChildCount(); i++ {
		printAST(node.Child(i), source, indent+1)
	}
}

func main() {
	source := []byte("pub mod inner;\n\npub struct Point<T> { x: T, y: T }\n\nimpl<T> Point<T> {\n    pub fn x(&self) -> &T { &self.x }\n}\n")
	if len(os.Args) > 1 {
		data, err := os.ReadFile(os.Args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, "read:", err)
			os.Exit(1)
		}
		source = data
	}

	tree, err := rustsrc.Parse(source)
	if err != nil {
		fmt.Fprintln(os.Stderr, "parse:", err)
		os.Exit(1)
	}
	defer tree.Close()
	printAST(tree.RootNode(), source, 0)
}
