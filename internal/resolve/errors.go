package resolve

import (
	"errors"
	"fmt"
	"strings"

	"github.com/josephleblanc/crategraph/internal/ids"
)

// Structural failures. Resolution collects all of them before failing so
// one broken declaration does not hide the rest.
var (
	ErrOrphanDeclaration = errors.New("module declaration matches no source file")
	ErrDuplicatePath     = errors.New("duplicate canonical path")
	ErrRelocationTarget  = errors.New("path attribute target not found")
	ErrMissingCrateRoot  = errors.New("crate entry file produced no root module")
)

// OrphanDeclarationError reports a `mod name;` whose file was never
// discovered.
type OrphanDeclarationError struct {
	Crate    string
	FilePath string
	Path     []string
}

func (e *OrphanDeclarationError) Error() string {
	return fmt.Sprintf("%s: mod %s declared in %s matches no source file",
		e.Crate, strings.Join(e.Path, "::"), e.FilePath)
}

func (e *OrphanDeclarationError) Unwrap() error { return ErrOrphanDeclaration }

// DuplicatePathError reports two distinct items claiming one canonical
// path. This is what conflicting cfg-guarded declarations look like from
// a single-configuration parse, and it is fatal rather than silently
// merged.
type DuplicatePathError struct {
	Crate  string
	Path   []string
	First  ids.NodeID
	Second ids.NodeID
}

func (e *DuplicatePathError) Error() string {
	return fmt.Sprintf("%s: canonical path %s claimed by both %s and %s",
		e.Crate, strings.Join(e.Path, "::"), e.First, e.Second)
}

func (e *DuplicatePathError) Unwrap() error { return ErrDuplicatePath }

// RelocationError reports a #[path = "..."] attribute pointing at a file
// outside the discovered set.
type RelocationError struct {
	Crate    string
	FilePath string
	Target   string
}

func (e *RelocationError) Error() string {
	return fmt.Sprintf("%s: #[path = %q] in %s resolves to no discovered file",
		e.Crate, e.Target, e.FilePath)
}

func (e *RelocationError) Unwrap() error { return ErrRelocationTarget }
