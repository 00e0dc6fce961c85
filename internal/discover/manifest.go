package discover

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// manifest is the slice of Cargo.toml this system needs: the package name
// and version that seed the crate namespace.
type manifest struct {
	Package struct {
		Name    string `toml:"name"`
		Version string `toml:"version"`
	} `toml:"package"`
}

func readManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	var m manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	if m.Package.Name == "" {
		return nil, fmt.Errorf("manifest %s: missing package.name", path)
	}
	if m.Package.Version == "" {
		return nil, fmt.Errorf("manifest %s: missing package.version", path)
	}
	return &m, nil
}
