package bundle

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const manifestGlob = "**/manifest.{json,yaml,yml,toml}"

// Find returns the bundle directory under root: the directory holding the
// shallowest manifest, ties broken by path.
func Find(root string) (string, error) {
	matches, err := doublestar.Glob(os.DirFS(root), manifestGlob)
	if err != nil {
		return "", fmt.Errorf("manifest search failed: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoManifest, root)
	}

	sort.Slice(matches, func(i, j int) bool {
		di, dj := strings.Count(matches[i], "/"), strings.Count(matches[j], "/")
		if di != dj {
			return di < dj
		}
		return matches[i] < matches[j]
	})
	return filepath.Join(root, filepath.FromSlash(path.Dir(matches[0]))), nil
}
