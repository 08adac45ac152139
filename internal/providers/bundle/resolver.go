package bundle

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/GriffinCanCode/widgetkit/internal/shared/types"
)

// Resolver loads a bundle from a URL or a local path. Relative paths are
// taken from Root.
type Resolver struct {
	Root    string
	Fetcher *Fetcher
}

// Load resolves path and applies the settings overrides
func (r *Resolver) Load(ctx context.Context, path string, settings types.Settings) (*Bundle, error) {
	if isURL(path) && r.Fetcher != nil {
		b, err := r.Fetcher.Fetch(ctx, path)
		if err != nil {
			return nil, err
		}
		return b.WithSettings(settings), nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir := path
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(r.Root, dir)
	}
	found, err := Find(dir)
	if err != nil {
		return nil, err
	}
	return LoadDir(found, settings)
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
