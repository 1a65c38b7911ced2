package registry

import (
	"context"
	"fmt"

	"github.com/specialistvlad/babago/internal/ctxlog"
	"github.com/specialistvlad/babago/internal/manifest"
)

// LoadManifests reads the manifests at path, a file or a directory, and
// registers what they declare. It returns the merged manifest so callers can
// act on its fetch settings.
func (r *Registry) LoadManifests(ctx context.Context, path string) (*manifest.Manifest, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Registry loading manifests...", "path", path)

	m, err := manifest.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("loading manifests from %s: %w", path, err)
	}
	r.AddManifest(ctx, m)

	logger.Info("Registry loaded successfully.", "templates", len(r.Names()))
	return m, nil
}

// AddManifest registers the templates of m and their requirements. Templates
// already registered under the same name are kept.
func (r *Registry) AddManifest(ctx context.Context, m *manifest.Manifest) {
	logger := ctxlog.FromContext(ctx)
	deps := make(map[string]Requirements, len(m.Templates))
	for _, t := range m.Templates {
		if !r.Add(t.Name, t.Source) {
			logger.Warn("Template already registered, keeping the existing one.", "template", t.Name)
		}
		if len(t.Requires)+len(t.Scripts)+len(t.Styles) > 0 {
			deps[t.Name] = Requirements{Templates: t.Requires, Scripts: t.Scripts, Styles: t.Styles}
		}
	}
	r.SetDependencies(deps)
}
