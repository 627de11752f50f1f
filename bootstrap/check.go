package bootstrap

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/artpar/adminkit/config"
	"github.com/artpar/adminkit/core/registry"
	"github.com/artpar/adminkit/core/schema"
	"github.com/artpar/adminkit/plugins/cms"
	"github.com/rs/zerolog"
)

// FileResult is the outcome of checking one declaration file.
type FileResult struct {
	Path     string
	Resource string
	Err      error
}

// CheckReport collects per-file results and registry-level errors.
type CheckReport struct {
	Files    []FileResult
	Registry error
}

// OK reports whether every file compiled and the registry accepted them.
func (r *CheckReport) OK() bool {
	for _, f := range r.Files {
		if f.Err != nil {
			return false
		}
	}
	return r.Registry == nil
}

// CheckResources parses and compiles every declaration under dir without
// running plugins. Unlike LoadResources it does not stop at the first bad
// file.
func CheckResources(dir string) (*CheckReport, error) {
	report := &CheckReport{}
	if dir == "" {
		return report, nil
	}

	var specs []*schema.ResourceSpec
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !(strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml")) {
			return nil
		}

		result := FileResult{Path: path}
		spec, err := schema.ParseFile(path)
		if err == nil {
			result.Resource = spec.Name()
			if _, err = spec.Compile(); err == nil {
				specs = append(specs, spec)
			}
		}
		result.Err = err
		report.Files = append(report.Files, result)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}

	reg := registry.New()
	if err := reg.Add(specs...); err != nil {
		report.Registry = err
		return report, nil
	}
	report.Registry = reg.Compile()
	return report, nil
}

// Inspect runs the full plugin orchestration against a throwaway in-memory
// store and returns the frozen registry.
func Inspect(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*registry.Registry, error) {
	inspectCfg := *cfg
	inspectCfg.Database.DSN = ":memory:"
	inspectCfg.Plugins.Extra = withAssetsDir(cfg.Plugins.Extra)

	app, err := New(ctx, &inspectCfg, logger, opts)
	if err != nil {
		return nil, err
	}
	defer app.Store.Close()
	return app.Registry, nil
}

// withAssetsDir points the cms plugin at a scratch directory unless the
// configuration already names one.
func withAssetsDir(extra map[string]map[string]any) map[string]map[string]any {
	out := make(map[string]map[string]any, len(extra)+1)
	for id, bag := range extra {
		out[id] = bag
	}
	if _, ok := out[cms.ID]["assets_dir"]; !ok {
		bag := map[string]any{"assets_dir": filepath.Join(os.TempDir(), "adminkit-inspect")}
		for k, v := range out[cms.ID] {
			bag[k] = v
		}
		out[cms.ID] = bag
	}
	return out
}
