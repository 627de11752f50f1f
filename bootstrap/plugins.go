package bootstrap

import (
	"fmt"
	"sort"
	"strings"

	"github.com/artpar/adminkit/adapters/hasher"
	"github.com/artpar/adminkit/config"
	"github.com/artpar/adminkit/core/plugin"
	"github.com/artpar/adminkit/core/storage"
	"github.com/artpar/adminkit/plugins/auth"
	"github.com/artpar/adminkit/plugins/cms"
)

// Deps are the collaborators built-in plugins may need.
type Deps struct {
	Store  storage.Store
	Hasher hasher.Hasher
}

// Factory constructs a built-in plugin.
type Factory func(Deps) *plugin.Spec

var builtins = map[string]Factory{
	auth.ID: func(d Deps) *plugin.Spec { return auth.New(d.Store, d.Hasher) },
	cms.ID:  func(d Deps) *plugin.Spec { return cms.New(d.Store) },
}

// UnknownPluginError is returned when the configuration enables a plugin id
// with no built-in implementation.
type UnknownPluginError struct {
	ID string
}

func (e *UnknownPluginError) Error() string {
	return fmt.Sprintf("unknown plugin %q (available: %s)", e.ID, strings.Join(BuiltinIDs(), ", "))
}

// BuiltinIDs returns the ids of the built-in plugins.
func BuiltinIDs() []string {
	ids := make([]string, 0, len(builtins))
	for id := range builtins {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Plugins builds the enabled built-in plugins in configured order, each
// with its extra bag.
func Plugins(cfg config.PluginsConfig, deps Deps) ([]*plugin.Spec, error) {
	specs := make([]*plugin.Spec, 0, len(cfg.Enabled))
	for _, id := range cfg.Enabled {
		factory, ok := builtins[id]
		if !ok {
			return nil, &UnknownPluginError{ID: id}
		}
		spec := factory(deps)
		if extra := cfg.Extra[id]; len(extra) > 0 {
			spec.Extra(extra)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
