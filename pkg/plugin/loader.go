package plugin

import (
	"errors"
	"fmt"
	goplugin "plugin"
)

// Loader resolves plugin binaries into Plugin implementations.
type Loader interface {
	Load(path string) (Plugin, error)
}

// GoPluginLoader uses the Go standard library plugin mechanism to dynamically load modules.
type GoPluginLoader struct{}

// Load opens the shared object and searches for a `Plugin` symbol implementing the Plugin interface.
func (GoPluginLoader) Load(path string) (Plugin, error) {
	if path == "" {
		return nil, errors.New("plugin path cannot be empty")
	}
	so, err := goplugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open plugin %s: %w", path, err)
	}
	symbol, err := so.Lookup("Plugin")
	if err != nil {
		return nil, fmt.Errorf("lookup Plugin symbol in %s: %w", path, err)
	}
	switch p := symbol.(type) {
	case Plugin:
		return p, nil
	case *Plugin:
		if p == nil {
			return nil, fmt.Errorf("plugin symbol in %s is nil", path)
		}
		return *p, nil
	case func() Plugin:
		return p(), nil
	default:
		return nil, fmt.Errorf("plugin symbol in %s must implement plugin.Plugin", path)
	}
}
