package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoConfig is returned when none of the candidate files exist.
var ErrNoConfig = errors.New("no tunnel configuration found")

// Loaded is a merged configuration plus the files it came from, in
// precedence order (lowest first).
type Loaded struct {
	Config Config
	Paths  []string
}

// LayerError reports validation problems found in the loaded files.
type LayerError struct {
	Path     string
	Problems []string
}

func (e *LayerError) Error() string {
	return fmt.Sprintf("problem loading %s:\n%s", e.Path, strings.Join(e.Problems, "\n"))
}

// Load reads an explicit file when path is set, otherwise the global file
// followed by the local one. base supplies the lowest-precedence defaults
// (for example a default user taken from the environment).
func Load(path string, base Config) (Loaded, error) {
	if path != "" {
		return loadLayers(base, path)
	}

	global, err := GlobalPath()
	if err != nil {
		return Loaded{}, err
	}
	local, err := LocalPath()
	if err != nil {
		return Loaded{}, err
	}
	if global == local {
		return loadLayers(base, global)
	}
	return loadLayers(base, global, local)
}

func loadLayers(base Config, paths ...string) (Loaded, error) {
	layers := []Config{base}
	var found []string

	for _, p := range paths {
		store, err := NewStore(p)
		if err != nil {
			return Loaded{}, err
		}
		if !store.Exists() {
			continue
		}
		cfg, err := store.Load()
		if err != nil {
			return Loaded{}, err
		}
		layers = append(layers, cfg)
		found = append(found, store.Path())
	}

	if len(found) == 0 {
		return Loaded{}, fmt.Errorf("%w (looked in %s)", ErrNoConfig, strings.Join(paths, ", "))
	}

	// Layers are validated together: a local group may reference a tunnel
	// defined globally.
	merged := Merge(layers...)
	merged.normalize()
	if problems := merged.Problems(); len(problems) > 0 {
		return Loaded{}, &LayerError{Path: strings.Join(found, " + "), Problems: problems}
	}
	return Loaded{Config: merged, Paths: found}, nil
}
