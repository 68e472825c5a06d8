// SPDX-License-Identifier: MPL-2.0

// Package registry loads and validates the declarative app registry: the
// TOML file listing every external application uppies manages, each with its
// local-version, remote-version, and update scripts.
package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/bradcypert/uppies/internal/script"
	"github.com/bradcypert/uppies/internal/version"
)

var (
	// ErrEmptyAppName indicates an app record with a missing or empty name.
	ErrEmptyAppName = errors.New("app name must not be empty")

	// ErrDuplicateAppName indicates two app records sharing a name.
	ErrDuplicateAppName = errors.New("duplicate app name")

	// ErrScriptRefAmbiguous indicates a script section defining both a file
	// path and an inline command, or neither.
	ErrScriptRefAmbiguous = errors.New("script section must set exactly one of 'script' or 'inline'")

	// ErrScriptNotFound indicates a configured script path that does not exist.
	ErrScriptNotFound = errors.New("script not found")

	// ErrScriptNotFile indicates a configured script path that is not a
	// regular file.
	ErrScriptNotFile = errors.New("script path is not a regular file")

	// ErrScriptNotExecutable indicates a script file without any execute bit.
	// Deliberately distinct from ErrScriptNotFound so the user knows the fix
	// is chmod, not a typo.
	ErrScriptNotExecutable = errors.New("script is not executable (chmod +x)")

	//nolint:gochecknoglobals // Test seam and --config flag override.
	pathOverride string
)

type (
	// ScriptRef points at one of an app's scripts: either an executable file
	// on disk or an inline shell command. Exactly one of the two must be set.
	ScriptRef struct {
		Script string `toml:"script,omitempty"`
		Inline string `toml:"inline,omitempty"`
	}

	// App is one registered external application with its three scripts.
	App struct {
		Name        string              `toml:"name"`
		Description string              `toml:"description,omitempty"`
		Compare     version.CompareMode `toml:"compare,omitempty"`
		Runtime     script.Runtime      `toml:"runtime,omitempty"`
		Local       ScriptRef           `toml:"local"`
		Remote      ScriptRef           `toml:"remote"`
		Update      ScriptRef           `toml:"update"`
	}

	// Registry is the full decoded app registry, in declaration order.
	Registry struct {
		Apps []App `toml:"app"`
	}
)

// Command returns the shell command a ScriptRef resolves to: the file path
// for file refs, the inline text otherwise.
func (r ScriptRef) Command() string {
	if r.Script != "" {
		return r.Script
	}
	return r.Inline
}

// SetPathOverride forces Path to return p, for the --config flag and tests.
// Pass an empty string to restore the default resolution.
func SetPathOverride(p string) {
	pathOverride = p
}

// Path returns the location of the app registry. The default is
// ~/.local/share/uppies/apps.toml, matching where the install script seeds
// an example registry.
func Path() (string, error) {
	if pathOverride != "" {
		return pathOverride, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "uppies", "apps.toml"), nil
}

// Load reads and decodes the registry at path. The result is not yet
// validated; call Validate before acting on it.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading registry %s: %w", path, err)
	}

	var reg Registry
	if err := toml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parsing registry %s: %w", path, err)
	}

	reg.applyDefaults()
	return &reg, nil
}

// applyDefaults fills the optional enum fields on each app.
func (r *Registry) applyDefaults() {
	for i := range r.Apps {
		if r.Apps[i].Compare == "" {
			r.Apps[i].Compare = version.CompareString
		}
		if r.Apps[i].Runtime == "" {
			r.Apps[i].Runtime = script.RuntimeNative
		}
	}
}

// Validate checks every app record: non-empty unique names, recognized enum
// values, and resolvable scripts. File-backed scripts must exist, be regular
// files, and carry an execute bit; inline scripts must parse as POSIX shell.
// Validation runs once at load time and is not repeated per invocation.
func (r *Registry) Validate() error {
	seen := make(map[string]struct{}, len(r.Apps))

	for _, app := range r.Apps {
		if app.Name == "" {
			return ErrEmptyAppName
		}
		if _, dup := seen[app.Name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateAppName, app.Name)
		}
		seen[app.Name] = struct{}{}

		if ok, errs := app.Compare.IsValid(); !ok {
			return fmt.Errorf("app %q: %w", app.Name, errs[0])
		}
		if ok, errs := app.Runtime.IsValid(); !ok {
			return fmt.Errorf("app %q: %w", app.Name, errs[0])
		}

		for _, section := range []struct {
			name string
			ref  ScriptRef
		}{
			{"local", app.Local},
			{"remote", app.Remote},
			{"update", app.Update},
		} {
			if err := validateScriptRef(section.ref); err != nil {
				return fmt.Errorf("app %q, %s script: %w", app.Name, section.name, err)
			}
		}
	}

	return nil
}

// Find returns the app with the given name, or false when no record matches.
func (r *Registry) Find(name string) (App, bool) {
	for _, app := range r.Apps {
		if app.Name == name {
			return app, true
		}
	}
	return App{}, false
}

func validateScriptRef(ref ScriptRef) error {
	switch {
	case ref.Script != "" && ref.Inline != "":
		return ErrScriptRefAmbiguous
	case ref.Script == "" && ref.Inline == "":
		return ErrScriptRefAmbiguous
	case ref.Inline != "":
		if err := script.ValidateSyntax(ref.Inline); err != nil {
			return fmt.Errorf("inline script: %w", err)
		}
		return nil
	}

	info, err := os.Stat(ref.Script)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrScriptNotFound, ref.Script)
		}
		return fmt.Errorf("stat %s: %w", ref.Script, err)
	}

	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s", ErrScriptNotFile, ref.Script)
	}
	if info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("%w: %s", ErrScriptNotExecutable, ref.Script)
	}

	return nil
}
