// Package manifest handles minijvm.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the project configuration file.
const FileName = "minijvm.toml"

// Manifest represents a minijvm.toml project configuration.
type Manifest struct {
	Project   Project   `toml:"project"`
	Classpath Classpath `toml:"classpath"`
	Run       Run       `toml:"run"`
	Log       Log       `toml:"log"`

	// Dir is the directory containing the minijvm.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name string `toml:"name"`
	Main string `toml:"main"` // entry class, dotted or internal form
}

// Classpath configures where classes are loaded from.
type Classpath struct {
	Roots     []string `toml:"roots"`
	CacheSize int      `toml:"cache-size"`
}

// Run configures the interpreter.
type Run struct {
	MaxDepth int  `toml:"max-depth"`
	Trace    bool `toml:"trace"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no minijvm.toml exists:
// classes are searched in dir itself.
func Default(dir string) (*Manifest, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	m := &Manifest{Dir: abs}
	m.applyDefaults()
	return m, nil
}

// Load parses a minijvm.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if m.Classpath.CacheSize < 0 || m.Run.MaxDepth < 0 {
		return nil, fmt.Errorf("%s: cache-size and max-depth must not be negative", path)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	m.applyDefaults()
	return &m, nil
}

func (m *Manifest) applyDefaults() {
	if len(m.Classpath.Roots) == 0 {
		m.Classpath.Roots = []string{"."}
	}
}

// FindAndLoad walks up from startDir to find a minijvm.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// RootPaths returns the classpath roots resolved against the manifest
// directory. Absolute roots are kept as written.
func (m *Manifest) RootPaths() []string {
	var paths []string
	for _, r := range m.Classpath.Roots {
		if filepath.IsAbs(r) {
			paths = append(paths, r)
			continue
		}
		paths = append(paths, filepath.Join(m.Dir, r))
	}
	return paths
}

// LogFile returns the log file path resolved against the manifest
// directory, or nil to log to stderr.
func (m *Manifest) LogFile() *string {
	if m.Log.File == "" {
		return nil
	}
	path := m.Log.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(m.Dir, path)
	}
	return &path
}
