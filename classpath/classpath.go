// Package classpath locates and loads classes by name from an ordered list
// of roots: class-file directories, jar archives, .mjb bundles and SQLite
// class databases.
package classpath

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/minijvm/bundle"
	"github.com/chazu/minijvm/classfile"
	"github.com/pkg/errors"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("minijvm.classpath")

// ErrClassNotFound is returned when no root holds the requested class.
var ErrClassNotFound = errors.New("class not found")

// Provider loads classes by name. Names may use either the internal
// (com/example/Main) or the binary (com.example.Main) form.
type Provider interface {
	LoadClass(name string) (*classfile.Class, error)
}

// Root is one search location. Find receives an internal name and returns
// an error satisfying errors.Is(err, ErrClassNotFound) when the root does
// not hold the class.
type Root interface {
	Find(name string) (*classfile.Class, error)
	String() string
}

// ---------------------------------------------------------------------------
// Path: ordered multi-root search
// ---------------------------------------------------------------------------

// Path searches its roots in order and returns the first hit.
type Path struct {
	roots []Root
}

// New creates a Path over roots.
func New(roots ...Root) *Path {
	return &Path{roots: roots}
}

// Split splits a classpath string on the OS list separator, dropping empty
// entries.
func Split(list string) []string {
	var entries []string
	for _, e := range filepath.SplitList(list) {
		if e = strings.TrimSpace(e); e != "" {
			entries = append(entries, e)
		}
	}
	return entries
}

// OpenRoot opens a single classpath entry, choosing the root kind from the
// file extension: .jar and .zip are archives, .mjb is a bundle, .db and
// .sqlite are class databases and anything else is a directory. A missing
// directory is not an error; it holds no classes.
func OpenRoot(entry string) (Root, error) {
	switch strings.ToLower(filepath.Ext(entry)) {
	case ".jar", ".zip":
		return OpenJar(entry)
	case bundle.Extension:
		return OpenBundle(entry)
	case ".db", ".sqlite":
		return OpenSQLite(entry)
	}
	info, err := os.Stat(entry)
	if os.IsNotExist(err) {
		// Dir reports every lookup as a miss.
		log.Warningf("classpath entry %s does not exist", entry)
		return Dir(entry), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "classpath")
	}
	if !info.IsDir() {
		return nil, errors.Errorf("classpath: %s is neither a directory nor a known archive", entry)
	}
	return Dir(entry), nil
}

// Open opens every entry. Roots opened before a failure are closed.
func Open(entries []string) (*Path, error) {
	p := &Path{}
	for _, e := range entries {
		r, err := OpenRoot(e)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.roots = append(p.roots, r)
	}
	return p, nil
}

// Roots returns the roots in search order.
func (p *Path) Roots() []Root {
	return append([]Root(nil), p.roots...)
}

// LoadClass returns the class from the first root holding it. Misses are
// skipped; any other failure, such as a corrupt class file, is returned at
// once.
func (p *Path) LoadClass(name string) (*classfile.Class, error) {
	name = classfile.InternalName(name)
	for _, r := range p.roots {
		c, err := r.Find(name)
		if err == nil {
			if c.Name != name {
				return nil, errors.Errorf("%s: %s holds class %s", r, name, c.Name)
			}
			log.Debugf("loaded %s from %s", name, r)
			return c, nil
		}
		if !errors.Is(err, ErrClassNotFound) {
			return nil, errors.Wrapf(err, "%s: loading %s", r, name)
		}
	}
	return nil, errors.Wrapf(ErrClassNotFound, "%s (searched %d roots)", name, len(p.roots))
}

// Close releases roots holding open files.
func (p *Path) Close() error {
	var first error
	for _, r := range p.roots {
		if c, ok := r.(io.Closer); ok {
			if err := c.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

// ---------------------------------------------------------------------------
// Map: in-memory classes
// ---------------------------------------------------------------------------

// Map is a Root and Provider over classes held in memory, keyed by
// internal name.
type Map map[string]*classfile.Class

// NewMap indexes classes by name.
func NewMap(classes ...*classfile.Class) Map {
	m := make(Map, len(classes))
	for _, c := range classes {
		m[c.Name] = c
	}
	return m
}

func (m Map) Find(name string) (*classfile.Class, error) {
	c, ok := m[name]
	if !ok {
		return nil, errors.Wrap(ErrClassNotFound, name)
	}
	return c, nil
}

func (m Map) LoadClass(name string) (*classfile.Class, error) {
	return m.Find(classfile.InternalName(name))
}

func (m Map) String() string {
	return "memory"
}
