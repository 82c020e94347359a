package classpath

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"

	"github.com/chazu/minijvm/bundle"
	"github.com/chazu/minijvm/classfile"
	"github.com/pkg/errors"
)

// Dir is a root holding class files laid out by package:
// com/example/Main is read from <dir>/com/example/Main.class.
type Dir string

func (d Dir) Find(name string) (*classfile.Class, error) {
	path := filepath.Join(string(d), filepath.FromSlash(name)+".class")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrClassNotFound, path)
		}
		return nil, err
	}
	c, err := classfile.Parse(data)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return c, nil
}

func (d Dir) String() string {
	return string(d)
}

// ---------------------------------------------------------------------------
// Jar
// ---------------------------------------------------------------------------

// Jar is a root reading class files from a jar or zip archive.
type Jar struct {
	path    string
	archive *zip.ReadCloser
	entries map[string]*zip.File
}

// OpenJar opens an archive and indexes its class entries.
func OpenJar(path string) (*Jar, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening jar %s", path)
	}
	j := &Jar{path: path, archive: archive, entries: make(map[string]*zip.File)}
	for _, f := range archive.File {
		if filepath.Ext(f.Name) == ".class" {
			j.entries[f.Name] = f
		}
	}
	return j, nil
}

func (j *Jar) Find(name string) (*classfile.Class, error) {
	f, ok := j.entries[name+".class"]
	if !ok {
		return nil, errors.Wrap(ErrClassNotFound, name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", f.Name)
	}
	c, err := classfile.Parse(data)
	if err != nil {
		return nil, errors.Wrap(err, f.Name)
	}
	return c, nil
}

// Len returns the number of class entries.
func (j *Jar) Len() int {
	return len(j.entries)
}

func (j *Jar) Close() error {
	return j.archive.Close()
}

func (j *Jar) String() string {
	return j.path
}

// ---------------------------------------------------------------------------
// Bundle
// ---------------------------------------------------------------------------

// Bundle is a root serving the classes of a .mjb file.
type Bundle struct {
	path   string
	bundle *bundle.Bundle
}

// OpenBundle reads a bundle file into memory.
func OpenBundle(path string) (*Bundle, error) {
	b, err := bundle.Read(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening bundle")
	}
	return &Bundle{path: path, bundle: b}, nil
}

func (b *Bundle) Find(name string) (*classfile.Class, error) {
	c, ok := b.bundle.Class(name)
	if !ok {
		return nil, errors.Wrap(ErrClassNotFound, name)
	}
	return c, nil
}

// Main returns the entry class recorded in the bundle, if any.
func (b *Bundle) Main() string {
	return b.bundle.Main
}

func (b *Bundle) String() string {
	return b.path
}
