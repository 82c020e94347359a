// Package bundle stores decoded classes in a single CBOR file (.mjb), so a
// program can be shipped and loaded without re-parsing class files.
package bundle

import (
	"fmt"
	"os"
	"sort"

	"github.com/chazu/minijvm/classfile"
	"github.com/fxamacker/cbor/v2"
)

// Extension is the file extension of bundles.
const Extension = ".mjb"

// FormatVersion is incremented when the encoding of classfile types changes.
const FormatVersion = 1

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bundle: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Bundle is the on-disk content of a .mjb file.
type Bundle struct {
	Version int                `cbor:"1,keyasint"`
	Main    string             `cbor:"2,keyasint,omitempty"` // entry class, internal form
	Classes []*classfile.Class `cbor:"3,keyasint"`
}

// New creates a bundle of classes sorted by name. main may be empty.
func New(main string, classes []*classfile.Class) *Bundle {
	sorted := append([]*classfile.Class(nil), classes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	if main != "" {
		main = classfile.InternalName(main)
	}
	return &Bundle{Version: FormatVersion, Main: main, Classes: sorted}
}

// Class returns the class with the given internal name.
func (b *Bundle) Class(name string) (*classfile.Class, bool) {
	i := sort.Search(len(b.Classes), func(i int) bool { return b.Classes[i].Name >= name })
	if i < len(b.Classes) && b.Classes[i].Name == name {
		return b.Classes[i], true
	}
	return nil, false
}

// Names returns the names of the bundled classes in order.
func (b *Bundle) Names() []string {
	names := make([]string, len(b.Classes))
	for i, c := range b.Classes {
		names[i] = c.Name
	}
	return names
}

// Marshal serializes a bundle to CBOR bytes.
func Marshal(b *Bundle) ([]byte, error) {
	return cborEncMode.Marshal(b)
}

// Unmarshal deserializes a bundle from CBOR bytes.
func Unmarshal(data []byte) (*Bundle, error) {
	var b Bundle
	if err := cbor.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("bundle: unmarshal: %w", err)
	}
	if b.Version != FormatVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrVersion, b.Version, FormatVersion)
	}
	// Lookups rely on the order New establishes.
	sort.Slice(b.Classes, func(i, j int) bool { return b.Classes[i].Name < b.Classes[j].Name })
	return &b, nil
}

// MarshalClass serializes one class to CBOR bytes.
func MarshalClass(c *classfile.Class) ([]byte, error) {
	return cborEncMode.Marshal(c)
}

// UnmarshalClass deserializes one class from CBOR bytes.
func UnmarshalClass(data []byte) (*classfile.Class, error) {
	var c classfile.Class
	if err := cbor.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("bundle: unmarshal class: %w", err)
	}
	return &c, nil
}

// Write saves b to path.
func Write(path string, b *Bundle) error {
	data, err := Marshal(b)
	if err != nil {
		return fmt.Errorf("bundle: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Read loads a bundle from path.
func Read(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	b, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}
