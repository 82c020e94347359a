package classpath

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/minijvm/bundle"
	"github.com/chazu/minijvm/classfile"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func utilClass() *classfile.Class {
	b := classfile.NewClassBuilder("com/example/Util")
	b.Method("one", "()I", 0).
		Emit(classfile.OpIconst1).
		Emit(classfile.OpIreturn)
	return b.Build()
}

func mainClass() *classfile.Class {
	b := classfile.NewClassBuilder("com/example/Main")
	one := b.MethodRef("com/example/Util", "one", "()I")
	out := b.FieldRef("java/lang/System", "out", "Ljava/io/PrintStream;")
	b.Method("main", "([Ljava/lang/String;)V", 1).
		EmitOperand(classfile.OpGetstatic, out).
		EmitOperand(classfile.OpInvokestatic, one).
		Emit(classfile.OpPop).
		Emit(classfile.OpPop).
		Emit(classfile.OpReturn)
	return b.Build()
}

func encode(t *testing.T, c *classfile.Class) []byte {
	t.Helper()
	data, err := classfile.Encode(c)
	require.NoError(t, err)
	return data
}

func writeClassDir(t *testing.T, classes ...*classfile.Class) string {
	t.Helper()
	dir := t.TempDir()
	for _, c := range classes {
		path := filepath.Join(dir, filepath.FromSlash(c.Name)+".class")
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, encode(t, c), 0644))
	}
	return dir
}

func writeJar(t *testing.T, classes ...*classfile.Class) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.jar")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("META-INF/MANIFEST.MF")
	require.NoError(t, err)
	_, err = w.Write([]byte("Manifest-Version: 1.0\n"))
	require.NoError(t, err)
	for _, c := range classes {
		w, err := zw.Create(c.Name + ".class")
		require.NoError(t, err)
		_, err = w.Write(encode(t, c))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestDirRoot(t *testing.T) {
	dir := writeClassDir(t, mainClass(), utilClass())
	p := New(Dir(dir))

	c, err := p.LoadClass("com.example.Main")
	require.NoError(t, err)
	assert.Equal(t, "com/example/Main", c.Name)
	_, ok := c.Method("main")
	assert.True(t, ok)

	_, err = p.LoadClass("com/example/Missing")
	assert.True(t, errors.Is(err, ErrClassNotFound), "got %v", err)
}

func TestDirRootReportsCorruptClass(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Bad.class"), []byte{0xCA, 0xFE}, 0644))

	_, err := New(Dir(dir)).LoadClass("Bad")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrClassNotFound))
	assert.True(t, errors.Is(err, classfile.ErrTruncated), "got %v", err)
}

func TestNameMismatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Other.class"), encode(t, utilClass()), 0644))

	_, err := New(Dir(dir)).LoadClass("Other")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "holds class com/example/Util")
}

func TestJarRoot(t *testing.T) {
	j, err := OpenJar(writeJar(t, mainClass(), utilClass()))
	require.NoError(t, err)
	defer j.Close()
	assert.Equal(t, 2, j.Len())

	c, err := j.Find("com/example/Util")
	require.NoError(t, err)
	m, ok := c.Method("one")
	require.True(t, ok)
	assert.Len(t, m.Instructions, 2)

	_, err = j.Find("META-INF/MANIFEST")
	assert.True(t, errors.Is(err, ErrClassNotFound))
}

func TestSearchOrder(t *testing.T) {
	shadow := classfile.NewClassBuilder("com/example/Util")
	shadow.Method("two", "()I", 0).
		Emit(classfile.OpIconst2).
		Emit(classfile.OpIreturn)

	first := writeClassDir(t, shadow.Build())
	second := writeClassDir(t, utilClass(), mainClass())

	p := New(Dir(first), Dir(second))
	c, err := p.LoadClass("com/example/Util")
	require.NoError(t, err)
	_, ok := c.Method("two")
	assert.True(t, ok, "first root wins")

	_, err = p.LoadClass("com/example/Main")
	assert.NoError(t, err, "later roots are searched on a miss")
}

func TestOpenChoosesRootByExtension(t *testing.T) {
	dir := writeClassDir(t, mainClass())
	jar := writeJar(t, utilClass())

	mjb := filepath.Join(t.TempDir(), "lib"+bundle.Extension)
	extra := classfile.NewClassBuilder("com/example/Extra")
	extra.Method("nop", "()V", 0).Emit(classfile.OpReturn)
	require.NoError(t, bundle.Write(mjb, bundle.New("", []*classfile.Class{extra.Build()})))

	db := filepath.Join(t.TempDir(), "classes.db")
	stored := classfile.NewClassBuilder("com/example/Stored")
	stored.Method("nop", "()V", 0).Emit(classfile.OpReturn)
	require.NoError(t, WriteSQLite(db, []*classfile.Class{stored.Build()}))

	p, err := Open(Split(dir + string(os.PathListSeparator) + jar + string(os.PathListSeparator) +
		mjb + string(os.PathListSeparator) + db))
	require.NoError(t, err)
	defer p.Close()

	roots := p.Roots()
	require.Len(t, roots, 4)
	assert.IsType(t, Dir(""), roots[0])
	assert.IsType(t, &Jar{}, roots[1])
	assert.IsType(t, &Bundle{}, roots[2])
	assert.IsType(t, &SQLite{}, roots[3])

	for _, name := range []string{"com.example.Main", "com.example.Util", "com.example.Extra", "com.example.Stored"} {
		_, err := p.LoadClass(name)
		assert.NoError(t, err, name)
	}
}

func TestOpenSkipsMissingDirectory(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist")
	dir := writeClassDir(t, utilClass())

	p, err := Open(Split(missing + string(os.PathListSeparator) + dir))
	require.NoError(t, err)
	defer p.Close()
	require.Len(t, p.Roots(), 2)

	c, err := p.LoadClass("com/example/Util")
	require.NoError(t, err)
	assert.Equal(t, "com/example/Util", c.Name)

	_, err = New(Dir(missing)).LoadClass("com/example/Util")
	assert.True(t, errors.Is(err, ErrClassNotFound), "got %v", err)
}

func TestOpenFailures(t *testing.T) {
	_, err := Open([]string{filepath.Join(t.TempDir(), "missing.jar")})
	assert.True(t, errors.Is(err, os.ErrNotExist), "got %v", err)

	_, err = Open([]string{filepath.Join(t.TempDir(), "missing.db")})
	assert.True(t, errors.Is(err, os.ErrNotExist), "database files are not created on open")

	file := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	_, err = Open([]string{file})
	assert.Error(t, err)
}

func TestSplit(t *testing.T) {
	sep := string(os.PathListSeparator)
	assert.Equal(t, []string{"a", "b.jar"}, Split("a"+sep+sep+" b.jar "))
	assert.Nil(t, Split(""))
}

func TestSQLiteRoot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classes.sqlite")
	require.NoError(t, WriteSQLite(path, []*classfile.Class{mainClass(), utilClass()}))
	// Rewriting replaces rows instead of failing on the primary key.
	require.NoError(t, WriteSQLite(path, []*classfile.Class{utilClass()}))

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	names, err := s.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"com/example/Main", "com/example/Util"}, names)

	c, err := s.Find("com/example/Util")
	require.NoError(t, err)
	assert.Equal(t, utilClass().Methods[0].Instructions, c.Methods[0].Instructions)

	_, err = s.Find("com/example/Missing")
	assert.True(t, errors.Is(err, ErrClassNotFound))
}

func TestMap(t *testing.T) {
	m := NewMap(mainClass(), utilClass())
	c, err := m.LoadClass("com.example.Util")
	require.NoError(t, err)
	assert.Equal(t, "com/example/Util", c.Name)

	_, err = m.LoadClass("Nope")
	assert.True(t, errors.Is(err, ErrClassNotFound))
}

type countingProvider struct {
	Map
	loads int
}

func (c *countingProvider) LoadClass(name string) (*classfile.Class, error) {
	c.loads++
	return c.Map.LoadClass(name)
}

func TestCached(t *testing.T) {
	next := &countingProvider{Map: NewMap(mainClass(), utilClass())}
	c, err := NewCached(next, 1)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := c.LoadClass("com/example/Util")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, next.loads)
	assert.Equal(t, CacheStats{Hits: 2, Misses: 1, Len: 1}, c.Stats())

	// Size 1 evicts Util.
	_, err = c.LoadClass("com.example.Main")
	require.NoError(t, err)
	_, err = c.LoadClass("com/example/Util")
	require.NoError(t, err)
	assert.Equal(t, 3, next.loads)

	_, err = c.LoadClass("Missing")
	assert.True(t, errors.Is(err, ErrClassNotFound))
	_, err = c.LoadClass("Missing")
	assert.Error(t, err)
	assert.Equal(t, 5, next.loads, "failures are not cached")

	c.Purge()
	assert.Equal(t, 0, c.Stats().Len)
}

func TestClosure(t *testing.T) {
	classes, err := Closure(NewMap(mainClass(), utilClass()), "com.example.Main")
	require.NoError(t, err)
	require.Len(t, classes, 2)
	assert.Equal(t, "com/example/Main", classes[0].Name)
	assert.Equal(t, "com/example/Util", classes[1].Name)

	_, err = Closure(NewMap(utilClass()), "com/example/Main")
	assert.True(t, errors.Is(err, ErrClassNotFound), "roots must exist")
}
