package classpath

import (
	"database/sql"
	"os"

	"github.com/chazu/minijvm/bundle"
	"github.com/chazu/minijvm/classfile"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const createClassesTable = `CREATE TABLE IF NOT EXISTS classes (
	name TEXT PRIMARY KEY,
	data BLOB NOT NULL
)`

// SQLite is a root serving classes from a database with a classes table.
// Each row holds the CBOR encoding of one decoded class.
type SQLite struct {
	path string
	db   *sql.DB
}

// OpenSQLite opens an existing class database.
func OpenSQLite(path string) (*SQLite, error) {
	// sql.Open would create a missing file.
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrap(err, "opening class database")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening class database %s", path)
	}
	return &SQLite{path: path, db: db}, nil
}

func (s *SQLite) Find(name string) (*classfile.Class, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM classes WHERE name = ?", name).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrap(ErrClassNotFound, name)
		}
		return nil, errors.Wrapf(err, "querying %s", name)
	}
	return bundle.UnmarshalClass(data)
}

// Names returns the stored class names in order.
func (s *SQLite) Names() ([]string, error) {
	rows, err := s.db.Query("SELECT name FROM classes ORDER BY name")
	if err != nil {
		return nil, errors.Wrap(err, "listing classes")
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) String() string {
	return s.path
}

// WriteSQLite stores classes in the database at path, creating it if
// needed. Existing rows with the same names are replaced.
func WriteSQLite(path string, classes []*classfile.Class) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return errors.Wrapf(err, "opening class database %s", path)
	}
	defer db.Close()

	if _, err := db.Exec(createClassesTable); err != nil {
		return errors.Wrap(err, "creating table")
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	for _, c := range classes {
		data, err := bundle.MarshalClass(c)
		if err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "encoding %s", c.Name)
		}
		if _, err := tx.Exec("INSERT OR REPLACE INTO classes (name, data) VALUES (?, ?)", c.Name, data); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "storing %s", c.Name)
		}
	}
	return tx.Commit()
}
