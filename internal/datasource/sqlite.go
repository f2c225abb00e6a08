package datasource

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/sheetview/pkg/debug"
	"github.com/vanderheijden86/sheetview/pkg/model"
)

// Snapshot schema. Each assembly row stores its list or tree model as JSON;
// position preserves document order.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS viewsheet (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS assemblies (
	name       TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	position   INTEGER NOT NULL,
	model      TEXT NOT NULL,
	updated_at INTEGER NOT NULL DEFAULT 0
);
`

// SQLiteReader provides read access to a viewsheet snapshot database
type SQLiteReader struct {
	db   *sql.DB
	path string
}

// NewSQLiteReader opens a SQLite snapshot for reading
func NewSQLiteReader(source DataSource) (*SQLiteReader, error) {
	if source.Type != SourceTypeSQLite {
		return nil, fmt.Errorf("source is not SQLite: %s", source.Type)
	}
	if _, err := os.Stat(source.Path); err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", source.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA cache_size = -16000",
		"PRAGMA temp_store = MEMORY",
	} {
		if _, err := db.Exec(pragma); err != nil {
			debug.Log("sqlite %s: %s: %v", source.Path, pragma, err)
		}
	}

	return &SQLiteReader{db: db, path: source.Path}, nil
}

// Close closes the database connection
func (r *SQLiteReader) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// LoadViewsheet reads every assembly in document order.
func (r *SQLiteReader) LoadViewsheet() (*model.Viewsheet, error) {
	vs := &model.Viewsheet{Name: r.viewsheetName()}

	rows, err := r.db.Query(`SELECT name, kind, model FROM assemblies ORDER BY position, name`)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, kind, body string
		if err := rows.Scan(&name, &kind, &body); err != nil {
			return nil, fmt.Errorf("scanning assembly: %w", err)
		}
		a, err := decodeRow(kind, body)
		if err != nil {
			return nil, fmt.Errorf("assembly %q: %w", name, err)
		}
		vs.Assemblies = append(vs.Assemblies, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assemblies: %w", err)
	}
	return vs, nil
}

// LoadAssembly reads one assembly by name.
func (r *SQLiteReader) LoadAssembly(name string) (*model.Assembly, error) {
	var kind, body string
	err := r.db.QueryRow(`SELECT kind, model FROM assemblies WHERE name = ?`, name).Scan(&kind, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("assembly not found: %s", name)
	}
	if err != nil {
		return nil, err
	}
	return decodeRow(kind, body)
}

// CountAssemblies returns the number of stored assemblies
func (r *SQLiteReader) CountAssemblies() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM assemblies`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// GetLastModified returns the most recent assembly update time
func (r *SQLiteReader) GetLastModified() (time.Time, error) {
	var updatedAt sql.NullInt64
	if err := r.db.QueryRow(`SELECT MAX(updated_at) FROM assemblies`).Scan(&updatedAt); err != nil {
		return time.Time{}, err
	}
	if !updatedAt.Valid || updatedAt.Int64 == 0 {
		return time.Time{}, nil
	}
	return time.UnixMilli(updatedAt.Int64), nil
}

func (r *SQLiteReader) viewsheetName() string {
	var name string
	if err := r.db.QueryRow(`SELECT value FROM viewsheet WHERE key = 'name'`).Scan(&name); err != nil {
		return ""
	}
	return name
}

// decodeRow rebuilds the tagged assembly envelope around a stored model.
func decodeRow(kind, body string) (*model.Assembly, error) {
	k := model.AssemblyKind(kind)
	if !k.IsValid() {
		return nil, fmt.Errorf("invalid assembly kind: %q", kind)
	}
	envelope, err := json.Marshal(map[string]any{
		"kind":    k,
		string(k): json.RawMessage(body),
	})
	if err != nil {
		return nil, err
	}
	return model.DecodeAssembly(envelope)
}

// WriteSQLite stores vs as a snapshot database at path, replacing any
// existing assemblies.
func WriteSQLite(path string, vs *model.Viewsheet, updatedAt time.Time) error {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path))
	if err != nil {
		return fmt.Errorf("cannot open database: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.Exec(`DELETE FROM assemblies`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO viewsheet(key, value) VALUES ('name', ?)`, vs.Name); err != nil {
		return err
	}
	for i, a := range vs.Assemblies {
		body, err := encodeModel(a)
		if err != nil {
			return fmt.Errorf("assembly %q: %w", a.Name(), err)
		}
		_, err = tx.Exec(`INSERT INTO assemblies(name, kind, position, model, updated_at) VALUES (?, ?, ?, ?, ?)`,
			a.Name(), string(a.Kind), i, string(body), updatedAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("inserting %q: %w", a.Name(), err)
		}
	}
	return tx.Commit()
}

func encodeModel(a *model.Assembly) ([]byte, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if a.Kind == model.KindList {
		return json.Marshal(a.List)
	}
	return json.Marshal(a.Tree)
}
