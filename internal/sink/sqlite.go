package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/ohler55/ojg/oj"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS libraries (
	path TEXT PRIMARY KEY,
	locked INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS nodes (
	path TEXT PRIMARY KEY,
	parent TEXT NOT NULL,
	type TEXT NOT NULL,
	material INTEGER NOT NULL DEFAULT 0,
	position INTEGER NOT NULL,
	x REAL NOT NULL DEFAULT 0,
	y REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(parent, position);
CREATE TABLE IF NOT EXISTS params (
	node TEXT NOT NULL,
	name TEXT NOT NULL,
	value JSON NOT NULL,
	PRIMARY KEY (node, name)
) WITHOUT ROWID;
CREATE TABLE IF NOT EXISTS edges (
	from_node TEXT NOT NULL,
	output TEXT NOT NULL,
	to_node TEXT NOT NULL,
	input TEXT NOT NULL,
	PRIMARY KEY (to_node, input)
) WITHOUT ROWID;
`

// SQLite is a Sink that persists material libraries in a SQLite file.
// Parameter values are stored as JSON.
type SQLite struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenSQLite opens or creates the library database at dbPath.
func OpenSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// AddLibrary registers a library root. Registering twice is a no-op.
func (s *SQLite) AddLibrary(ctx context.Context, lib string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO libraries (path) VALUES (?)`, string(LibraryHandle(lib)))
	if err != nil {
		return fmt.Errorf("add library %s: %w", lib, err)
	}
	return nil
}

// SetLocked locks or unlocks a library.
func (s *SQLite) SetLocked(ctx context.Context, lib string, locked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `UPDATE libraries SET locked = ? WHERE path = ?`, locked, string(LibraryHandle(lib)))
	if err != nil {
		return fmt.Errorf("lock library %s: %w", lib, err)
	}
	return nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// writable finds the library containing h.
func writable(ctx context.Context, q querier, h Handle) error {
	rows, err := q.QueryContext(ctx, `SELECT path, locked FROM libraries`)
	if err != nil {
		return fmt.Errorf("list libraries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var lib string
		var locked bool
		if err := rows.Scan(&lib, &locked); err != nil {
			return fmt.Errorf("scan library: %w", err)
		}
		if h.Within(Handle(lib)) {
			if locked {
				return fmt.Errorf("%w: %s", ErrLibraryLocked, lib)
			}
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", ErrLibraryNotFound, h)
}

func nodeExists(ctx context.Context, q querier, h Handle) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes WHERE path = ?`, string(h)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", h, err)
	}
	return n > 0, nil
}

// inTx runs fn in a transaction under the sink mutex.
func (s *SQLite) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// checked resolves h for writing: its library must be writable and the node
// must exist.
func checked(ctx context.Context, tx *sql.Tx, h Handle) error {
	if err := writable(ctx, tx, h); err != nil {
		return err
	}
	ok, err := nodeExists(ctx, tx, h)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, h)
	}
	return nil
}

func (s *SQLite) DestroyExisting(ctx context.Context, parent Handle, name string) error {
	target := parent.Child(name)
	prefix := string(target) + "/"
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := writable(ctx, tx, parent); err != nil {
			return err
		}
		stmts := []string{
			`DELETE FROM edges WHERE from_node = ?1 OR to_node = ?1
				OR substr(from_node, 1, length(?2)) = ?2 OR substr(to_node, 1, length(?2)) = ?2`,
			`DELETE FROM params WHERE node = ?1 OR substr(node, 1, length(?2)) = ?2`,
			`DELETE FROM nodes WHERE path = ?1 OR substr(path, 1, length(?2)) = ?2`,
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q, string(target), prefix); err != nil {
				return fmt.Errorf("destroy %s: %w", target, err)
			}
		}
		return nil
	})
}

func (s *SQLite) CreateNode(ctx context.Context, typ, name string, parent Handle) (Handle, error) {
	h := parent.Child(name)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := writable(ctx, tx, parent); err != nil {
			return err
		}

		var isLib int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM libraries WHERE path = ?`, string(parent)).Scan(&isLib); err != nil {
			return fmt.Errorf("lookup %s: %w", parent, err)
		}
		if isLib == 0 {
			ok, err := nodeExists(ctx, tx, parent)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: %s", ErrNodeNotFound, parent)
			}
		}

		dup, err := nodeExists(ctx, tx, h)
		if err != nil {
			return err
		}
		if dup {
			return fmt.Errorf("%w: %s", ErrNodeExists, h)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO nodes (path, parent, type, position)
			VALUES (?1, ?2, ?3, (SELECT COUNT(*) FROM nodes WHERE parent = ?2))`,
			string(h), string(parent), typ)
		if err != nil {
			return fmt.Errorf("insert %s: %w", h, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return h, nil
}

func (s *SQLite) SetParameter(ctx context.Context, h Handle, name string, value any) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := checked(ctx, tx, h); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO params (node, name, value) VALUES (?, ?, ?)`,
			string(h), name, oj.JSON(value))
		if err != nil {
			return fmt.Errorf("set %s.%s: %w", h, name, err)
		}
		return nil
	})
}

func (s *SQLite) Connect(ctx context.Context, from Handle, output string, to Handle, input string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := checked(ctx, tx, from); err != nil {
			return err
		}
		if err := checked(ctx, tx, to); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO edges (from_node, output, to_node, input) VALUES (?, ?, ?, ?)`,
			string(from), output, string(to), input)
		if err != nil {
			return fmt.Errorf("connect %s -> %s.%s: %w", from, to, input, err)
		}
		return nil
	})
}

func (s *SQLite) SetMaterialFlag(ctx context.Context, h Handle, on bool) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := checked(ctx, tx, h); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE nodes SET material = ? WHERE path = ?`, on, string(h))
		return err
	})
}

func (s *SQLite) LayoutChildren(ctx context.Context, parent Handle) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := checked(ctx, tx, parent); err != nil {
			return err
		}
		children, err := childPaths(ctx, tx, parent)
		if err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `UPDATE nodes SET x = ?, y = ? WHERE path = ?`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, c := range children {
			x, y := GridPosition(i)
			if _, err := stmt.ExecContext(ctx, x, y, c); err != nil {
				return fmt.Errorf("layout %s: %w", c, err)
			}
		}
		return nil
	})
}

func childPaths(ctx context.Context, q querier, parent Handle) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT path FROM nodes WHERE parent = ? ORDER BY position`, string(parent))
	if err != nil {
		return nil, fmt.Errorf("children of %s: %w", parent, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Node reads back the node at h with its parameters and children.
func (s *SQLite) Node(ctx context.Context, h Handle) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := Record{Path: h, Params: make(map[string]any)}
	err := s.db.QueryRowContext(ctx, `SELECT type, material, x, y FROM nodes WHERE path = ?`, string(h)).
		Scan(&rec.Type, &rec.Material, &rec.X, &rec.Y)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNodeNotFound, h)
	}
	if err != nil {
		return Record{}, fmt.Errorf("read %s: %w", h, err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT name, value FROM params WHERE node = ?`, string(h))
	if err != nil {
		return Record{}, fmt.Errorf("params of %s: %w", h, err)
	}
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			rows.Close()
			return Record{}, err
		}
		v, err := oj.ParseString(raw)
		if err != nil {
			rows.Close()
			return Record{}, fmt.Errorf("decode %s.%s: %w", h, name, err)
		}
		rec.Params[name] = v
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Record{}, err
	}

	children, err := childPaths(ctx, s.db, h)
	if err != nil {
		return Record{}, err
	}
	for _, c := range children {
		rec.Children = append(rec.Children, Handle(c))
	}
	return rec, nil
}

// Materials returns the names of the subnets directly under lib, sorted.
func (s *SQLite) Materials(ctx context.Context, lib string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths, err := childPaths(ctx, s.db, LibraryHandle(lib))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(paths))
	for _, p := range paths {
		names = append(names, Handle(p).Name())
	}
	slices.Sort(names)
	return names, nil
}

// Connections returns the wires whose consumer lies under root.
func (s *SQLite) Connections(ctx context.Context, root Handle) ([]Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT from_node, output, to_node, input FROM edges
		WHERE to_node = ?1 OR substr(to_node, 1, length(?2)) = ?2
		ORDER BY to_node, input`, string(root), string(root)+"/")
	if err != nil {
		return nil, fmt.Errorf("connections under %s: %w", root, err)
	}
	defer rows.Close()

	var out []Connection
	for rows.Next() {
		var c Connection
		var from, to string
		if err := rows.Scan(&from, &c.Output, &to, &c.Input); err != nil {
			return nil, err
		}
		c.From, c.To = Handle(from), Handle(to)
		out = append(out, c)
	}
	return out, rows.Err()
}
