package db

import (
	"context"
	"fmt"
	"slices"

	"github.com/raphaelgruber/texmtlx/internal/sink"
	"github.com/surrealdb/surrealdb.go"
)

// Library is a sink.Sink backed by SurrealDB. Nodes live in material_node
// keyed by their path; connections are wires relations between them.
type Library struct {
	c *Client
}

var _ sink.Sink = (*Library)(nil)

// NewLibrary returns a library store on c. The schema must be initialized.
func NewLibrary(c *Client) *Library {
	return &Library{c: c}
}

// Close closes the underlying connection.
func (l *Library) Close(ctx context.Context) error {
	return l.c.Close(ctx)
}

type libraryRow struct {
	Path   string `json:"path"`
	Locked bool   `json:"locked"`
}

type nodeRow struct {
	Path     string         `json:"path"`
	Parent   string         `json:"parent"`
	Type     string         `json:"type"`
	Material bool           `json:"material"`
	Position int            `json:"position"`
	X        float64        `json:"x"`
	Y        float64        `json:"y"`
	Params   map[string]any `json:"params"`
}

type wireRow struct {
	Producer string `json:"producer"`
	Output   string `json:"output"`
	Consumer string `json:"consumer"`
	Input    string `json:"input"`
}

type countRow struct {
	C int `json:"c"`
}

// first returns the rows of the first statement of a query result.
func first[T any](results *[]surrealdb.QueryResult[[]T]) []T {
	if results == nil || len(*results) == 0 {
		return nil
	}
	return (*results)[0].Result
}

// AddLibrary registers a library root. Registering twice is a no-op.
func (l *Library) AddLibrary(ctx context.Context, path string) error {
	_, err := surrealdb.Query[any](ctx, l.c.db, `
		IF (SELECT count() AS c FROM material_library WHERE path = $path GROUP ALL)[0].c > 0 {
			RETURN NONE;
		} ELSE {
			CREATE material_library SET path = $path;
		};
	`, map[string]any{"path": string(sink.LibraryHandle(path))})
	if err != nil {
		return fmt.Errorf("add library %s: %w", path, wrapQueryError(err))
	}
	return nil
}

// SetLocked locks or unlocks a library.
func (l *Library) SetLocked(ctx context.Context, path string, locked bool) error {
	_, err := surrealdb.Query[any](ctx, l.c.db,
		`UPDATE material_library SET locked = $locked WHERE path = $path`,
		map[string]any{"path": string(sink.LibraryHandle(path)), "locked": locked})
	if err != nil {
		return fmt.Errorf("lock library %s: %w", path, wrapQueryError(err))
	}
	return nil
}

// writable finds the library containing h.
func (l *Library) writable(ctx context.Context, h sink.Handle) error {
	results, err := surrealdb.Query[[]libraryRow](ctx, l.c.db, `SELECT path, locked FROM material_library`, nil)
	if err != nil {
		return fmt.Errorf("list libraries: %w", wrapQueryError(err))
	}
	for _, lib := range first(results) {
		if h.Within(sink.Handle(lib.Path)) {
			if lib.Locked {
				return fmt.Errorf("%w: %s", sink.ErrLibraryLocked, lib.Path)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s", sink.ErrLibraryNotFound, h)
}

func (l *Library) isLibrary(ctx context.Context, h sink.Handle) (bool, error) {
	results, err := surrealdb.Query[[]countRow](ctx, l.c.db,
		`SELECT count() AS c FROM material_library WHERE path = $path GROUP ALL`,
		map[string]any{"path": string(h)})
	if err != nil {
		return false, fmt.Errorf("lookup library %s: %w", h, wrapQueryError(err))
	}
	rows := first(results)
	return len(rows) > 0 && rows[0].C > 0, nil
}

func (l *Library) exists(ctx context.Context, h sink.Handle) (bool, error) {
	results, err := surrealdb.Query[[]countRow](ctx, l.c.db,
		`SELECT count() AS c FROM type::record("material_node", $path)`,
		map[string]any{"path": string(h)})
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", h, wrapQueryError(err))
	}
	rows := first(results)
	return len(rows) > 0 && rows[0].C > 0, nil
}

// checked requires h to exist in a writable library.
func (l *Library) checked(ctx context.Context, h sink.Handle) error {
	if err := l.writable(ctx, h); err != nil {
		return err
	}
	ok, err := l.exists(ctx, h)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", sink.ErrNodeNotFound, h)
	}
	return nil
}

func (l *Library) DestroyExisting(ctx context.Context, parent sink.Handle, name string) error {
	if err := l.writable(ctx, parent); err != nil {
		return err
	}
	target := parent.Child(name)
	_, err := surrealdb.Query[any](ctx, l.c.db, `
		LET $doomed = (SELECT VALUE id FROM material_node
			WHERE path = $path OR string::starts_with(path, $prefix));
		DELETE wires WHERE in INSIDE $doomed OR out INSIDE $doomed;
		DELETE material_node WHERE id INSIDE $doomed;
	`, map[string]any{"path": string(target), "prefix": string(target) + "/"})
	if err != nil {
		return fmt.Errorf("destroy %s: %w", target, wrapQueryError(err))
	}
	return nil
}

func (l *Library) CreateNode(ctx context.Context, typ, name string, parent sink.Handle) (sink.Handle, error) {
	if err := l.writable(ctx, parent); err != nil {
		return "", err
	}
	isLib, err := l.isLibrary(ctx, parent)
	if err != nil {
		return "", err
	}
	if !isLib {
		ok, err := l.exists(ctx, parent)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", fmt.Errorf("%w: %s", sink.ErrNodeNotFound, parent)
		}
	}

	h := parent.Child(name)
	_, err = surrealdb.Query[any](ctx, l.c.db, `
		LET $position = (SELECT count() AS c FROM material_node WHERE parent = $parent GROUP ALL)[0].c ?? 0;
		CREATE type::record("material_node", $path) SET
			path = $path,
			parent = $parent,
			type = $type,
			position = $position;
	`, map[string]any{"path": string(h), "parent": string(parent), "type": typ})
	if err != nil {
		return "", fmt.Errorf("create %s: %w", h, wrapQueryError(err))
	}
	return h, nil
}

func (l *Library) SetParameter(ctx context.Context, h sink.Handle, name string, value any) error {
	if err := l.checked(ctx, h); err != nil {
		return err
	}
	_, err := surrealdb.Query[any](ctx, l.c.db,
		`UPDATE type::record("material_node", $path) MERGE { params: $patch }`,
		map[string]any{"path": string(h), "patch": map[string]any{name: value}})
	if err != nil {
		return fmt.Errorf("set %s.%s: %w", h, name, wrapQueryError(err))
	}
	return nil
}

func (l *Library) Connect(ctx context.Context, from sink.Handle, output string, to sink.Handle, input string) error {
	if err := l.checked(ctx, from); err != nil {
		return err
	}
	if err := l.checked(ctx, to); err != nil {
		return err
	}
	_, err := surrealdb.Query[any](ctx, l.c.db, `
		DELETE wires WHERE out = type::record("material_node", $to) AND input = $input;
		RELATE type::record("material_node", $from)->wires->type::record("material_node", $to) SET
			output = $output,
			input = $input;
	`, map[string]any{"from": string(from), "output": output, "to": string(to), "input": input})
	if err != nil {
		return fmt.Errorf("connect %s -> %s.%s: %w", from, to, input, wrapQueryError(err))
	}
	return nil
}

func (l *Library) SetMaterialFlag(ctx context.Context, h sink.Handle, on bool) error {
	if err := l.checked(ctx, h); err != nil {
		return err
	}
	_, err := surrealdb.Query[any](ctx, l.c.db,
		`UPDATE type::record("material_node", $path) SET material = $on`,
		map[string]any{"path": string(h), "on": on})
	if err != nil {
		return fmt.Errorf("material flag %s: %w", h, wrapQueryError(err))
	}
	return nil
}

func (l *Library) LayoutChildren(ctx context.Context, parent sink.Handle) error {
	if err := l.checked(ctx, parent); err != nil {
		return err
	}
	children, err := l.children(ctx, parent)
	if err != nil {
		return err
	}
	for i, c := range children {
		x, y := sink.GridPosition(i)
		_, err := surrealdb.Query[any](ctx, l.c.db,
			`UPDATE type::record("material_node", $path) SET x = $x, y = $y`,
			map[string]any{"path": c.Path, "x": x, "y": y})
		if err != nil {
			return fmt.Errorf("layout %s: %w", c.Path, wrapQueryError(err))
		}
	}
	return nil
}

func (l *Library) children(ctx context.Context, parent sink.Handle) ([]nodeRow, error) {
	results, err := surrealdb.Query[[]nodeRow](ctx, l.c.db,
		`SELECT * FROM material_node WHERE parent = $parent ORDER BY position`,
		map[string]any{"parent": string(parent)})
	if err != nil {
		return nil, fmt.Errorf("children of %s: %w", parent, wrapQueryError(err))
	}
	return first(results), nil
}

// Node reads back the node at h with its parameters and children.
func (l *Library) Node(ctx context.Context, h sink.Handle) (sink.Record, error) {
	results, err := surrealdb.Query[[]nodeRow](ctx, l.c.db,
		`SELECT * FROM type::record("material_node", $path)`,
		map[string]any{"path": string(h)})
	if err != nil {
		return sink.Record{}, fmt.Errorf("read %s: %w", h, wrapQueryError(err))
	}
	rows := first(results)
	if len(rows) == 0 {
		return sink.Record{}, fmt.Errorf("%w: %s", sink.ErrNodeNotFound, h)
	}
	n := rows[0]

	children, err := l.children(ctx, h)
	if err != nil {
		return sink.Record{}, err
	}
	rec := sink.Record{
		Path:     h,
		Type:     n.Type,
		Params:   n.Params,
		Material: n.Material,
		X:        n.X,
		Y:        n.Y,
	}
	for _, c := range children {
		rec.Children = append(rec.Children, sink.Handle(c.Path))
	}
	return rec, nil
}

// Materials returns the names of the subnets directly under lib, sorted.
func (l *Library) Materials(ctx context.Context, lib string) ([]string, error) {
	children, err := l.children(ctx, sink.LibraryHandle(lib))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(children))
	for _, c := range children {
		names = append(names, sink.Handle(c.Path).Name())
	}
	slices.Sort(names)
	return names, nil
}

// Connections returns the wires whose consumer lies under root.
func (l *Library) Connections(ctx context.Context, root sink.Handle) ([]sink.Connection, error) {
	results, err := surrealdb.Query[[]wireRow](ctx, l.c.db, `
		SELECT in.path AS producer, output, out.path AS consumer, input FROM wires
		WHERE out.path = $root OR string::starts_with(out.path, $prefix)
	`, map[string]any{"root": string(root), "prefix": string(root) + "/"})
	if err != nil {
		return nil, fmt.Errorf("connections under %s: %w", root, wrapQueryError(err))
	}
	rows := first(results)
	out := make([]sink.Connection, 0, len(rows))
	for _, w := range rows {
		out = append(out, sink.Connection{
			From:   sink.Handle(w.Producer),
			Output: w.Output,
			To:     sink.Handle(w.Consumer),
			Input:  w.Input,
		})
	}
	return out, nil
}
