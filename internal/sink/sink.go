// Package sink materializes synthesized material graphs into a node library.
package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/raphaelgruber/texmtlx/internal/graph"
)

var (
	ErrLibraryNotFound = errors.New("material library not found")
	ErrLibraryLocked   = errors.New("material library is locked")
	ErrNodeExists      = errors.New("node already exists")
	ErrNodeNotFound    = errors.New("node not found")
)

// Handle addresses a node in the library by its slash-separated path.
type Handle string

// LibraryHandle returns the handle of a library root given as a path.
func LibraryHandle(lib string) Handle {
	return Handle(path.Clean(lib))
}

// Child returns the handle of name under h.
func (h Handle) Child(name string) Handle {
	return Handle(path.Join(string(h), name))
}

// Parent returns the handle one level up.
func (h Handle) Parent() Handle {
	return Handle(path.Dir(string(h)))
}

// Name returns the last path element.
func (h Handle) Name() string {
	return path.Base(string(h))
}

// Within reports whether h is root or lies below it.
func (h Handle) Within(root Handle) bool {
	r := strings.TrimSuffix(string(root), "/")
	return string(h) == r || strings.HasPrefix(string(h), r+"/")
}

// Sink is the host-side node library a graph is written into.
type Sink interface {
	// DestroyExisting removes name under parent with all its children. A
	// missing node is not an error.
	DestroyExisting(ctx context.Context, parent Handle, name string) error
	CreateNode(ctx context.Context, typ, name string, parent Handle) (Handle, error)
	SetParameter(ctx context.Context, h Handle, name string, value any) error
	Connect(ctx context.Context, from Handle, output string, to Handle, input string) error
	SetMaterialFlag(ctx context.Context, h Handle, on bool) error
	LayoutChildren(ctx context.Context, parent Handle) error
}

// Materialize writes g under library as a subnet named g.Name, replacing any
// earlier material of the same name. On failure after the subnet exists the
// partial subnet is removed.
func Materialize(ctx context.Context, s Sink, library string, g *graph.MaterialGraph) (Handle, error) {
	lib := LibraryHandle(library)

	if err := s.DestroyExisting(ctx, lib, g.Name); err != nil {
		return "", fmt.Errorf("destroy %s: %w", g.Name, err)
	}

	subnet, err := s.CreateNode(ctx, graph.TypeSubnet, g.Name, lib)
	if err != nil {
		return "", fmt.Errorf("create subnet %s: %w", g.Name, err)
	}

	if err := populate(ctx, s, subnet, g); err != nil {
		if rbErr := s.DestroyExisting(context.WithoutCancel(ctx), lib, g.Name); rbErr != nil {
			slog.Warn("rollback of partial material failed", "material", g.Name, "error", rbErr)
		}
		return "", err
	}
	return subnet, nil
}

func populate(ctx context.Context, s Sink, subnet Handle, g *graph.MaterialGraph) error {
	if err := s.SetMaterialFlag(ctx, subnet, true); err != nil {
		return fmt.Errorf("material flag %s: %w", g.Name, err)
	}

	handles := make(map[string]Handle, len(g.Nodes))
	for _, n := range g.Nodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		h, err := s.CreateNode(ctx, n.Type, n.Name, subnet)
		if err != nil {
			return fmt.Errorf("create node %s: %w", n.Name, err)
		}
		handles[n.Name] = h
		for _, p := range n.Params {
			if err := s.SetParameter(ctx, h, p.Name, p.Value); err != nil {
				return fmt.Errorf("set %s.%s: %w", n.Name, p.Name, err)
			}
		}
	}

	for _, e := range g.Edges {
		from, ok := handles[e.From]
		if !ok {
			return fmt.Errorf("connect %s: %w: %s", e, ErrNodeNotFound, e.From)
		}
		to, ok := handles[e.To]
		if !ok {
			return fmt.Errorf("connect %s: %w: %s", e, ErrNodeNotFound, e.To)
		}
		if err := s.Connect(ctx, from, e.Output, to, e.Input); err != nil {
			return fmt.Errorf("connect %s: %w", e, err)
		}
	}

	if err := s.LayoutChildren(ctx, subnet); err != nil {
		return fmt.Errorf("layout %s: %w", g.Name, err)
	}
	return nil
}

// layoutColumns is the width of the grid LayoutChildren arranges nodes in.
const layoutColumns = 4

// GridPosition returns the network position of the i-th child of a subnet.
func GridPosition(i int) (x, y float64) {
	return float64(i%layoutColumns) * 3, -float64(i/layoutColumns) * 2
}
