package sink

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Record is a stored node as read back from a sink.
type Record struct {
	Path     Handle         `json:"path"`
	Type     string         `json:"type"`
	Params   map[string]any `json:"params,omitempty"`
	Material bool           `json:"material,omitempty"`
	X        float64        `json:"x"`
	Y        float64        `json:"y"`
	Children []Handle       `json:"children,omitempty"`
}

// Connection is a recorded wire between two nodes.
type Connection struct {
	From   Handle `json:"from"`
	Output string `json:"output"`
	To     Handle `json:"to"`
	Input  string `json:"input"`
}

// Memory is an in-process Sink. Libraries must be registered before nodes
// can be created under them.
type Memory struct {
	mu        sync.Mutex
	libraries map[Handle]bool // path -> locked
	nodes     map[Handle]*Record
	edges     []Connection
}

// NewMemory returns a sink with the given libraries registered.
func NewMemory(libraries ...string) *Memory {
	m := &Memory{
		libraries: make(map[Handle]bool),
		nodes:     make(map[Handle]*Record),
	}
	for _, lib := range libraries {
		m.AddLibrary(lib)
	}
	return m
}

// AddLibrary registers a library root.
func (m *Memory) AddLibrary(lib string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.libraries[LibraryHandle(lib)] = false
}

// SetLocked locks or unlocks a library. Writes under a locked library fail
// with ErrLibraryLocked.
func (m *Memory) SetLocked(lib string, locked bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := LibraryHandle(lib)
	if _, ok := m.libraries[h]; ok {
		m.libraries[h] = locked
	}
}

// writable resolves the library containing h. Callers hold mu.
func (m *Memory) writable(h Handle) error {
	for lib, locked := range m.libraries {
		if h.Within(lib) {
			if locked {
				return fmt.Errorf("%w: %s", ErrLibraryLocked, lib)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrLibraryNotFound, h)
}

func (m *Memory) DestroyExisting(_ context.Context, parent Handle, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.writable(parent); err != nil {
		return err
	}
	target := parent.Child(name)
	if _, ok := m.nodes[target]; !ok {
		return nil
	}

	for h := range m.nodes {
		if h.Within(target) {
			delete(m.nodes, h)
		}
	}
	m.edges = slices.DeleteFunc(m.edges, func(c Connection) bool {
		return c.From.Within(target) || c.To.Within(target)
	})
	if p, ok := m.nodes[parent]; ok {
		p.Children = slices.DeleteFunc(p.Children, func(c Handle) bool { return c == target })
	}
	return nil
}

func (m *Memory) CreateNode(_ context.Context, typ, name string, parent Handle) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.writable(parent); err != nil {
		return "", err
	}
	_, isLib := m.libraries[parent]
	p, isNode := m.nodes[parent]
	if !isLib && !isNode {
		return "", fmt.Errorf("%w: %s", ErrNodeNotFound, parent)
	}

	h := parent.Child(name)
	if _, dup := m.nodes[h]; dup {
		return "", fmt.Errorf("%w: %s", ErrNodeExists, h)
	}
	m.nodes[h] = &Record{Path: h, Type: typ, Params: make(map[string]any)}
	if isNode {
		p.Children = append(p.Children, h)
	}
	return h, nil
}

func (m *Memory) node(h Handle) (*Record, error) {
	if err := m.writable(h); err != nil {
		return nil, err
	}
	n, ok := m.nodes[h]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, h)
	}
	return n, nil
}

func (m *Memory) SetParameter(_ context.Context, h Handle, name string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, err := m.node(h)
	if err != nil {
		return err
	}
	n.Params[name] = value
	return nil
}

func (m *Memory) Connect(_ context.Context, from Handle, output string, to Handle, input string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.node(from); err != nil {
		return err
	}
	if _, err := m.node(to); err != nil {
		return err
	}
	m.edges = slices.DeleteFunc(m.edges, func(c Connection) bool {
		return c.To == to && c.Input == input
	})
	m.edges = append(m.edges, Connection{From: from, Output: output, To: to, Input: input})
	return nil
}

func (m *Memory) SetMaterialFlag(_ context.Context, h Handle, on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, err := m.node(h)
	if err != nil {
		return err
	}
	n.Material = on
	return nil
}

func (m *Memory) LayoutChildren(_ context.Context, parent Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.node(parent)
	if err != nil {
		return err
	}
	for i, c := range p.Children {
		m.nodes[c].X, m.nodes[c].Y = GridPosition(i)
	}
	return nil
}

// Node returns a copy of the node at h.
func (m *Memory) Node(h Handle) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.nodes[h]
	if !ok {
		return Record{}, false
	}
	cp := *n
	cp.Params = maps.Clone(n.Params)
	cp.Children = slices.Clone(n.Children)
	return cp, true
}

// Materials returns the names of the subnets directly under lib, sorted.
func (m *Memory) Materials(lib string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	root := LibraryHandle(lib)
	var names []string
	for h := range m.nodes {
		if h.Parent() == root {
			names = append(names, h.Name())
		}
	}
	slices.Sort(names)
	return names
}

// Connections returns the wires whose consumer lies under root.
func (m *Memory) Connections(root Handle) []Connection {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Connection
	for _, c := range m.edges {
		if c.To.Within(root) {
			out = append(out, c)
		}
	}
	return out
}

// Len returns the number of recorded nodes.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.nodes)
}
