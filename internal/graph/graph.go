// Package graph synthesizes MaterialX shader graphs from material texture
// sets.
package graph

import (
	"errors"
	"fmt"
)

// NodeKind classifies a node by the part it plays in the material.
type NodeKind string

const (
	KindShaderRoot       NodeKind = "shader_root"
	KindDisplacementRoot NodeKind = "displacement_root"
	KindImage            NodeKind = "image"
	KindRangeAdjust      NodeKind = "range_adjust"
	KindPlace2D          NodeKind = "place2d"
	KindTexCoord         NodeKind = "texcoord"
	KindConstant         NodeKind = "constant"
	KindSeparateChannels NodeKind = "separate_channels"
	KindBump             NodeKind = "bump"
	KindNormalMap        NodeKind = "normal_map"
	KindMultiply         NodeKind = "multiply"
	KindOutputConnector  NodeKind = "output_connector"
)

// Host node type names.
const (
	TypeStandardSurface = "mtlxstandard_surface"
	TypeDisplacement    = "mtlxdisplacement"
	TypeImage           = "mtlximage"
	TypeTiledImage      = "mtlxtiledimage"
	TypeRange           = "mtlxrange"
	TypePlace2D         = "mtlxplace2d"
	TypeTexCoord        = "mtlxtexcoord"
	TypeConstant        = "mtlxconstant"
	TypeSeparate3C      = "mtlxseparate3c"
	TypeBump            = "mtlxbump"
	TypeNormalMap       = "mtlxnormalmap"
	TypeMultiply        = "mtlxmultiply"
	TypeSubnetConnector = "subnetconnector"
	TypeSubnet          = "subnet"
)

// OutputSlot is the output every node exposes.
const OutputSlot = "out"

var (
	ErrDuplicateNode      = errors.New("duplicate node name")
	ErrUnknownNode        = errors.New("unknown node")
	ErrInputTaken         = errors.New("input already connected")
	ErrUnknownShaderInput = errors.New("shader has no such input")
	ErrEmptySet           = errors.New("material has no textures")
)

// Param is one named node parameter.
type Param struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Node is a single shader node.
type Node struct {
	Name   string   `json:"name"`
	Kind   NodeKind `json:"kind"`
	Type   string   `json:"type"`
	Params []Param  `json:"params,omitempty"`
}

// Set assigns a parameter, replacing an earlier value of the same name.
func (n *Node) Set(name string, value any) {
	for i := range n.Params {
		if n.Params[i].Name == name {
			n.Params[i].Value = value
			return
		}
	}
	n.Params = append(n.Params, Param{Name: name, Value: value})
}

// Param returns the value of a parameter.
func (n *Node) Param(name string) (any, bool) {
	for _, p := range n.Params {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

// Edge wires a producer's output into a consumer's input.
type Edge struct {
	From   string `json:"from"`
	Output string `json:"output"`
	To     string `json:"to"`
	Input  string `json:"input"`
}

func (e Edge) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s", e.From, e.Output, e.To, e.Input)
}

// MaterialGraph is the synthesized node network of one material. Node
// names are unique and every input has at most one producer.
type MaterialGraph struct {
	Name     string  `json:"name"`
	Material string  `json:"material"`
	Nodes    []*Node `json:"nodes"`
	Edges    []Edge  `json:"edges"`

	index map[string]*Node
}

// NewMaterialGraph returns an empty graph.
func NewMaterialGraph(name, material string) *MaterialGraph {
	return &MaterialGraph{
		Name:     name,
		Material: material,
		index:    make(map[string]*Node),
	}
}

// AddNode appends a node. Names must be unique within the graph.
func (g *MaterialGraph) AddNode(name string, kind NodeKind, typ string) (*Node, error) {
	if g.index == nil {
		g.reindex()
	}
	if _, dup := g.index[name]; dup {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, name)
	}
	n := &Node{Name: name, Kind: kind, Type: typ}
	g.Nodes = append(g.Nodes, n)
	g.index[name] = n
	return n, nil
}

// Node returns the node called name, or nil.
func (g *MaterialGraph) Node(name string) *Node {
	if g.index == nil {
		g.reindex()
	}
	return g.index[name]
}

// NodesOfKind returns the nodes of kind in creation order.
func (g *MaterialGraph) NodesOfKind(kind NodeKind) []*Node {
	var out []*Node
	for _, n := range g.Nodes {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// Connect wires from's output into to's input.
func (g *MaterialGraph) Connect(from, output, to, input string) error {
	if g.Node(from) == nil {
		return fmt.Errorf("%w: %s", ErrUnknownNode, from)
	}
	if g.Node(to) == nil {
		return fmt.Errorf("%w: %s", ErrUnknownNode, to)
	}
	if e, ok := g.Source(to, input); ok {
		return fmt.Errorf("%w: %s.%s fed by %s", ErrInputTaken, to, input, e.From)
	}
	g.Edges = append(g.Edges, Edge{From: from, Output: output, To: to, Input: input})
	return nil
}

// Source returns the edge feeding to's input.
func (g *MaterialGraph) Source(to, input string) (Edge, bool) {
	for _, e := range g.Edges {
		if e.To == to && e.Input == input {
			return e, true
		}
	}
	return Edge{}, false
}

// Outgoing returns the edges leaving node from.
func (g *MaterialGraph) Outgoing(from string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.From == from {
			out = append(out, e)
		}
	}
	return out
}

// Validate checks that node names are unique, every edge references
// existing nodes, and no input is fed twice.
func (g *MaterialGraph) Validate() error {
	g.reindex()
	if len(g.index) != len(g.Nodes) {
		return ErrDuplicateNode
	}
	seen := make(map[[2]string]struct{}, len(g.Edges))
	for _, e := range g.Edges {
		if g.index[e.From] == nil || g.index[e.To] == nil {
			return fmt.Errorf("%w: edge %s", ErrUnknownNode, e)
		}
		key := [2]string{e.To, e.Input}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: %s.%s", ErrInputTaken, e.To, e.Input)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// NodeNames returns all node names in creation order.
func (g *MaterialGraph) NodeNames() []string {
	names := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		names[i] = n.Name
	}
	return names
}

func (g *MaterialGraph) reindex() {
	g.index = make(map[string]*Node, len(g.Nodes))
	for _, n := range g.Nodes {
		g.index[n.Name] = n
	}
}
