package export

import (
	"fmt"
	"io"

	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/raphaelgruber/texmtlx/internal/graph"
)

// ToDocument converts g into generic JSON data (maps, slices, strings,
// float64s and bools) suitable for JSONPath queries.
func ToDocument(g *graph.MaterialGraph) map[string]any {
	nodes := make([]any, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		params := make(map[string]any, len(n.Params))
		for _, p := range n.Params {
			params[p.Name] = genericValue(p.Value)
		}
		nodes = append(nodes, map[string]any{
			"name":   n.Name,
			"kind":   string(n.Kind),
			"type":   n.Type,
			"params": params,
		})
	}

	edges := make([]any, 0, len(g.Edges))
	for _, e := range g.Edges {
		edges = append(edges, map[string]any{
			"from":   e.From,
			"output": e.Output,
			"to":     e.To,
			"input":  e.Input,
		})
	}

	return map[string]any{
		"name":     g.Name,
		"material": g.Material,
		"nodes":    nodes,
		"edges":    edges,
	}
}

func genericValue(v any) any {
	switch val := v.(type) {
	case []float64:
		out := make([]any, len(val))
		for i, f := range val {
			out[i] = f
		}
		return out
	case int:
		return float64(val)
	default:
		return val
	}
}

// WriteJSON writes the documents of graphs as an indented JSON array with
// sorted keys.
func WriteJSON(w io.Writer, graphs ...*graph.MaterialGraph) error {
	docs := make([]any, 0, len(graphs))
	for _, g := range graphs {
		docs = append(docs, ToDocument(g))
	}
	if err := oj.Write(w, docs, &ojg.Options{Indent: 2, Sort: true, HTMLUnsafe: true}); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// ReadJSON parses a JSON document into generic data.
func ReadJSON(r io.Reader) (any, error) {
	doc, err := oj.Load(r)
	if err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return doc, nil
}

// Query evaluates a JSONPath expression against doc.
func Query(doc any, path string) ([]any, error) {
	x, err := jp.ParseString(path)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", path, err)
	}
	return x.Get(doc), nil
}
