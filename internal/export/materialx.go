// Package export renders material graphs as MaterialX documents or JSON and
// evaluates JSONPath queries over exported documents.
package export

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/raphaelgruber/texmtlx/internal/graph"
)

// MaterialXVersion is the document version written by WriteMaterialX.
const MaterialXVersion = "1.38"

type mxInput struct {
	XMLName    xml.Name `xml:"input"`
	Name       string   `xml:"name,attr"`
	Type       string   `xml:"type,attr"`
	Value      string   `xml:"value,attr,omitempty"`
	NodeName   string   `xml:"nodename,attr,omitempty"`
	NodeGraph  string   `xml:"nodegraph,attr,omitempty"`
	Output     string   `xml:"output,attr,omitempty"`
	ColorSpace string   `xml:"colorspace,attr,omitempty"`
}

type mxNode struct {
	XMLName xml.Name
	Name    string    `xml:"name,attr"`
	Type    string    `xml:"type,attr"`
	Inputs  []mxInput `xml:"input"`
}

type mxOutput struct {
	XMLName  xml.Name `xml:"output"`
	Name     string   `xml:"name,attr"`
	Type     string   `xml:"type,attr"`
	NodeName string   `xml:"nodename,attr"`
}

type mxNodeGraph struct {
	XMLName xml.Name   `xml:"nodegraph"`
	Name    string     `xml:"name,attr"`
	Nodes   []mxNode   `xml:"node"`
	Outputs []mxOutput `xml:"output"`
}

type mxDocument struct {
	XMLName   xml.Name    `xml:"materialx"`
	Version   string      `xml:"version,attr"`
	NodeGraph mxNodeGraph `xml:"nodegraph"`
	Material  mxNode      `xml:"surfacematerial"`
}

// hostOnly are node parameters that describe the host network and have no
// MaterialX input. filecolorspace becomes the colorspace attribute of the
// file input.
var hostOnly = map[string]bool{
	"signature":      true,
	"filecolorspace": true,
	"connectorkind":  true,
	"parmname":       true,
	"parmlabel":      true,
	"parmtype":       true,
}

// outputTypes maps host node types without a signature to their output type.
var outputTypes = map[string]string{
	graph.TypeStandardSurface: "surfaceshader",
	graph.TypeDisplacement:    "displacementshader",
	graph.TypePlace2D:         "vector2",
	graph.TypeTexCoord:        "vector2",
	graph.TypeBump:            "vector3",
	graph.TypeNormalMap:       "vector3",
	graph.TypeSeparate3C:      "multioutput",
}

// outputType returns the MaterialX type a node produces.
func outputType(n *graph.Node) string {
	if sig, ok := n.Param("signature"); ok {
		if s, ok := sig.(string); ok && s != "" {
			return s
		}
	}
	if t, ok := outputTypes[n.Type]; ok {
		return t
	}
	return "float"
}

// elementName strips the host prefix from a node type.
func elementName(typ string) string {
	return strings.TrimPrefix(typ, "mtlx")
}

// valueType infers the MaterialX type of a literal parameter.
func valueType(name string, v any) string {
	switch val := v.(type) {
	case string:
		if name == "file" {
			return "filename"
		}
		return "string"
	case bool:
		return "boolean"
	case int, int64:
		return "integer"
	case []float64:
		return fmt.Sprintf("vector%d", len(val))
	default:
		return "float"
	}
}

// FormatValue renders a parameter the way MaterialX writes values.
func FormatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case []float64:
		parts := make([]string, len(val))
		for i, f := range val {
			parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(val)
	}
}

// WriteMaterialX writes g as a MaterialX document: one nodegraph holding
// every node, graph outputs for the subnet connectors, and a surfacematerial
// bound to the surface output.
func WriteMaterialX(w io.Writer, g *graph.MaterialGraph) error {
	ngName := "NG_" + g.Name
	doc := mxDocument{
		Version:   MaterialXVersion,
		NodeGraph: mxNodeGraph{Name: ngName},
		Material: mxNode{
			XMLName: xml.Name{Local: "surfacematerial"},
			Name:    g.Name,
			Type:    "material",
		},
	}

	for _, n := range g.Nodes {
		if n.Kind == graph.KindOutputConnector {
			src, ok := g.Source(n.Name, "in")
			if !ok {
				continue
			}
			doc.NodeGraph.Outputs = append(doc.NodeGraph.Outputs, mxOutput{
				Name:     n.Name,
				Type:     outputType(g.Node(src.From)),
				NodeName: src.From,
			})
			continue
		}
		doc.NodeGraph.Nodes = append(doc.NodeGraph.Nodes, element(g, n))
	}

	for _, out := range doc.NodeGraph.Outputs {
		var input string
		switch out.Type {
		case "surfaceshader":
			input = "surfaceshader"
		case "displacementshader":
			input = "displacementshader"
		default:
			continue
		}
		doc.Material.Inputs = append(doc.Material.Inputs, mxInput{
			Name:      input,
			Type:      out.Type,
			NodeGraph: ngName,
			Output:    out.Name,
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode materialx %s: %w", g.Name, err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func element(g *graph.MaterialGraph, n *graph.Node) mxNode {
	el := mxNode{
		XMLName: xml.Name{Local: elementName(n.Type)},
		Name:    n.Name,
		Type:    outputType(n),
	}
	for _, p := range n.Params {
		if hostOnly[p.Name] {
			continue
		}
		in := mxInput{
			Name:  p.Name,
			Type:  valueType(p.Name, p.Value),
			Value: FormatValue(p.Value),
		}
		if p.Name == "file" {
			if cs, ok := n.Param("filecolorspace"); ok {
				in.ColorSpace = FormatValue(cs)
			}
		}
		el.Inputs = append(el.Inputs, in)
	}
	for _, e := range g.Edges {
		if e.To != n.Name {
			continue
		}
		in := mxInput{
			Name:     e.Input,
			Type:     outputType(g.Node(e.From)),
			NodeName: e.From,
		}
		if e.Output != graph.OutputSlot {
			in.Output = e.Output
		}
		el.Inputs = append(el.Inputs, in)
	}
	return el
}
