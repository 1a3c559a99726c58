// Package framework draws a Gioia tree as a Graphviz diagram: codes point
// to their theme and themes point to their dimension.
package framework

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"personasim/internal/errors"
	"personasim/internal/types"

	"github.com/emicklei/dot"
)

// Node levels.
const (
	KindDimension = "dimension"
	KindTheme     = "theme"
	KindCode      = "code"
)

// Node is one box in the diagram.
type Node struct {
	ID    string `json:"id"`
	Kind  string `json:"kind"`
	Label string `json:"label"`
}

// Edge runs from a child to its parent.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Framework is the flattened diagram.
type Framework struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Build flattens dims. Node ids are positional so repeated labels at
// different places stay distinct.
func Build(dims []types.Dimension) Framework {
	f := Framework{Nodes: []Node{}, Edges: []Edge{}}
	for i, d := range dims {
		dimID := fmt.Sprintf("d%d", i)
		f.Nodes = append(f.Nodes, Node{ID: dimID, Kind: KindDimension, Label: d.Name})
		for j, t := range d.Themes {
			themeID := fmt.Sprintf("%s_t%d", dimID, j)
			f.Nodes = append(f.Nodes, Node{ID: themeID, Kind: KindTheme, Label: t.Name})
			f.Edges = append(f.Edges, Edge{From: themeID, To: dimID})
			for k, c := range t.Codes {
				codeID := fmt.Sprintf("%s_c%d", themeID, k)
				f.Nodes = append(f.Nodes, Node{ID: codeID, Kind: KindCode, Label: c.Label})
				f.Edges = append(f.Edges, Edge{From: codeID, To: themeID})
			}
		}
	}
	return f
}

// Graph converts f to a directed Graphviz graph.
func (f Framework) Graph() *dot.Graph {
	g := dot.NewGraph(dot.Directed)
	g.Attr("label", "Theoretical Framework")
	g.Attr("rankdir", "BT")

	nodes := make(map[string]dot.Node, len(f.Nodes))
	for _, n := range f.Nodes {
		node := g.Node(n.ID).Label(n.Label)
		switch n.Kind {
		case KindDimension:
			node.Attr("shape", "box").Attr("style", "filled").Attr("fillcolor", "lightblue")
		case KindTheme:
			node.Attr("shape", "ellipse").Attr("style", "filled").Attr("fillcolor", "lightgreen")
		default:
			node.Attr("shape", "note")
		}
		nodes[n.ID] = node
	}
	for _, e := range f.Edges {
		g.Edge(nodes[e.From], nodes[e.To])
	}
	return g
}

// DOT renders f in the Graphviz DOT language.
func (f Framework) DOT() string {
	return f.Graph().String()
}

// PNGAvailable reports whether the Graphviz dot binary is on PATH.
func PNGAvailable() bool {
	_, err := exec.LookPath("dot")
	return err == nil
}

// RenderPNG pipes source through "dot -Tpng".
func RenderPNG(ctx context.Context, source string) ([]byte, error) {
	bin, err := exec.LookPath("dot")
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			"Graphviz 'dot' is not installed; the DOT file can be rendered elsewhere", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "-Tpng")
	cmd.Stdin = bytes.NewBufferString(source)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInvalidFormat,
			"dot failed to render the framework", err).WithContext("stderr", stderr.String())
	}
	return stdout.Bytes(), nil
}
