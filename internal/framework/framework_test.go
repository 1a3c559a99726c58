package framework

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"personasim/internal/analyzer"
	"personasim/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tree = []types.Dimension{
	{Name: "Trust", Themes: []types.Theme{
		{Name: "Reliance", Codes: []types.Code{{Label: "Double-checks output"}, {Label: "Trust"}}},
	}},
	{Name: "Work Design", Themes: []types.Theme{
		{Name: "Autonomy"},
	}},
}

func TestBuild(t *testing.T) {
	f := Build(tree)

	assert.Equal(t, []Node{
		{ID: "d0", Kind: KindDimension, Label: "Trust"},
		{ID: "d0_t0", Kind: KindTheme, Label: "Reliance"},
		{ID: "d0_t0_c0", Kind: KindCode, Label: "Double-checks output"},
		{ID: "d0_t0_c1", Kind: KindCode, Label: "Trust"},
		{ID: "d1", Kind: KindDimension, Label: "Work Design"},
		{ID: "d1_t0", Kind: KindTheme, Label: "Autonomy"},
	}, f.Nodes)
	assert.Equal(t, []Edge{
		{From: "d0_t0", To: "d0"},
		{From: "d0_t0_c0", To: "d0_t0"},
		{From: "d0_t0_c1", To: "d0_t0"},
		{From: "d1_t0", To: "d1"},
	}, f.Edges)
}

func TestBuildEmpty(t *testing.T) {
	f := Build(nil)
	assert.Empty(t, f.Nodes)
	assert.Empty(t, f.Edges)
	assert.True(t, strings.HasPrefix(f.DOT(), "digraph"))
}

func TestBuildFromMalformedText(t *testing.T) {
	f := Build(analyzer.Parse("Theme: Loose\n- stray code"))

	require.Len(t, f.Nodes, 3)
	assert.Equal(t, Node{ID: "d0", Kind: KindDimension, Label: analyzer.Unassigned}, f.Nodes[0])
	assert.Equal(t, "Loose", f.Nodes[1].Label)
	assert.Len(t, f.Edges, 2)
}

func TestDOT(t *testing.T) {
	src := Build(tree).DOT()

	assert.True(t, strings.HasPrefix(src, "digraph"))
	for _, want := range []string{
		`label="Trust"`,
		`label="Double-checks output"`,
		`shape="box"`,
		`fillcolor="lightblue"`,
		`shape="ellipse"`,
		`fillcolor="lightgreen"`,
		`shape="note"`,
		`label="Theoretical Framework"`,
	} {
		assert.Contains(t, src, want)
	}
	assert.Equal(t, 4, strings.Count(src, "->"))
}

func TestRenderPNG(t *testing.T) {
	if !PNGAvailable() {
		t.Skip("graphviz dot binary not installed")
	}
	png, err := RenderPNG(context.Background(), Build(tree).DOT())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}
