package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"codegraph/internal/types"
)

func TestHeuristicMarksResultsAsHeuristic(t *testing.T) {
	h := NewHeuristic()
	results := h.ParseFiles(context.Background(), []File{{Path: "widget.go", Content: []byte("func Bar() {}\n")}}, Options{})
	require.Len(t, results, 1)
	require.True(t, results[0].Heuristic)

	var sawFunc bool
	for _, e := range results[0].Entities {
		if e.Name == "Bar" && e.Type == types.EntityFunction {
			sawFunc = true
		}
	}
	require.True(t, sawFunc)
}

func TestHeuristicEmptyInputYieldsNoError(t *testing.T) {
	h := NewHeuristic()
	require.Empty(t, h.ParseFiles(context.Background(), nil, Options{}))
}

func TestHeuristicEmitsDefinesFunctionForTopLevelDecl(t *testing.T) {
	h := NewHeuristic()
	results := h.ParseFiles(context.Background(), []File{{Path: "widget.go", Content: []byte("func Bar() {}\n")}}, Options{})
	require.Len(t, results, 1)

	var found bool
	for _, r := range results[0].Relationships {
		if r.From.Type == types.EntityModule && r.To.Name == "Bar" {
			require.Equal(t, types.RelDefinesFunction, r.Type, "module->entity edges must be defines_function/defines_class, not contains")
			found = true
		}
	}
	require.True(t, found, "expected a defines_function edge for the top-level Bar declaration")
}

func TestHeuristicMatchesGoReceiverMethodByPrefix(t *testing.T) {
	h := NewHeuristic()
	content := "type Widget struct{}\n\nfunc (w *Widget) Render() {}\n"
	results := h.ParseFiles(context.Background(), []File{{Path: "widget.go", Content: []byte(content)}}, Options{})
	require.Len(t, results, 1)

	var sawMethod bool
	for _, e := range results[0].Entities {
		if e.Name == "Render" && e.Type == types.EntityMethod {
			sawMethod = true
		}
	}
	require.True(t, sawMethod, "Render should be synthesized as a method via the receiver clause")

	var sawHasMethod bool
	for _, r := range results[0].Relationships {
		if r.Type == types.RelHasMethod && r.From.Name == "Widget" && r.To.Name == "Render" {
			sawHasMethod = true
		}
	}
	require.True(t, sawHasMethod, "expected a has_method edge from the receiver type Widget to Render")
}

func TestHeuristicEmitsUsesEdgeForIdentifierReference(t *testing.T) {
	h := NewHeuristic()
	content := "func Helper() {}\n\nfunc Caller() {\n\tHelper()\n}\n"
	results := h.ParseFiles(context.Background(), []File{{Path: "widget.go", Content: []byte(content)}}, Options{})
	require.Len(t, results, 1)

	var sawUses bool
	for _, r := range results[0].Relationships {
		if r.Type == types.RelUses && r.From.Name == "Caller" && r.To.Name == "Helper" {
			sawUses = true
		}
	}
	require.True(t, sawUses, "expected a uses edge from Caller to Helper via identifier match")
}
