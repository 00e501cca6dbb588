package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"codegraph/internal/types"
)

const goSample = `package foo

type Foo struct {
	Name string
}

func (f *Foo) Bar() string {
	return f.Name
}
`

func TestTreeSitterParserExtractsClassAndMethod(t *testing.T) {
	p := NewTreeSitterParser()
	defer p.Close()

	results := p.ParseFiles(context.Background(), []File{{Path: "foo.go", Content: []byte(goSample)}}, Options{})
	require.Len(t, results, 1)
	r := results[0]
	require.Nil(t, r.Error)

	names := map[string]types.EntityType{}
	for _, e := range r.Entities {
		names[e.Name] = e.Type
	}
	require.Equal(t, types.EntityFile, names["foo.go"])
	require.Equal(t, types.EntityClass, names["Foo"])
	require.Equal(t, types.EntityMethod, names["Bar"])

	var hasMethod bool
	for _, rel := range r.Relationships {
		if rel.Type == types.RelHasMethod && rel.From.Name == "Foo" && rel.To.Name == "Bar" {
			hasMethod = true
		}
	}
	require.True(t, hasMethod)
}

func TestTreeSitterParserEmptyInputYieldsEmptyOutput(t *testing.T) {
	p := NewTreeSitterParser()
	defer p.Close()
	require.Empty(t, p.ParseFiles(context.Background(), nil, Options{}))
}

func TestTreeSitterParserIsDeterministic(t *testing.T) {
	p := NewTreeSitterParser()
	defer p.Close()

	r1 := p.ParseFiles(context.Background(), []File{{Path: "foo.go", Content: []byte(goSample)}}, Options{})
	r2 := p.ParseFiles(context.Background(), []File{{Path: "foo.go", Content: []byte(goSample)}}, Options{})
	require.Equal(t, len(r1[0].Entities), len(r2[0].Entities))
}
