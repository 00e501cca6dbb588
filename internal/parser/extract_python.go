package parser

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"codegraph/internal/types"
)

// extractPythonSymbols adapts the teacher's extractPythonSymbols walk:
// class/function definitions and import statements, with the same
// leading-underscore visibility convention (_x protected, __x private).
func extractPythonSymbols(root *sitter.Node, path, content string) ([]types.Entity, []types.ParsedRelationship) {
	file := fileEntity(path, "python")
	entities := []types.Entity{file}
	var rels []types.ParsedRelationship

	contains := func(childName string, childType types.EntityType) {
		rels = append(rels, types.ParsedRelationship{
			From: types.EntityRef{Name: file.Name, FilePath: path, Type: types.EntityFile},
			To:   types.EntityRef{Name: childName, FilePath: path, Type: childType},
			Type: types.RelContains,
		})
	}

	var walk func(n *sitter.Node, inClass string)
	walk = func(n *sitter.Node, inClass string) {
		switch n.Type() {
		case "class_definition":
			if nameNode := n.ChildByFieldName("name"); nameNode != nil {
				name := nodeText(nameNode, content)
				entities = append(entities, types.Entity{
					Name: name, Type: types.EntityClass, FilePath: path, Location: loc(n),
					Metadata: map[string]any{"visibility": pythonVisibility(name)},
				})
				contains(name, types.EntityClass)
				if body := n.ChildByFieldName("body"); body != nil {
					for i := 0; i < int(body.NamedChildCount()); i++ {
						walk(body.NamedChild(i), name)
					}
				}
				return
			}

		case "function_definition":
			if nameNode := n.ChildByFieldName("name"); nameNode != nil {
				name := nodeText(nameNode, content)
				sig := "def " + name + nodeText(n.ChildByFieldName("parameters"), content)
				kind := types.EntityFunction
				if inClass != "" {
					kind = types.EntityMethod
				}
				entities = append(entities, types.Entity{
					Name: name, Type: kind, FilePath: path, Location: loc(n),
					Metadata: map[string]any{"signature": sig, "visibility": pythonVisibility(name), "owner": inClass},
				})
				if inClass != "" {
					rels = append(rels, types.ParsedRelationship{
						From: types.EntityRef{Name: inClass, FilePath: path, Type: types.EntityClass},
						To:   types.EntityRef{Name: name, FilePath: path, Type: types.EntityMethod},
						Type: types.RelHasMethod,
					})
				} else {
					contains(name, types.EntityFunction)
				}
				return
			}

		case "import_statement", "import_from_statement":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				child := n.NamedChild(i)
				if child.Type() == "dotted_name" {
					moduleName := nodeText(child, content)
					rels = append(rels, types.ParsedRelationship{
						From:     types.EntityRef{Name: file.Name, FilePath: path, Type: types.EntityFile},
						To:       types.EntityRef{Name: moduleName, FilePath: "mod://" + moduleName, Type: types.EntityModule},
						Type:     types.RelImports,
						Metadata: map[string]any{"module": moduleName},
					})
				}
			}
		}

		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i), inClass)
		}
	}
	walk(root, "")
	return entities, rels
}

func pythonVisibility(name string) string {
	switch {
	case strings.HasPrefix(name, "__"):
		return "private"
	case strings.HasPrefix(name, "_"):
		return "protected"
	default:
		return "public"
	}
}
