package parser

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"codegraph/internal/types"
)

// extractGoSymbols walks a Go AST, adapted from the teacher's
// TreeSitterParser.extractGoSymbols node-type switch: the same node types
// are recognized, but each symbol becomes a types.Entity plus file-contains
// and class-has-method relationships instead of a Mangle symbol_graph fact.
func extractGoSymbols(root *sitter.Node, path, content string) ([]types.Entity, []types.ParsedRelationship) {
	file := fileEntity(path, "go")
	entities := []types.Entity{file}
	var rels []types.ParsedRelationship

	contains := func(childName string, childType types.EntityType) {
		rels = append(rels, types.ParsedRelationship{
			From: types.EntityRef{Name: file.Name, FilePath: path, Type: types.EntityFile},
			To:   types.EntityRef{Name: childName, FilePath: path, Type: childType},
			Type: types.RelContains,
		})
	}

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "function_declaration":
			if nameNode := n.ChildByFieldName("name"); nameNode != nil {
				name := nodeText(nameNode, content)
				sig := fmt.Sprintf("func %s%s", name, nodeText(n.ChildByFieldName("parameters"), content))
				if r := nodeText(n.ChildByFieldName("result"), content); r != "" {
					sig += " " + r
				}
				entities = append(entities, types.Entity{
					Name: name, Type: types.EntityFunction, FilePath: path, Location: loc(n),
					Metadata: map[string]any{"signature": sig, "exported": isExportedGoName(name), "visibility": visibilityOf(isExportedGoName(name))},
				})
				contains(name, types.EntityFunction)
			}

		case "method_declaration":
			nameNode := n.ChildByFieldName("name")
			receiverNode := n.ChildByFieldName("receiver")
			if nameNode != nil && receiverNode != nil {
				name := nodeText(nameNode, content)
				receiver := receiverTypeName(receiverNode, content)
				sig := fmt.Sprintf("func (%s) %s%s", receiver, name, nodeText(n.ChildByFieldName("parameters"), content))
				entities = append(entities, types.Entity{
					Name: name, Type: types.EntityMethod, FilePath: path, Location: loc(n),
					Metadata: map[string]any{"signature": sig, "receiver": receiver, "exported": isExportedGoName(name), "visibility": visibilityOf(isExportedGoName(name))},
				})
				if receiver != "" {
					rels = append(rels, types.ParsedRelationship{
						From: types.EntityRef{Name: receiver, FilePath: path, Type: types.EntityClass},
						To:   types.EntityRef{Name: name, FilePath: path, Type: types.EntityMethod},
						Type: types.RelHasMethod,
					})
				}
				contains(name, types.EntityMethod)
			}

		case "type_declaration":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				spec := n.NamedChild(i)
				if spec.Type() != "type_spec" {
					continue
				}
				nameNode := spec.ChildByFieldName("name")
				typeNode := spec.ChildByFieldName("type")
				if nameNode == nil {
					continue
				}
				name := nodeText(nameNode, content)
				kind := types.EntityTypeAlias
				if typeNode != nil {
					switch typeNode.Type() {
					case "struct_type":
						kind = types.EntityClass
					case "interface_type":
						kind = types.EntityInterface
					}
				}
				entities = append(entities, types.Entity{
					Name: name, Type: kind, FilePath: path, Location: loc(spec),
					Metadata: map[string]any{"exported": isExportedGoName(name), "visibility": visibilityOf(isExportedGoName(name))},
				})
				contains(name, kind)

				if typeNode != nil && typeNode.Type() == "struct_type" {
					extractGoFields(typeNode, name, path, content, &entities, &rels)
				}
			}

		case "import_declaration":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				spec := n.NamedChild(i)
				if spec.Type() != "import_spec" {
					continue
				}
				if pathNode := spec.ChildByFieldName("path"); pathNode != nil {
					importPath := trimQuotes(nodeText(pathNode, content))
					rels = append(rels, types.ParsedRelationship{
						From:     types.EntityRef{Name: file.Name, FilePath: path, Type: types.EntityFile},
						To:       types.EntityRef{Name: importPath, FilePath: "pkg://" + importPath, Type: types.EntityPackage},
						Type:     types.RelImports,
						Metadata: map[string]any{"importPath": importPath},
					})
				}
			}
		}

		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return entities, rels
}

func extractGoFields(structType *sitter.Node, owner, path, content string, entities *[]types.Entity, rels *[]types.ParsedRelationship) {
	block := structType.ChildByFieldName("fields")
	if block == nil {
		return
	}
	for i := 0; i < int(block.NamedChildCount()); i++ {
		field := block.NamedChild(i)
		if field.Type() != "field_declaration" {
			continue
		}
		nameNode := field.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		name := nodeText(nameNode, content)
		fieldType := nodeText(field.ChildByFieldName("type"), content)
		*entities = append(*entities, types.Entity{
			Name: name, Type: types.EntityField, FilePath: path, Location: loc(field),
			Metadata: map[string]any{"signature": name + " " + fieldType, "owner": owner, "exported": isExportedGoName(name)},
		})
		*rels = append(*rels, types.ParsedRelationship{
			From: types.EntityRef{Name: owner, FilePath: path, Type: types.EntityClass},
			To:   types.EntityRef{Name: name, FilePath: path, Type: types.EntityField},
			Type: types.RelContains,
		})
	}
}

func receiverTypeName(receiver *sitter.Node, content string) string {
	for i := 0; i < int(receiver.NamedChildCount()); i++ {
		param := receiver.NamedChild(i)
		typeNode := param.ChildByFieldName("type")
		if typeNode == nil {
			continue
		}
		name := nodeText(typeNode, content)
		// strip a leading pointer star so the receiver resolves to the
		// struct's own entity name rather than "*Foo".
		if len(name) > 0 && name[0] == '*' {
			name = name[1:]
		}
		return name
	}
	return ""
}

func visibilityOf(exported bool) string {
	if exported {
		return "public"
	}
	return "private"
}

func trimQuotes(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}
