package parser

import (
	sitter "github.com/smacker/go-tree-sitter"

	"codegraph/internal/types"
)

// extractJSSymbols adapts the teacher's extractJSSymbols walk: class and
// function declarations, arrow-function const bindings, and import sources.
func extractJSSymbols(root *sitter.Node, path, content string) ([]types.Entity, []types.ParsedRelationship) {
	return extractJSLikeSymbols(root, path, content, "javascript")
}

func extractJSLikeSymbols(root *sitter.Node, path, content, language string) ([]types.Entity, []types.ParsedRelationship) {
	file := fileEntity(path, language)
	entities := []types.Entity{file}
	var rels []types.ParsedRelationship

	hasExport := func(n *sitter.Node) bool {
		parent := n.Parent()
		return parent != nil && parent.Type() == "export_statement"
	}
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
		case "class_declaration":
			if nameNode := n.ChildByFieldName("name"); nameNode != nil {
				name := nodeText(nameNode, content)
				exported := hasExport(n)
				entities = append(entities, types.Entity{
					Name: name, Type: types.EntityClass, FilePath: path, Location: loc(n),
					Metadata: map[string]any{"exported": exported, "visibility": visibilityOf(exported)},
				})
				contains(name, types.EntityClass)
				extractJSMethods(n, name, path, content, &entities, &rels)
			}

		case "interface_declaration":
			if nameNode := n.ChildByFieldName("name"); nameNode != nil {
				name := nodeText(nameNode, content)
				exported := hasExport(n)
				entities = append(entities, types.Entity{
					Name: name, Type: types.EntityInterface, FilePath: path, Location: loc(n),
					Metadata: map[string]any{"exported": exported, "visibility": visibilityOf(exported)},
				})
				contains(name, types.EntityInterface)
			}

		case "function_declaration":
			if nameNode := n.ChildByFieldName("name"); nameNode != nil {
				name := nodeText(nameNode, content)
				exported := hasExport(n)
				sig := "function " + name + nodeText(n.ChildByFieldName("parameters"), content)
				entities = append(entities, types.Entity{
					Name: name, Type: types.EntityFunction, FilePath: path, Location: loc(n),
					Metadata: map[string]any{"signature": sig, "exported": exported, "visibility": visibilityOf(exported)},
				})
				contains(name, types.EntityFunction)
			}

		case "lexical_declaration":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				child := n.NamedChild(i)
				if child.Type() != "variable_declarator" {
					continue
				}
				nameNode := child.ChildByFieldName("name")
				valueNode := child.ChildByFieldName("value")
				if nameNode == nil || valueNode == nil {
					continue
				}
				if valueNode.Type() == "arrow_function" || valueNode.Type() == "function" {
					name := nodeText(nameNode, content)
					exported := hasExport(n)
					entities = append(entities, types.Entity{
						Name: name, Type: types.EntityFunction, FilePath: path, Location: loc(child),
						Metadata: map[string]any{"signature": "const " + name + " = ...", "exported": exported, "visibility": visibilityOf(exported)},
					})
					contains(name, types.EntityFunction)
				}
			}

		case "import_statement":
			if sourceNode := n.ChildByFieldName("source"); sourceNode != nil {
				source := trimQuotes(nodeText(sourceNode, content))
				rels = append(rels, types.ParsedRelationship{
					From:     types.EntityRef{Name: file.Name, FilePath: path, Type: types.EntityFile},
					To:       types.EntityRef{Name: source, FilePath: "mod://" + source, Type: types.EntityModule},
					Type:     types.RelImports,
					Metadata: map[string]any{"source": source},
				})
			}
		}

		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return entities, rels
}

func extractJSMethods(classNode *sitter.Node, owner, path, content string, entities *[]types.Entity, rels *[]types.ParsedRelationship) {
	body := classNode.ChildByFieldName("body")
	if body == nil {
		return
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)
		if member.Type() != "method_definition" {
			continue
		}
		nameNode := member.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		name := nodeText(nameNode, content)
		*entities = append(*entities, types.Entity{
			Name: name, Type: types.EntityMethod, FilePath: path, Location: loc(member),
			Metadata: map[string]any{"owner": owner, "signature": name + nodeText(member.ChildByFieldName("parameters"), content)},
		})
		*rels = append(*rels, types.ParsedRelationship{
			From: types.EntityRef{Name: owner, FilePath: path, Type: types.EntityClass},
			To:   types.EntityRef{Name: name, FilePath: path, Type: types.EntityMethod},
			Type: types.RelHasMethod,
		})
	}
}
