package framework

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/jsharness/internal/lang"
	"github.com/phobologic/jsharness/internal/model"
)

// extractFixture returns the inner markup of the element whose id is id.
func extractFixture(source []byte, id string) string {
	l := lang.ForKind(model.HTML)
	if l == nil || len(source) == 0 {
		return ""
	}
	parser := l.NewParser()
	defer parser.Close()

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return ""
	}
	defer tree.Close()

	el := findByID(tree.RootNode(), source, id)
	if el == nil {
		return ""
	}

	start, end := el.StartByte(), el.EndByte()
	for i := 0; i < int(el.ChildCount()); i++ {
		child := el.Child(i)
		switch child.Type() {
		case "start_tag":
			start = child.EndByte()
		case "end_tag":
			end = child.StartByte()
		}
	}
	if end < start {
		return ""
	}
	return strings.TrimSpace(string(source[start:end]))
}

func findByID(node *sitter.Node, source []byte, id string) *sitter.Node {
	if node.Type() == "element" {
		for i := 0; i < int(node.ChildCount()); i++ {
			child := node.Child(i)
			if child.Type() == "start_tag" && attrValue(child, source, "id") == id {
				return node
			}
		}
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if found := findByID(node.NamedChild(i), source, id); found != nil {
			return found
		}
	}
	return nil
}

// attrValue returns the value of the named attribute on a start tag.
func attrValue(tag *sitter.Node, source []byte, name string) string {
	for i := 0; i < int(tag.NamedChildCount()); i++ {
		attr := tag.NamedChild(i)
		if attr.Type() != "attribute" {
			continue
		}
		var key, value string
		for j := 0; j < int(attr.NamedChildCount()); j++ {
			part := attr.NamedChild(j)
			switch part.Type() {
			case "attribute_name":
				key = lang.NodeText(part, source)
			case "attribute_value":
				value = lang.NodeText(part, source)
			case "quoted_attribute_value":
				if part.NamedChildCount() > 0 {
					value = lang.NodeText(part.NamedChild(0), source)
				}
			}
		}
		if strings.EqualFold(key, name) {
			return value
		}
	}
	return ""
}
