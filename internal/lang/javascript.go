package lang

import (
	"github.com/smacker/go-tree-sitter/javascript"

	"github.com/phobologic/jsharness/internal/model"
)

func init() {
	register(&Language{
		Name:       "javascript",
		Kind:       model.JavaScript,
		Extensions: []string{".js"},
		grammar:    javascript.GetLanguage(),
	})
}
