package lang

import (
	"github.com/smacker/go-tree-sitter/html"

	"github.com/phobologic/jsharness/internal/model"
)

func init() {
	register(&Language{
		Name:       "html",
		Kind:       model.HTML,
		Extensions: []string{".html", ".htm"},
		grammar:    html.GetLanguage(),
	})
	// Stylesheets are leaves.
	register(&Language{
		Name:       "css",
		Kind:       model.CSS,
		Extensions: []string{".css"},
	})
}
