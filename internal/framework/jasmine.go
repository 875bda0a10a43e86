package framework

import "regexp"

// Jasmine is the built-in Jasmine definition. Jasmine specs carry no fixture markup.
var Jasmine Definition = newDefinition(
	"jasmine",
	[]string{"jasmine.js", "jasmine-html.js", "boot.js", "jasmine.css"},
	regexp.MustCompile(`(?m)(^|[^.\w])(describe|it)\s*\(`),
	"",
)
