package framework

import "regexp"

// QUnit is the built-in QUnit definition. Its calls must start a statement so
// that module(...) passed as an argument, as in Angular's
// beforeEach(module('app')), is not taken for a QUnit module.
var QUnit Definition = newDefinition(
	"qunit",
	[]string{"qunit.js", "qunit.css"},
	regexp.MustCompile(`(?m)(^|[;{}])\s*(QUnit\.)?(module|test|asyncTest)\s*\(`),
	"qunit-fixture",
)
