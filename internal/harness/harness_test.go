package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/phobologic/jsharness/internal/model"
)

const tmpl = `<html><head>
@@ReferencedCSSFiles@@
@@ReferencedJSFiles@@
</head><body><div id="fixture">@@FixtureContent@@</div></body></html>`

func staged(name string, kind model.PathKind) *model.ReferencedFile {
	return &model.ReferencedFile{
		Path:       filepath.Join("/src", name),
		StagedPath: filepath.Join("/build", name),
		Kind:       kind,
		IsLocal:    true,
	}
}

func TestRenderOrder(t *testing.T) {
	t.Parallel()

	root := staged("test.js", model.JavaScript)
	root.IsFileUnderTest = true
	files := []*model.ReferencedFile{
		staged("lib.js", model.JavaScript),
		staged("common.js", model.JavaScript),
		root,
	}

	out := Render(tmpl, files, "", "/build")

	pos1 := strings.Index(out, ScriptStatement("lib.js"))
	pos2 := strings.Index(out, ScriptStatement("common.js"))
	pos3 := strings.Index(out, ScriptStatement("test.js"))
	if pos1 < 0 || pos2 < 0 || pos3 < 0 {
		t.Fatalf("missing script statements:\n%s", out)
	}
	if !(pos1 < pos2 && pos2 < pos3) {
		t.Errorf("wrong order: %d, %d, %d", pos1, pos2, pos3)
	}
}

func TestRenderRemovesTokens(t *testing.T) {
	t.Parallel()

	out := Render(tmpl+tmpl, nil, "", "/build")
	for _, tok := range []string{ScriptsToken, StylesToken, FixtureToken} {
		if strings.Contains(out, tok) {
			t.Errorf("token %s left in output", tok)
		}
	}
}

func TestRenderTokensInsideFixture(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		fixture string
		want    string
	}{
		{"scripts token", "<p>@@ReferencedJSFiles@@</p>", "<p></p>"},
		{"fixture token", "<p>@@FixtureContent@@</p>", "<p></p>"},
		{"nested token", "<p>@@Fixture@@ReferencedCSSFiles@@Content@@</p>", "<p></p>"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := Render(tmpl, nil, tt.fixture, "/build")
			for _, tok := range []string{ScriptsToken, StylesToken, FixtureToken} {
				if strings.Contains(out, tok) {
					t.Errorf("token %s left in output:\n%s", tok, out)
				}
			}
			if !strings.Contains(out, `<div id="fixture">`+tt.want+`</div>`) {
				t.Errorf("fixture not substituted:\n%s", out)
			}
		})
	}
}

func TestRenderStylesAndFixture(t *testing.T) {
	t.Parallel()

	files := []*model.ReferencedFile{
		staged("style.css", model.CSS),
		staged("page.html", model.HTML),
		staged("lib.js", model.JavaScript),
	}
	fixture := "<div> some <a>fixture</a> content </div>"
	out := Render(tmpl, files, fixture, "/build")

	if !strings.Contains(out, StyleStatement("style.css")) {
		t.Errorf("missing style statement:\n%s", out)
	}
	if strings.Contains(out, "page.html") {
		t.Error("html dependencies should not be emitted")
	}
	if !strings.Contains(out, `<div id="fixture">`+fixture+`</div>`) {
		t.Errorf("fixture not substituted:\n%s", out)
	}
}

func TestRenderRemoteAndSkipped(t *testing.T) {
	t.Parallel()

	embedded := staged("qunit.js", model.JavaScript)
	embedded.Embedded = true
	unstaged := &model.ReferencedFile{Path: "/src/test.html", Kind: model.HTML, IsLocal: true}
	files := []*model.ReferencedFile{
		{Path: "http://a.com/lib.js", Kind: model.JavaScript},
		embedded,
		unstaged,
	}

	out := Render(tmpl, files, "", "/build")
	if !strings.Contains(out, ScriptStatement("http://a.com/lib.js")) {
		t.Errorf("remote script missing:\n%s", out)
	}
	if strings.Contains(out, "qunit.js") {
		t.Error("embedded file should not be emitted")
	}
}

func TestStatementsEscape(t *testing.T) {
	t.Parallel()

	got := ScriptStatement(`a"b.js`)
	want := `<script type="text/javascript" src="a&#34;b.js"></script>`
	if got != want {
		t.Errorf("ScriptStatement = %q, want %q", got, want)
	}
	if got := StyleStatement("s.css"); got != `<link rel="stylesheet" href="s.css" type="text/css"/>` {
		t.Errorf("StyleStatement = %q", got)
	}
}
