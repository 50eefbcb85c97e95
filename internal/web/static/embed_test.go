package static

import (
	"bytes"
	"strings"
	"testing"
)

func TestAsset(t *testing.T) {
	for _, name := range []string{"main.js", "style.css", "index.html"} {
		if _, err := Asset(name); err != nil {
			t.Errorf("missing asset %s: %v", name, err)
		}
	}
	if _, err := Asset("missing.js"); err == nil {
		t.Error("expected error for unknown asset")
	}
}

func TestRenderIndex(t *testing.T) {
	tests := []struct {
		name       string
		page       Page
		contains   []string
		notContain []string
	}{
		{
			name:       "served",
			page:       Page{AssetPrefix: "/static/"},
			contains:   []string{`href="/static/style.css"`, `src="/static/main.js"`},
			notContain: []string{"data.js", "vectors.js"},
		},
		{
			name:     "exported",
			page:     Page{AssetPrefix: "static/", Inline: true, Vectors: true},
			contains: []string{`src="static/data.js"`, `src="static/vectors.js"`, `src="static/main.js"`},
		},
		{
			name:       "exported without vectors",
			page:       Page{AssetPrefix: "static/", Inline: true},
			contains:   []string{`src="static/data.js"`, `src="static/main.js"`},
			notContain: []string{"vectors.js"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := RenderIndex(&buf, tc.page); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			out := buf.String()
			for _, s := range tc.contains {
				if !strings.Contains(out, s) {
					t.Errorf("expected %q in page", s)
				}
			}
			for _, s := range tc.notContain {
				if strings.Contains(out, s) {
					t.Errorf("unexpected %q in page", s)
				}
			}
		})
	}
}
