package indexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		raw     string
		wantErr bool
		nested  bool
		root    string
	}{
		{raw: "title", root: "title"},
		{raw: "seo.metaTitle", nested: true, root: "seo"},
		{raw: "variants[2].text", nested: true, root: "variants"},
		{raw: "a.b.c", nested: true, root: "a"},
		{raw: "", wantErr: true},
		{raw: "a..b", wantErr: true},
		{raw: "a[", wantErr: true},
		{raw: "a[x]", wantErr: true},
		{raw: "a[-1]", wantErr: true},
		{raw: "[0]", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			path, err := ParsePath(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.raw, path.String())
			assert.Equal(t, tt.nested, path.Nested())
			assert.Equal(t, tt.root, path.Root())
		})
	}
}

func TestPathExtract(t *testing.T) {
	attrs := map[string]any{
		"title": "Plain title",
		"seo": map[string]any{
			"metaTitle": "Meta",
			"score":     42,
		},
		"variants": []any{
			map[string]any{"text": "first"},
			map[string]any{"text": "second"},
			map[string]any{"text": "third"},
		},
		"empty": "",
	}

	t.Run("simple field", func(t *testing.T) {
		path, err := ParsePath("title")
		require.NoError(t, err)
		units := path.Extract(attrs)
		require.Len(t, units, 1)
		assert.Equal(t, "title", units[0].Key)
		assert.Equal(t, "Plain title", units[0].Text)
		assert.Equal(t, -1, units[0].Index)
	})

	t.Run("nested field", func(t *testing.T) {
		path, err := ParsePath("seo.metaTitle")
		require.NoError(t, err)
		units := path.Extract(attrs)
		require.Len(t, units, 1)
		assert.Equal(t, "seo.metaTitle", units[0].Key)
		assert.Equal(t, "Meta", units[0].Text)
	})

	t.Run("repeated segment expands every element", func(t *testing.T) {
		path, err := ParsePath("variants.text")
		require.NoError(t, err)
		units := path.Extract(attrs)
		require.Len(t, units, 3)
		assert.Equal(t, "variants.text[0]", units[0].Key)
		assert.Equal(t, "variants.text[1]", units[1].Key)
		assert.Equal(t, "variants.text[2]", units[2].Key)
		assert.Equal(t, "second", units[1].Text)
		assert.Equal(t, 1, units[1].Index)
	})

	t.Run("explicit index picks one element", func(t *testing.T) {
		path, err := ParsePath("variants[1].text")
		require.NoError(t, err)
		units := path.Extract(attrs)
		require.Len(t, units, 1)
		assert.Equal(t, "variants[1].text", units[0].Key)
		assert.Equal(t, "second", units[0].Text)
		assert.Equal(t, 1, units[0].Index)
	})

	t.Run("index out of range yields nothing", func(t *testing.T) {
		path, err := ParsePath("variants[9].text")
		require.NoError(t, err)
		assert.Empty(t, path.Extract(attrs))
	})

	t.Run("absent field yields nothing", func(t *testing.T) {
		path, err := ParsePath("missing")
		require.NoError(t, err)
		assert.Empty(t, path.Extract(attrs))
	})

	t.Run("non-text terminal yields nothing", func(t *testing.T) {
		path, err := ParsePath("seo.score")
		require.NoError(t, err)
		assert.Empty(t, path.Extract(attrs))
	})

	t.Run("empty string yields nothing", func(t *testing.T) {
		path, err := ParsePath("empty")
		require.NoError(t, err)
		assert.Empty(t, path.Extract(attrs))
	})
}

func TestFlattenText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain text", in: "hello world", want: "hello world"},
		{name: "collapses whitespace", in: "hello\n\n  world\t", want: "hello world"},
		{name: "strips heading markers", in: "# Title\n\nBody text", want: "Title Body text"},
		{name: "strips emphasis", in: "some **bold** and *italic* words", want: "some bold and italic words"},
		{name: "keeps link text", in: "see [the docs](https://example.com)", want: "see the docs"},
		{name: "keeps code content", in: "```\nfmt.Println(1)\n```", want: "fmt.Println(1)"},
		{name: "empty", in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, flattenText(tt.in))
		})
	}
}
