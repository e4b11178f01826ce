package content

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSourceListItems(t *testing.T) {
	var gotPath, gotQuery, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{
					"id":     "doc-1",
					"locale": "en",
					"attributes": map[string]any{
						"title": "First",
						"body":  "Hello world",
					},
				},
				{
					"id":         "doc-2",
					"attributes": map[string]any{"name": "Second"},
				},
			},
		})
	}))
	defer srv.Close()

	source := NewHTTPSource(srv.URL+"/", "secret-token")
	items, err := source.ListItems(context.Background(), "api::article.article", ListOptions{
		OnlyPublished: true,
		IncludeNested: []string{"variants", "seo"},
	})
	require.NoError(t, err)

	assert.Equal(t, "/content/api::article.article/items", gotPath)
	assert.Contains(t, gotQuery, "status=published")
	assert.Contains(t, gotQuery, "populate=variants%2Cseo")
	assert.Equal(t, "Bearer secret-token", gotAuth)

	require.Len(t, items, 2)
	assert.Equal(t, "doc-1", items[0].ID)
	assert.Equal(t, "en", items[0].Locale)
	assert.Equal(t, "First", items[0].DisplayTitle())
	assert.Empty(t, items[1].Locale)
	assert.Equal(t, "Second", items[1].DisplayTitle())
}

func TestHTTPSourceListItemsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	source := NewHTTPSource(srv.URL, "")
	_, err := source.ListItems(context.Background(), "api::article.article", ListOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestItemDisplayTitle(t *testing.T) {
	assert.Equal(t, "T", (&Item{Attrs: map[string]any{"title": "T", "name": "N"}}).DisplayTitle())
	assert.Equal(t, "N", (&Item{Attrs: map[string]any{"name": "N"}}).DisplayTitle())
	assert.Empty(t, (&Item{Attrs: map[string]any{"title": 7}}).DisplayTitle())
	assert.Empty(t, (&Item{Attrs: map[string]any{}}).DisplayTitle())
}
