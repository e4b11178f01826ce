package content

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// HTTPSource lists content items from the host CMS over its JSON API.
type HTTPSource struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPSource creates a Source backed by the host CMS at baseURL.
func NewHTTPSource(baseURL, token string) *HTTPSource {
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type listItemsResponse struct {
	Data []struct {
		ID     string         `json:"id"`
		Locale string         `json:"locale"`
		Attrs  map[string]any `json:"attributes"`
	} `json:"data"`
}

// ListItems fetches all items of the content type, asking the host to embed
// the named nested sub-structures in the same response.
func (s *HTTPSource) ListItems(ctx context.Context, contentType string, opts ListOptions) ([]*Item, error) {
	endpoint := fmt.Sprintf("%s/content/%s/items", s.baseURL, url.PathEscape(contentType))

	query := url.Values{}
	if opts.OnlyPublished {
		query.Set("status", "published")
	}
	if len(opts.IncludeNested) > 0 {
		query.Set("populate", strings.Join(opts.IncludeNested, ","))
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build content listing request")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list content items for %s", contentType)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("content source returned %d for %s", resp.StatusCode, contentType)
	}

	var payload listItemsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.Wrap(err, "failed to decode content listing")
	}

	items := make([]*Item, 0, len(payload.Data))
	for _, entry := range payload.Data {
		items = append(items, &Item{
			ID:     entry.ID,
			Locale: entry.Locale,
			Attrs:  entry.Attrs,
		})
	}
	return items, nil
}
