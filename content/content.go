// Package content defines the boundary to the host content-management
// runtime that owns the underlying documents.
package content

import "context"

// Item is one published content item as exposed by the host. Attrs carries
// arbitrary named scalar/array fields, including any nested sub-structures
// requested through ListOptions.IncludeNested.
type Item struct {
	ID     string
	Locale string
	Attrs  map[string]any
}

// DisplayTitle returns whatever human-readable title the item exposes, or ""
// when it has none. Used to tag stored vector metadata.
func (i *Item) DisplayTitle() string {
	for _, key := range []string{"title", "name"} {
		if v, ok := i.Attrs[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// ListOptions controls a content listing call.
type ListOptions struct {
	// OnlyPublished restricts the listing to published items.
	OnlyPublished bool
	// IncludeNested names the nested sub-structures to prefetch with each
	// item, so dotted field paths resolve without per-item lazy loads.
	IncludeNested []string
}

// Source lists content items from the host runtime.
type Source interface {
	ListItems(ctx context.Context, contentType string, opts ListOptions) ([]*Item, error)
}
