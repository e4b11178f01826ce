// Package indexer walks profile-declared content fields, embeds their text
// and upserts the vectors.
package indexer

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/contentvec/contentvec/content"
	"github.com/contentvec/contentvec/embedding"
	"github.com/contentvec/contentvec/internal/metrics"
	"github.com/contentvec/contentvec/store"
)

// Indexer drives the write path: content source -> embedding provider ->
// vector store.
type Indexer struct {
	store    *store.Store
	embedder embedding.Service
	source   content.Source
	exporter *metrics.Exporter
}

// New creates an Indexer. exporter may be nil.
func New(st *store.Store, embedder embedding.Service, source content.Source, exporter *metrics.Exporter) *Indexer {
	return &Indexer{
		store:    st,
		embedder: embedder,
		source:   source,
		exporter: exporter,
	}
}

// Counts aggregates one indexing run.
type Counts struct {
	Processed int32
	Failed    int32
}

// Run indexes every declared field of every published item for the profile.
// Per-unit failures are counted and skipped; a single bad item never aborts
// the run. Re-running overwrites existing vectors for still-present content
// and leaves vanished content to the host's delete notifications.
func (ix *Indexer) Run(ctx context.Context, profileID string) (Counts, error) {
	var counts Counts

	profile, err := ix.store.GetProfile(ctx, profileID)
	if err != nil {
		return counts, err
	}
	if profile == nil {
		return counts, errors.Wrapf(store.ErrNotFound, "profile %s", profileID)
	}

	fields := enabledFields(profile)
	if len(fields) == 0 {
		return counts, errors.Wrapf(store.ErrNoFieldsConfigured, "profile %s", profileID)
	}
	if ix.embedder.Dimensions() != int(profile.EmbeddingDimension) {
		return counts, errors.Wrapf(embedding.ErrDimensionMismatch,
			"profile %s expects %d dimensions, embedder produces %d",
			profileID, profile.EmbeddingDimension, ix.embedder.Dimensions())
	}

	for _, group := range groupByContentType(fields) {
		ix.indexContentType(ctx, profile, group, &counts)
	}

	if ix.exporter != nil {
		ix.exporter.AddIndexedUnits(int(counts.Processed), int(counts.Failed))
	}
	slog.Info("indexing run finished",
		"profile", profile.Slug,
		"processed", counts.Processed,
		"failed", counts.Failed,
	)
	return counts, nil
}

// fieldGroup is the declared paths of one content type.
type fieldGroup struct {
	contentType string
	paths       []Path
}

func enabledFields(profile *store.Profile) []*store.ProfileField {
	fields := []*store.ProfileField{}
	for _, field := range profile.Fields {
		if field.Enabled {
			fields = append(fields, field)
		}
	}
	return fields
}

// groupByContentType partitions fields preserving first-appearance order and
// parses each declaration once. Unparseable declarations are dropped with a
// log line; they can never match content anyway.
func groupByContentType(fields []*store.ProfileField) []fieldGroup {
	groups := []fieldGroup{}
	byType := map[string]int{}
	for _, field := range fields {
		path, err := ParsePath(field.FieldName)
		if err != nil {
			slog.Warn("skipping malformed field declaration",
				"content_type", field.ContentType,
				"field", field.FieldName,
				"error", err,
			)
			continue
		}
		i, ok := byType[field.ContentType]
		if !ok {
			i = len(groups)
			byType[field.ContentType] = i
			groups = append(groups, fieldGroup{contentType: field.ContentType})
		}
		groups[i].paths = append(groups[i].paths, path)
	}
	return groups
}

func (ix *Indexer) indexContentType(ctx context.Context, profile *store.Profile, group fieldGroup, counts *Counts) {
	// Structural prefetch: dotted paths need their root sub-structures
	// included in the listing, not lazy-loaded per item.
	nested := []string{}
	seen := map[string]bool{}
	for _, path := range group.paths {
		if path.Nested() && !seen[path.Root()] {
			seen[path.Root()] = true
			nested = append(nested, path.Root())
		}
	}

	items, err := ix.source.ListItems(ctx, group.contentType, content.ListOptions{
		OnlyPublished: true,
		IncludeNested: nested,
	})
	if err != nil {
		slog.Error("failed to list content items",
			"profile", profile.Slug,
			"content_type", group.contentType,
			"error", err,
		)
		counts.Failed++
		return
	}

	for _, item := range items {
		for _, path := range group.paths {
			for _, unit := range path.Extract(item.Attrs) {
				if err := ix.indexUnit(ctx, profile, group.contentType, item, unit); err != nil {
					counts.Failed++
					slog.Error("failed to index unit",
						"profile", profile.Slug,
						"content_type", group.contentType,
						"content_id", item.ID,
						"field", unit.Key,
						"error", err,
					)
					continue
				}
				counts.Processed++
			}
		}
	}
}

func (ix *Indexer) indexUnit(ctx context.Context, profile *store.Profile, contentType string, item *content.Item, unit Unit) error {
	text := flattenText(unit.Text)
	if text == "" {
		return errors.New("no usable text after flattening")
	}

	vector, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return err
	}

	metadata := map[string]any{}
	if title := item.DisplayTitle(); title != "" {
		metadata["title"] = title
	}
	if unit.Index >= 0 {
		metadata["componentIndex"] = unit.Index
	}

	_, err = ix.store.UpsertVector(ctx, &store.UpsertVector{
		ProfileID:   profile.ID,
		ContentType: contentType,
		ContentID:   item.ID,
		FieldName:   unit.Key,
		Locale:      item.Locale,
		Embedding:   vector,
		Metadata:    metadata,
	})
	return err
}
