package indexer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Segment is one step of a field path: a named attribute, optionally pinned
// to a single element of a repeated sub-structure.
type Segment struct {
	Name string
	// Index pins a repeated segment to one element; -1 means "not indexed",
	// which expands over every element when the value is an array.
	Index int
}

// Path is a parsed field declaration such as "title", "seo.metaTitle" or
// "variants[2].text". It replaces ad hoc string splitting at extraction sites.
type Path struct {
	raw      string
	segments []Segment
}

// ParsePath parses a dotted, optionally bracket-indexed field path.
func ParsePath(raw string) (Path, error) {
	if raw == "" {
		return Path{}, errors.New("field path cannot be empty")
	}
	parts := strings.Split(raw, ".")
	segments := make([]Segment, 0, len(parts))
	for _, part := range parts {
		segment := Segment{Name: part, Index: -1}
		if open := strings.IndexByte(part, '['); open >= 0 {
			if !strings.HasSuffix(part, "]") {
				return Path{}, errors.Errorf("malformed index in field path segment %q", part)
			}
			index, err := strconv.Atoi(part[open+1 : len(part)-1])
			if err != nil || index < 0 {
				return Path{}, errors.Errorf("malformed index in field path segment %q", part)
			}
			segment.Name = part[:open]
			segment.Index = index
		}
		if segment.Name == "" {
			return Path{}, errors.Errorf("empty segment in field path %q", raw)
		}
		segments = append(segments, segment)
	}
	return Path{raw: raw, segments: segments}, nil
}

func (p Path) String() string {
	return p.raw
}

// Root returns the first segment name. Dotted paths need their root
// sub-structure prefetched by the content source.
func (p Path) Root() string {
	return p.segments[0].Name
}

// Nested reports whether the path descends into a sub-structure.
func (p Path) Nested() bool {
	return len(p.segments) > 1
}

// Unit is one indexable text value extracted from an item. Key is the field
// name with element indexes appended (e.g. "variants.text[1]") so every
// repetition owns a distinct vector record.
type Unit struct {
	Key   string
	Text  string
	Index int
}

// Extract resolves the path against an item's attributes. A repeated segment
// without an explicit index expands over every array element. Absent or
// non-text terminal values are skipped, not errors.
func (p Path) Extract(attrs map[string]any) []Unit {
	return walk(attrs, p.segments, p.raw, -1)
}

func walk(value any, segments []Segment, key string, index int) []Unit {
	if len(segments) == 0 {
		text, ok := value.(string)
		if !ok || text == "" {
			return nil
		}
		return []Unit{{Key: key, Text: text, Index: index}}
	}

	attrs, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	segment := segments[0]
	next, ok := attrs[segment.Name]
	if !ok {
		return nil
	}

	if elements, ok := next.([]any); ok {
		if segment.Index >= 0 {
			if segment.Index >= len(elements) {
				return nil
			}
			return walk(elements[segment.Index], segments[1:], key, segment.Index)
		}
		units := []Unit{}
		for i, element := range elements {
			units = append(units, walk(element, segments[1:], fmt.Sprintf("%s[%d]", key, i), i)...)
		}
		return units
	}

	return walk(next, segments[1:], key, index)
}
