package lorebook

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog is an ordered collection of chunks, typically one character's
// full lorebook before retrieval narrows it down.
type Catalog struct {
	Character string  `yaml:"character,omitempty"`
	Chunks    []Chunk `yaml:"chunks"`
}

// Len reports the number of chunks.
func (cat *Catalog) Len() int { return len(cat.Chunks) }

// ByID returns the first chunk with the given ID, or nil.
func (cat *Catalog) ByID(id string) *Chunk {
	for i := range cat.Chunks {
		if cat.Chunks[i].ID == id {
			return &cat.Chunks[i]
		}
	}
	return nil
}

// Categories returns the distinct categories present, sorted.
func (cat *Catalog) Categories() []string {
	seen := map[string]bool{}
	for i := range cat.Chunks {
		seen[cat.Chunks[i].Category] = true
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Merge appends chunks from other. Duplicate IDs are kept here; the
// retriever deduplicates at query time so load order stays transparent.
func (cat *Catalog) Merge(other *Catalog) {
	cat.Chunks = append(cat.Chunks, other.Chunks...)
}

// LoadFile reads one YAML catalog file.
func LoadFile(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("lorebook: read %s: %w", path, err)
	}
	var cat Catalog
	if err := yaml.Unmarshal(raw, &cat); err != nil {
		return nil, fmt.Errorf("lorebook: parse %s: %w", path, err)
	}
	return &cat, nil
}

// LoadDir reads every .yaml/.yml file under dir (non-recursive) and merges
// them into one catalog, in filename order.
func LoadDir(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("lorebook: read dir %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	merged := &Catalog{}
	for _, name := range names {
		cat, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		merged.Merge(cat)
	}
	return merged, nil
}

// Save writes the catalog as YAML.
func (cat *Catalog) Save(path string) error {
	raw, err := yaml.Marshal(cat)
	if err != nil {
		return fmt.Errorf("lorebook: marshal catalog: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("lorebook: write %s: %w", path, err)
	}
	return nil
}
