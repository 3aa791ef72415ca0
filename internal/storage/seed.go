package storage

import (
	"context"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"hybridserver/internal/document"
	herrors "hybridserver/internal/errors"
)

// SeedFile is the YAML layout of a seed document file:
//
//	html:
//	  <id>: <content>
//	xsd:
//	  <id>: <content>
//	xslt:
//	  <id>:
//	    content: <content>
//	    xsd: <schema id>
type SeedFile struct {
	HTML map[string]string        `yaml:"html"`
	XML  map[string]string        `yaml:"xml"`
	XSD  map[string]string        `yaml:"xsd"`
	XSLT map[string]SeedTransform `yaml:"xslt"`
}

// SeedTransform is a transform entry with its schema reference.
type SeedTransform struct {
	Content string `yaml:"content"`
	XSD     string `yaml:"xsd"`
}

// Seeded lists the ids loaded per type, sorted.
type Seeded map[document.Type][]string

// Count returns the total number of documents loaded.
func (s Seeded) Count() int {
	n := 0
	for _, ids := range s {
		n += len(ids)
	}
	return n
}

// LoadSeedFile reads and decodes a seed file.
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var f SeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return &f, nil
}

// SeedFromFile loads the documents in path into store.
func SeedFromFile(ctx context.Context, store Store, path string) (Seeded, error) {
	f, err := LoadSeedFile(path)
	if err != nil {
		return nil, err
	}
	return Seed(ctx, store, f)
}

// Seed writes every document of f into store. Schemas are written before
// transforms, and a transform whose schema is unknown is rejected the same
// way the create route rejects it.
func Seed(ctx context.Context, store Store, f *SeedFile) (Seeded, error) {
	seeded := make(Seeded)

	plain := []struct {
		typ  document.Type
		docs map[string]string
	}{
		{document.HTML, f.HTML},
		{document.XML, f.XML},
		{document.XSD, f.XSD},
	}
	for _, p := range plain {
		gw := store.Gateway(p.typ)
		for _, id := range sortedKeys(p.docs) {
			if err := gw.Create(ctx, id, p.docs[id], ""); err != nil {
				return nil, err
			}
			seeded[p.typ] = append(seeded[p.typ], id)
		}
	}

	schemas := store.Gateway(document.XSD)
	transforms := store.Gateway(document.XSLT)
	ids := make([]string, 0, len(f.XSLT))
	for id := range f.XSLT {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		tr := f.XSLT[id]
		if tr.XSD == "" {
			return nil, herrors.Newf(herrors.ValidationFailure, "seed transform %s has no xsd", id)
		}
		ok, err := schemas.Exists(ctx, tr.XSD)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, herrors.Newf(herrors.SchemaMissing, "seed transform %s references unknown xsd %s", id, tr.XSD)
		}
		if err := transforms.Create(ctx, id, tr.Content, tr.XSD); err != nil {
			return nil, err
		}
		seeded[document.XSLT] = append(seeded[document.XSLT], id)
	}

	return seeded, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
