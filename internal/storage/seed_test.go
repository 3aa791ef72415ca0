package storage

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"hybridserver/internal/document"
	herrors "hybridserver/internal/errors"
)

const seedYAML = `
html:
  b1: "<p>second</p>"
  a1: "<p>first</p>"
xml:
  x1: "<root/>"
xsd:
  s1: "<xs:schema/>"
xslt:
  t1:
    content: "<xsl:stylesheet/>"
    xsd: s1
`

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write seed file: %v", err)
	}
	return path
}

func TestSeedFromFile(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	seeded, err := SeedFromFile(ctx, store, writeSeed(t, seedYAML))
	if err != nil {
		t.Fatalf("SeedFromFile() error = %v", err)
	}

	if seeded.Count() != 5 {
		t.Errorf("Count() = %d, want 5", seeded.Count())
	}
	if got := seeded[document.HTML]; !reflect.DeepEqual(got, []string{"a1", "b1"}) {
		t.Errorf("seeded html = %v, want sorted ids", got)
	}

	got, err := store.Gateway(document.HTML).Get(ctx, "a1")
	if err != nil || got != "<p>first</p>" {
		t.Errorf("Get(a1) = %q, %v", got, err)
	}

	ref, err := store.Gateway(document.XSLT).(SchemaResolver).SchemaRef(ctx, "t1")
	if err != nil || ref != "s1" {
		t.Errorf("SchemaRef(t1) = %q, %v", ref, err)
	}
}

func TestSeedRejectsBrokenTransforms(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		code herrors.ErrorCode
	}{
		{
			name: "unknown schema",
			yaml: "xslt:\n  t1:\n    content: \"<xsl/>\"\n    xsd: nope\n",
			code: herrors.SchemaMissing,
		},
		{
			name: "no schema",
			yaml: "xslt:\n  t1:\n    content: \"<xsl/>\"\n",
			code: herrors.ValidationFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			_, err := SeedFromFile(context.Background(), store, writeSeed(t, tt.yaml))
			if !herrors.Is(err, tt.code) {
				t.Fatalf("error = %v, want code %s", err, tt.code)
			}
			if ok, _ := store.Gateway(document.XSLT).Exists(context.Background(), "t1"); ok {
				t.Error("rejected transform must not be stored")
			}
		})
	}
}

func TestLoadSeedFileErrors(t *testing.T) {
	if _, err := LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}
	if _, err := LoadSeedFile(writeSeed(t, "html: [unterminated")); err == nil {
		t.Error("expected error for invalid YAML")
	}
}
