package schema

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/johndauphine/crosswalk/internal/catalog"
)

const sampleSchema = `
tables:
  - schema: ncrn
    name: park
    columns:
      - {name: park_id, type: integer}
      - {name: park_code, type: text}
    unique: ["park_code"]
  - schema: ncrn
    name: location
    load: statements
    group: sites
    columns:
      - {name: location_id, type: integer}
      - {name: park_id, type: integer}
      - {name: plot_name, type: text, nullable: true}
    unique: ["park_id, plot_name"]
`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(sampleSchema))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(s.Tables) != 2 {
		t.Fatalf("got %d tables, want 2", len(s.Tables))
	}

	park, ok := s.Table(catalog.ID("ncrn", "park"))
	if !ok {
		t.Fatal("park not found")
	}
	if park.Load != LoadBulk {
		t.Errorf("park load = %q, want default bulk", park.Load)
	}

	loc, _ := s.Table(catalog.ID("ncrn", "location"))
	if loc.Load != LoadStatements || loc.Group != "sites" {
		t.Errorf("location load/group = %q/%q", loc.Load, loc.Group)
	}
	groups := loc.UniqueGroups()
	if len(groups) != 1 || len(groups[0]) != 2 || groups[0][1] != "plot_name" {
		t.Errorf("UniqueGroups() = %v", groups)
	}
	if c, ok := loc.Column("plot_name"); !ok || !c.Nullable {
		t.Errorf("plot_name should be nullable: %+v", c)
	}
	if got := strings.Join(loc.ColumnNames(), ","); got != "location_id,park_id,plot_name" {
		t.Errorf("ColumnNames() = %s", got)
	}
}

func TestParseRejectsInvalidSchemas(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "duplicate table",
			yaml: `
tables:
  - {schema: a, name: t, columns: [{name: id}]}
  - {schema: a, name: t, columns: [{name: id}]}
`,
			wantErr: "declared twice",
		},
		{
			name:    "no columns",
			yaml:    "tables:\n  - {schema: a, name: t}\n",
			wantErr: "no columns",
		},
		{
			name:    "duplicate column",
			yaml:    "tables:\n  - {schema: a, name: t, columns: [{name: id}, {name: id}]}\n",
			wantErr: "twice",
		},
		{
			name:    "unknown unique column",
			yaml:    "tables:\n  - {schema: a, name: t, columns: [{name: id}], unique: [\"id, other\"]}\n",
			wantErr: "unknown column",
		},
		{
			name:    "bad load mode",
			yaml:    "tables:\n  - {schema: a, name: t, load: stream, columns: [{name: id}]}\n",
			wantErr: "invalid load mode",
		},
		{
			name:    "bad identifier",
			yaml:    "tables:\n  - {schema: a, name: \"t; drop\", columns: [{name: id}]}\n",
			wantErr: "invalid character",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadAndMarkExpectedEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	if err := os.WriteFile(path, []byte(sampleSchema), 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := s.MarkExpectedEmpty([]catalog.TableID{catalog.ID("ncrn", "location")}); err != nil {
		t.Fatalf("MarkExpectedEmpty: %v", err)
	}
	loc, _ := s.Table(catalog.ID("ncrn", "location"))
	if !loc.ExpectedEmpty {
		t.Error("location should be expected-empty")
	}
	if err := s.MarkExpectedEmpty([]catalog.TableID{catalog.ID("ncrn", "nope")}); err == nil {
		t.Error("expected error for unknown table")
	}
}

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"park", false},
		{"_tmp", false},
		{"Park_2", false},
		{"", true},
		{"2park", true},
		{"park-id", true},
		{"park id", true},
		{strings.Repeat("a", 64), true},
	}
	for _, tt := range tests {
		err := ValidateIdentifier(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateIdentifier(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
	}
}
