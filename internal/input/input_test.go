package input

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"docflow/internal/services"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestLoadMapsColumnsByHeader(t *testing.T) {
	path := writeCSV(t, "Code_Article,Montant,Extra\nART-1, 120.50 ,x\nART-2,80,y\n")

	doc, err := Load(path, []string{"Code_Article", "Montant"}, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(doc.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(doc.Rows))
	}
	if got := doc.Rows[0].Get("Montant"); got != "120.50" {
		t.Fatalf("expected trimmed value, got %q", got)
	}
	if doc.Rows[0].Line != 2 {
		t.Fatalf("expected line 2, got %d", doc.Rows[0].Line)
	}
}

func TestLoadDropsRowsMissingRequiredFields(t *testing.T) {
	path := writeCSV(t, "Code_Article,Montant\nART-1,\nART-2,75\n")

	doc, err := Load(path, []string{"Code_Article", "Montant"}, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(doc.Rows) != 1 || doc.Rows[0].Get("Code_Article") != "ART-2" {
		t.Fatalf("unexpected surviving rows: %+v", doc.Rows)
	}
	if doc.Dropped != 1 {
		t.Fatalf("expected 1 dropped row, got %d", doc.Dropped)
	}
}

func TestLoadFailsWhenColumnMissing(t *testing.T) {
	path := writeCSV(t, "Code_Article\nART-1\n")

	_, err := Load(path, []string{"Code_Article", "Montant"}, nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestLoadFailsWhenNoValidRows(t *testing.T) {
	path := writeCSV(t, "Code_Article,Montant\n,\n,\n")

	_, err := Load(path, []string{"Code_Article", "Montant"}, nil)
	if !errors.Is(err, ErrNoValidRows) {
		t.Fatalf("expected ErrNoValidRows, got %v", err)
	}
}

func TestLoadFailsOnEmptyFile(t *testing.T) {
	path := writeCSV(t, "")

	_, err := Load(path, []string{"Code_Article"}, nil)
	if !errors.Is(err, ErrNoValidRows) {
		t.Fatalf("expected ErrNoValidRows, got %v", err)
	}
}

func TestGroupingPreservesFirstEncounterOrder(t *testing.T) {
	rows := []Row{
		{Fields: map[string]string{"CodeFrs": "F2", "N_BC": "BC1"}},
		{Fields: map[string]string{"CodeFrs": "F1", "N_BC": "BC2"}},
		{Fields: map[string]string{"CodeFrs": "F2", "N_BC": "BC3"}},
	}

	g := NewGrouping(rows, "CodeFrs")
	if want := []string{"F2", "F1"}; !reflect.DeepEqual(g.Keys(), want) {
		t.Fatalf("got keys %v, want %v", g.Keys(), want)
	}
	if len(g.Rows("F2")) != 2 {
		t.Fatalf("expected 2 rows for F2, got %d", len(g.Rows("F2")))
	}
	if g.TotalRows() != 3 {
		t.Fatalf("expected 3 total rows, got %d", g.TotalRows())
	}
}

func TestSubgroupCompositeKeys(t *testing.T) {
	rows := []Row{
		{Fields: map[string]string{"CodeFrs": "F1", "N_BC": "BC1", "CodeArticle": "A1"}},
		{Fields: map[string]string{"CodeFrs": "F1", "N_BC": "BC2", "CodeArticle": "A2"}},
		{Fields: map[string]string{"CodeFrs": "F1", "N_BC": "BC1", "CodeArticle": "A3"}},
	}

	bySupplier := NewGrouping(rows, "CodeFrs")
	byOrder := bySupplier.Subgroup("F1", "N_BC")
	if want := []string{"BC1", "BC2"}; !reflect.DeepEqual(byOrder.Keys(), want) {
		t.Fatalf("got keys %v, want %v", byOrder.Keys(), want)
	}
	if len(byOrder.Rows("BC1")) != 2 {
		t.Fatalf("expected 2 rows for BC1, got %d", len(byOrder.Rows("BC1")))
	}
}

func TestUniqueValuesSkipsEmptyAndDuplicates(t *testing.T) {
	rows := []Row{
		{Fields: map[string]string{"Code_Article": "A1"}},
		{Fields: map[string]string{"Code_Article": ""}},
		{Fields: map[string]string{"Code_Article": "A2"}},
		{Fields: map[string]string{"Code_Article": "A1"}},
	}

	if want := []string{"A1", "A2"}; !reflect.DeepEqual(UniqueValues(rows, "Code_Article"), want) {
		t.Fatalf("got %v, want %v", UniqueValues(rows, "Code_Article"), want)
	}
}
