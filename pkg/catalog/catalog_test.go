package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func fptr(v float64) *float64 { return &v }

func TestNewSkipsBlankIDsAndFallsBackToCode(t *testing.T) {
	cat := New([]Test{
		{Code: "chem.alt", Name: "Alanine Transaminase", Unit: "U/L", Min: fptr(10), Max: fptr(40)},
		{Code: "", Name: "orphan"},
		{Code: "nan", Name: "pandas artifact"},
		{Code: "bc.hgb", Name: ""},
	})

	if cat.Len() != 2 {
		t.Fatalf("expected 2 tests, got %d", cat.Len())
	}
	hgb, ok := cat.Lookup("bc.hgb")
	if !ok {
		t.Fatal("bc.hgb not found")
	}
	if hgb.Name != "bc.hgb" {
		t.Errorf("blank name should fall back to code, got %q", hgb.Name)
	}
}

func TestCodeByName(t *testing.T) {
	cat := New([]Test{
		{Code: "chem.alt", Name: "Alanine Transaminase"},
		{Code: "bc.hgb", Name: "Hemoglobin"},
	})

	if code, ok := cat.CodeByName("alanine transaminase"); !ok || code != "chem.alt" {
		t.Errorf("case-insensitive name lookup failed: %q %v", code, ok)
	}
	if code, ok := cat.CodeByName("Alanine-Transaminase"); !ok || code != "chem.alt" {
		t.Errorf("normalized name lookup failed: %q %v", code, ok)
	}
	if _, ok := cat.CodeByName("unknown test"); ok {
		t.Error("unexpected hit for unknown name")
	}
}

func TestCholesterolAlias(t *testing.T) {
	cat := New([]Test{
		{Code: "lip.cholesterol_total", Name: "Total Cholesterol", Unit: "mmol/L", Min: fptr(3), Max: fptr(5.2)},
	})

	chol, ok := cat.Lookup("chem.chol")
	if !ok {
		t.Fatal("chem.chol alias missing")
	}
	if chol.Code != "lip.cholesterol_total" {
		t.Errorf("alias resolved to %q", chol.Code)
	}
}

func TestNormInfoPartialName(t *testing.T) {
	cat := New([]Test{
		{Code: "bc.hgb", Name: "Hemoglobin"},
	})
	if _, ok := cat.NormInfo("unknown.code", "hemoglobin a1c"); !ok {
		t.Error("expected partial display-name containment to match")
	}
	if _, ok := cat.NormInfo("unknown.code", ""); ok {
		t.Error("blank name must not match")
	}
}

func TestLoadJSONAndMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.json")
	payload := `[
		{"id": "chem.glucose", "name": "Glucose", "unit": "mmol/L", "min": 3.9, "max": 5.9},
		{"id": "", "name": "skipped"}
	]`
	if err := os.WriteFile(path, []byte(payload), 0o600); err != nil {
		t.Fatal(err)
	}

	cat, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cat.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", cat.Len())
	}
	glucose, _ := cat.Lookup("chem.glucose")
	if glucose.Min == nil || *glucose.Min != 3.9 {
		t.Errorf("min not parsed: %+v", glucose)
	}

	if _, err := Load(filepath.Join(dir, "absent.json")); err == nil {
		t.Fatal("expected error for missing catalog")
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	payload := "- id: bc.wbc\n  name: Leukocytes\n  unit: 10^9/L\n  min: 4\n  max: 9\n"
	if err := os.WriteFile(path, []byte(payload), 0o600); err != nil {
		t.Fatal(err)
	}

	cat, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := cat.Lookup("bc.wbc"); !ok {
		t.Fatal("bc.wbc missing from yaml catalog")
	}
}
