package provider

import (
	"os"
	"path/filepath"
	"testing"

	"confluence/internal/domain/models/chat"
)

func TestLoadPricingDefaults(t *testing.T) {
	catalog, err := LoadPricing("")
	if err != nil {
		t.Fatalf("LoadPricing(\"\") error: %v", err)
	}
	if _, ok := catalog.Models["gpt-4o-mini"]; !ok {
		t.Error("default catalog missing gpt-4o-mini")
	}
}

func TestLoadPricingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pricing.yaml")
	data := `models:
  test-model:
    input_per_mtok: 1.0
    output_per_mtok: 2.0
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	catalog, err := LoadPricing(path)
	if err != nil {
		t.Fatalf("LoadPricing error: %v", err)
	}

	cost, ok := catalog.Cost("test-model", chat.Usage{InputTokens: 1_000_000, OutputTokens: 500_000})
	if !ok {
		t.Fatal("expected test-model in catalog")
	}
	if want := 2.0; cost != want {
		t.Errorf("cost = %v, want %v", cost, want)
	}
}

func TestLoadPricingErrors(t *testing.T) {
	if _, err := LoadPricing("/nonexistent/pricing.yaml"); err == nil {
		t.Error("expected error for missing file")
	}

	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(empty, []byte("models: {}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPricing(empty); err == nil {
		t.Error("expected error for empty catalog")
	}
}

func TestCostUnknownModel(t *testing.T) {
	catalog, _ := LoadPricing("")
	if _, ok := catalog.Cost("never-heard-of-it", chat.Usage{InputTokens: 10}); ok {
		t.Error("unknown model should not report a cost")
	}
}
