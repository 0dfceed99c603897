package provider

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"confluence/internal/domain/models/chat"
)

// ModelPrice holds per-million-token USD rates for one model.
type ModelPrice struct {
	InputPerMTok  float64 `yaml:"input_per_mtok"`
	OutputPerMTok float64 `yaml:"output_per_mtok"`
}

// PricingCatalog maps model identifiers to their token rates. Models
// absent from the catalog have unknown cost.
type PricingCatalog struct {
	Models map[string]ModelPrice `yaml:"models"`
}

// defaultPricing covers the models the service ships configured for.
// A catalog file replaces it entirely.
var defaultPricing = PricingCatalog{
	Models: map[string]ModelPrice{
		"gpt-4o":      {InputPerMTok: 2.50, OutputPerMTok: 10.00},
		"gpt-4o-mini": {InputPerMTok: 0.15, OutputPerMTok: 0.60},
	},
}

// LoadPricing reads a YAML catalog from path. An empty path returns the
// built-in defaults.
func LoadPricing(path string) (*PricingCatalog, error) {
	if path == "" {
		catalog := defaultPricing
		return &catalog, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pricing catalog: %w", err)
	}
	var catalog PricingCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse pricing catalog: %w", err)
	}
	if len(catalog.Models) == 0 {
		return nil, fmt.Errorf("pricing catalog %s defines no models", path)
	}
	return &catalog, nil
}

// Cost computes the USD cost of a completed turn. The second return is
// false when the model is not in the catalog.
func (c *PricingCatalog) Cost(model string, usage chat.Usage) (float64, bool) {
	price, ok := c.Models[model]
	if !ok {
		return 0, false
	}
	cost := float64(usage.InputTokens)*price.InputPerMTok/1e6 +
		float64(usage.OutputTokens)*price.OutputPerMTok/1e6
	return cost, true
}
