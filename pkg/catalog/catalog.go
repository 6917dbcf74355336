// pkg/catalog/catalog.go
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Load reads and validates the offer catalog at path.
func Load(path string) (*OfferCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := Validate(data); err != nil {
		return nil, err
	}

	var cat OfferCatalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

// Validate checks raw catalog JSON against the schema.
func Validate(data []byte) error {
	schemaLoader := gojsonschema.NewGoLoader(offerCatalogSchema)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("catalog validation error: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("catalog invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Find returns the enabled offer with the given ID.
func (c *OfferCatalog) Find(offerID string) (*Offer, bool) {
	for i := range c.Offers {
		if c.Offers[i].ID == offerID && c.Offers[i].Enabled {
			return &c.Offers[i], true
		}
	}
	return nil, false
}

// Save writes the catalog back to disk.
func (c *OfferCatalog) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if err := Validate(data); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
