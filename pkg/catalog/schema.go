// pkg/catalog/schema.go
package catalog

// OfferCatalog is the on-disk registry of exchange offers.
type OfferCatalog struct {
	Version     string  `json:"version"`
	LastUpdated string  `json:"lastUpdated"`
	Offers      []Offer `json:"offers"`
}

// Offer describes one exchangeable promotional entitlement.
type Offer struct {
	ID            string `json:"id"`
	DisplayName   string `json:"displayName"`
	Description   string `json:"description"`
	EntitlementID string `json:"entitlementId"`
	DurationDays  int    `json:"durationDays"`
	DurationUnit  string `json:"durationUnit"`
	CoinCost      int64  `json:"coinCost"`
	Enabled       bool   `json:"enabled"`
}

// offerCatalogSchema validates a catalog document before it is trusted.
var offerCatalogSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"version", "offers"},
	"properties": map[string]interface{}{
		"version":     map[string]interface{}{"type": "string"},
		"lastUpdated": map[string]interface{}{"type": "string"},
		"offers": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"id", "entitlementId", "durationDays", "durationUnit", "coinCost"},
				"properties": map[string]interface{}{
					"id":            map[string]interface{}{"type": "string", "minLength": 1},
					"displayName":   map[string]interface{}{"type": "string"},
					"description":   map[string]interface{}{"type": "string"},
					"entitlementId": map[string]interface{}{"type": "string", "minLength": 1},
					"durationDays":  map[string]interface{}{"type": "integer", "minimum": 1},
					"durationUnit":  map[string]interface{}{"type": "string", "enum": []interface{}{"day", "month"}},
					"coinCost":      map[string]interface{}{"type": "integer", "minimum": 0},
					"enabled":       map[string]interface{}{"type": "boolean"},
				},
			},
		},
	},
}
