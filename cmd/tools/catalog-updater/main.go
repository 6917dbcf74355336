// cmd/tools/catalog-updater/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"entitlement-workers/pkg/catalog"
)

var catalogPath string

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	// Add command flags
	idAdd := addCmd.String("id", "", "Offer ID (e.g., premium_week)")
	displayName := addCmd.String("displayName", "", "Display Name (e.g., Premium Week)")
	description := addCmd.String("description", "", "Description")
	entitlementID := addCmd.String("entitlement", "", "Entitlement granted by the offer (e.g., premium)")
	durationDays := addCmd.Int("durationDays", 7, "Duration amount")
	durationUnit := addCmd.String("durationUnit", "day", "Duration unit (day or month)")
	coinCost := addCmd.Int64("coinCost", 0, "Coin cost")
	addCmd.StringVar(&catalogPath, "path", "configs/offer-catalog.json", "Path to catalog file")

	// Update command flags
	idUpdate := updateCmd.String("id", "", "Offer ID to update")
	field := updateCmd.String("field", "", "Field to update (enabled, coinCost, displayName, description)")
	value := updateCmd.String("value", "", "New value for the field")
	updateCmd.StringVar(&catalogPath, "path", "configs/offer-catalog.json", "Path to catalog file")

	// Validate command flags
	validateCmd.StringVar(&catalogPath, "path", "configs/offer-catalog.json", "Path to catalog file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *idAdd == "" || *displayName == "" || *entitlementID == "" {
			fmt.Println("Error: id, displayName, and entitlement are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		offer := catalog.Offer{
			ID:            *idAdd,
			DisplayName:   *displayName,
			Description:   *description,
			EntitlementID: *entitlementID,
			DurationDays:  *durationDays,
			DurationUnit:  *durationUnit,
			CoinCost:      *coinCost,
			Enabled:       true,
		}
		if err := addOffer(&offer); err != nil {
			fmt.Printf("Error adding offer: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added offer: %s\n", *idAdd)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *idUpdate == "" || *field == "" || *value == "" {
			fmt.Println("Error: id, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updateOffer(*idUpdate, *field, *value); err != nil {
			fmt.Printf("Error updating offer: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated offer %s, field %s to %s\n", *idUpdate, *field, *value)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		if err := validateCatalog(); err != nil {
			fmt.Printf("Catalog validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Catalog validation passed.")

	case "help":
		fallthrough
	default:
		help()
	}
}

func addOffer(offer *catalog.Offer) error {
	cat, err := catalog.Load(catalogPath)
	if err != nil {
		// If file doesn't exist, create a new catalog
		if os.IsNotExist(err) {
			cat = &catalog.OfferCatalog{
				Version: "1.0.0",
				Offers:  []catalog.Offer{},
			}
		} else {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
	}

	for _, existing := range cat.Offers {
		if existing.ID == offer.ID {
			return fmt.Errorf("offer with ID %s already exists", offer.ID)
		}
	}

	cat.Offers = append(cat.Offers, *offer)
	cat.LastUpdated = time.Now().Format(time.RFC3339)

	return cat.Save(catalogPath)
}

func updateOffer(id, field, value string) error {
	cat, err := catalog.Load(catalogPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	found := false
	for i := range cat.Offers {
		if cat.Offers[i].ID != id {
			continue
		}
		found = true
		switch field {
		case "enabled":
			enabled, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("invalid enabled value: %w", err)
			}
			cat.Offers[i].Enabled = enabled
		case "coinCost":
			cost, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid coinCost value: %w", err)
			}
			cat.Offers[i].CoinCost = cost
		case "displayName":
			cat.Offers[i].DisplayName = value
		case "description":
			cat.Offers[i].Description = value
		case "entitlement":
			cat.Offers[i].EntitlementID = value
		case "durationDays":
			days, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid durationDays value: %w", err)
			}
			cat.Offers[i].DurationDays = days
		case "durationUnit":
			cat.Offers[i].DurationUnit = value
		default:
			return fmt.Errorf("unknown field: %s", field)
		}
		break
	}

	if !found {
		return fmt.Errorf("offer with ID %s not found", id)
	}

	cat.LastUpdated = time.Now().Format(time.RFC3339)
	return cat.Save(catalogPath)
}

func validateCatalog() error {
	cat, err := catalog.Load(catalogPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	if len(cat.Offers) == 0 {
		return fmt.Errorf("catalog contains no offers")
	}

	ids := make(map[string]bool)
	for _, offer := range cat.Offers {
		if ids[offer.ID] {
			return fmt.Errorf("duplicate offer ID: %s", offer.ID)
		}
		ids[offer.ID] = true
	}

	fmt.Printf("Catalog validation passed. Found %d offers.\n", len(cat.Offers))
	return nil
}

func help() {
	fmt.Println(`
Usage: catalog-updater <command> [flags]

Commands:
  add      Add a new offer to the catalog
  update   Update an existing offer's field
  validate Validate the catalog file
  help     Show this help message

Examples:
  catalog-updater add -id premium_week -displayName "Premium Week" -entitlement premium -durationDays 7 -coinCost 500
  catalog-updater update -id premium_week -field enabled -value false
  catalog-updater validate -path configs/offer-catalog.json

Use 'catalog-updater <command> -h' for more information about a command.`)
}
