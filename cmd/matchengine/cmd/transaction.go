package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"ledger-matching-engine/internal/models"
)

// loadTransaction reads a transaction from a JSON file. When tenantID is
// non-empty it overrides the tenant recorded in the file.
func loadTransaction(path, tenantID string) (models.Transaction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("failed to read transaction file: %w", err)
	}

	var tx models.Transaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return models.Transaction{}, fmt.Errorf("failed to parse transaction file: %w", err)
	}

	if tenantID != "" {
		tx.TenantID = tenantID
	}

	return tx, nil
}

// printJSON writes v to stdout as indented JSON
func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
