package cart

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/shopspring/decimal"
)

type persistedEntry struct {
	ProductID  *string          `json:"productId"`
	Name       *string          `json:"name"`
	Brand      *string          `json:"brand"`
	UnitPrice  *decimal.Decimal `json:"unitPrice"`
	StockLimit *int             `json:"stockLimit"`
	Quantity   *int             `json:"quantity"`
}

func encodeEntries(entries []models.CartEntry) ([]byte, error) {
	if entries == nil {
		entries = []models.CartEntry{}
	}
	return json.Marshal(entries)
}

// decodeEntries accepts only a JSON array of complete, valid cart entries.
// Any defect rejects the whole value.
func decodeEntries(raw []byte) ([]models.CartEntry, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, fmt.Errorf("%w: not a list", ErrCorrupted)
	}

	var persisted []persistedEntry
	if err := json.Unmarshal(raw, &persisted); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}

	seen := make(map[string]struct{}, len(persisted))
	entries := make([]models.CartEntry, 0, len(persisted))
	for i, p := range persisted {
		if p.ProductID == nil || *p.ProductID == "" {
			return nil, fmt.Errorf("%w: entry %d: missing productId", ErrCorrupted, i)
		}
		if p.Name == nil || p.UnitPrice == nil || p.StockLimit == nil || p.Quantity == nil {
			return nil, fmt.Errorf("%w: entry %d: missing field", ErrCorrupted, i)
		}
		if _, dup := seen[*p.ProductID]; dup {
			return nil, fmt.Errorf("%w: entry %d: duplicate productId %s", ErrCorrupted, i, *p.ProductID)
		}
		seen[*p.ProductID] = struct{}{}

		e := models.CartEntry{
			ProductID:  *p.ProductID,
			Name:       *p.Name,
			UnitPrice:  *p.UnitPrice,
			StockLimit: *p.StockLimit,
			Quantity:   *p.Quantity,
		}
		if p.Brand != nil {
			e.Brand = *p.Brand
		}
		if err := checkEntry(e); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrCorrupted, i, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func checkEntry(e models.CartEntry) error {
	if e.UnitPrice.IsNegative() {
		return fmt.Errorf("unitPrice %s is negative", e.UnitPrice)
	}
	if e.StockLimit < 1 {
		return fmt.Errorf("stockLimit %d below 1", e.StockLimit)
	}
	if e.Quantity < 1 || e.Quantity > e.StockLimit {
		return fmt.Errorf("quantity %d outside [1, %d]", e.Quantity, e.StockLimit)
	}
	return nil
}
