package hyperliquid

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

type userRequest struct {
	Type string `json:"type"`
	User string `json:"user"`
}

type userFillsRequest struct {
	Type      string `json:"type"`
	User      string `json:"user"`
	StartTime *int64 `json:"startTime,omitempty"`
	EndTime   *int64 `json:"endTime,omitempty"`
}

type clearinghouseState struct {
	MarginSummary struct {
		AccountValue decimal.Decimal `json:"accountValue"`
	} `json:"marginSummary"`
}

type ledgerUpdate struct {
	Time  int64       `json:"time"`
	Hash  string      `json:"hash"`
	Delta ledgerDelta `json:"delta"`
}

// ledgerDelta is the USDC change of one ledger update. The exchange sends an
// object tagged by type; a bare number is accepted as well.
type ledgerDelta struct {
	Type string
	USDC decimal.Decimal
}

func (d *ledgerDelta) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] != '{' {
		return d.USDC.UnmarshalJSON(b)
	}

	var obj struct {
		Type string          `json:"type"`
		USDC json.RawMessage `json:"usdc"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	d.Type = obj.Type
	if len(obj.USDC) == 0 {
		return nil
	}
	if err := d.USDC.UnmarshalJSON(obj.USDC); err != nil {
		return fmt.Errorf("ledger delta %s: %w", obj.Type, err)
	}
	return nil
}

// equityBefore subtracts the summed deltas from current and floors at zero.
func equityBefore(current decimal.Decimal, updates []ledgerUpdate) float64 {
	total := decimal.Zero
	for _, u := range updates {
		total = total.Add(u.Delta.USDC)
	}
	equity := current.Sub(total)
	if equity.IsNegative() {
		return 0
	}
	return equity.InexactFloat64()
}
