package fill

import (
	"sort"

	"github.com/alanyoungcy/hlchallenge/internal/domain"
)

// SortFills returns a copy of fills ordered by (TimeMs, TradeID) ascending.
// Fills equal on both keys keep their input order.
func SortFills(fills []domain.Fill) []domain.Fill {
	out := make([]domain.Fill, len(fills))
	copy(out, fills)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TimeMs != out[j].TimeMs {
			return out[i].TimeMs < out[j].TimeMs
		}
		return out[i].TradeID < out[j].TradeID
	})
	return out
}

// GroupByCoin splits fills per coin, preserving their relative order. Coins
// are returned in first-seen order so callers iterate deterministically.
func GroupByCoin(fills []domain.Fill) (coins []string, byCoin map[string][]domain.Fill) {
	byCoin = make(map[string][]domain.Fill)
	for _, f := range fills {
		if _, ok := byCoin[f.Coin]; !ok {
			coins = append(coins, f.Coin)
		}
		byCoin[f.Coin] = append(byCoin[f.Coin], f)
	}
	return coins, byCoin
}

// FilterCoin keeps the fills of one coin. An empty coin keeps everything.
func FilterCoin(fills []domain.Fill, coin string) []domain.Fill {
	if coin == "" {
		return fills
	}
	out := make([]domain.Fill, 0, len(fills))
	for _, f := range fills {
		if f.Coin == coin {
			out = append(out, f)
		}
	}
	return out
}

// FilterWindow keeps fills with fromMs <= TimeMs <= toMs. Nil bounds are open.
func FilterWindow(fills []domain.Fill, fromMs, toMs *int64) []domain.Fill {
	if fromMs == nil && toMs == nil {
		return fills
	}
	out := make([]domain.Fill, 0, len(fills))
	for _, f := range fills {
		if fromMs != nil && f.TimeMs < *fromMs {
			continue
		}
		if toMs != nil && f.TimeMs > *toMs {
			continue
		}
		out = append(out, f)
	}
	return out
}
