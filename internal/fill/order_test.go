package fill

import (
	"testing"

	"github.com/alanyoungcy/hlchallenge/internal/domain"
)

func TestSortFillsByTimeThenTradeID(t *testing.T) {
	in := []domain.Fill{
		{Coin: "BTC", TimeMs: 20, TradeID: 1},
		{Coin: "ETH", TimeMs: 10, TradeID: 9},
		{Coin: "ETH", TimeMs: 10, TradeID: 3},
		{Coin: "BTC", TimeMs: 5, TradeID: 7},
	}
	got := SortFills(in)
	wantIDs := []int64{7, 3, 9, 1}
	for i, id := range wantIDs {
		if got[i].TradeID != id {
			t.Fatalf("position %d: want tid %d, got %d", i, id, got[i].TradeID)
		}
	}
	if in[0].TradeID != 1 {
		t.Error("SortFills must not reorder its input")
	}
}

func TestGroupByCoinPreservesOrder(t *testing.T) {
	in := []domain.Fill{
		{Coin: "ETH", TradeID: 1},
		{Coin: "BTC", TradeID: 2},
		{Coin: "ETH", TradeID: 3},
	}
	coins, byCoin := GroupByCoin(in)
	if len(coins) != 2 || coins[0] != "ETH" || coins[1] != "BTC" {
		t.Fatalf("unexpected coin order: %v", coins)
	}
	if len(byCoin["ETH"]) != 2 || byCoin["ETH"][1].TradeID != 3 {
		t.Errorf("unexpected ETH group: %+v", byCoin["ETH"])
	}
}

func TestFilterCoinAndWindow(t *testing.T) {
	in := []domain.Fill{
		{Coin: "ETH", TimeMs: 100},
		{Coin: "BTC", TimeMs: 200},
		{Coin: "ETH", TimeMs: 300},
	}
	if got := FilterCoin(in, ""); len(got) != 3 {
		t.Errorf("empty coin should keep all, got %d", len(got))
	}
	if got := FilterCoin(in, "ETH"); len(got) != 2 {
		t.Errorf("expected 2 ETH fills, got %d", len(got))
	}
	from, to := int64(150), int64(300)
	got := FilterWindow(in, &from, &to)
	if len(got) != 2 || got[0].TimeMs != 200 || got[1].TimeMs != 300 {
		t.Errorf("unexpected window result: %+v", got)
	}
}
