package domain

import "github.com/shopspring/decimal"

// Side is the direction of a fill. BUY increases the signed position, SELL
// decreases it.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Sign returns +1 for buys and -1 for sells.
func (s Side) Sign() float64 {
	if s == SideSell {
		return -1
	}
	return 1
}

// RawFill is an unvalidated fill record as delivered by the exchange info
// API. Numeric fields are kept as the decimal strings the exchange sends; an
// empty string means the field was absent.
type RawFill struct {
	Coin          string `json:"coin"`
	Px            string `json:"px"`
	Sz            string `json:"sz"`
	Side          string `json:"side"`
	Time          *int64 `json:"time"`
	StartPosition string `json:"startPosition"`
	Dir           string `json:"dir,omitempty"`
	ClosedPnl     string `json:"closedPnl"`
	Hash          string `json:"hash,omitempty"`
	Oid           int64  `json:"oid,omitempty"`
	Crossed       bool   `json:"crossed,omitempty"`
	Fee           string `json:"fee"`
	Tid           int64  `json:"tid"`
	FeeToken      string `json:"feeToken,omitempty"`
	Builder       string `json:"builder,omitempty"`
	BuilderFee    string `json:"builderFee,omitempty"`
}

// Fill is a validated, immutable trade execution. IsTargetBuilder is computed
// once by the normalizer and is the single source of truth for attribution.
type Fill struct {
	Coin          string
	TimeMs        int64
	TradeID       int64
	Side          Side
	Size          float64
	Price         float64
	StartPosition float64
	Fee           float64
	ClosedPnl     float64
	Builder       string
	BuilderFee    *float64
	Hash          string
	Dir           string

	IsTargetBuilder bool
}

// EndPosition is the signed position immediately after the fill. It is always
// derived from StartPosition, never taken from a neighbouring fill. The sum is
// taken in decimal so a full close lands on exactly zero.
func (f Fill) EndPosition() float64 {
	start := decimal.NewFromFloat(f.StartPosition)
	size := decimal.NewFromFloat(f.Size)
	if f.Side == SideSell {
		return start.Sub(size).InexactFloat64()
	}
	return start.Add(size).InexactFloat64()
}

// Notional is price * size.
func (f Fill) Notional() float64 {
	return f.Price * f.Size
}

// FillQuery selects the fills of one user, optionally bounded in time
// (milliseconds since epoch, inclusive).
type FillQuery struct {
	User   string
	FromMs *int64
	ToMs   *int64
}
