// Package fill validates raw exchange fills into domain.Fill values and
// provides the ordering and grouping helpers the reconstruction relies on.
package fill

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/hlchallenge/internal/domain"
)

// Normalizer turns raw fills into domain fills and decides, once per fill,
// whether the fill is attributed to the target builder.
type Normalizer struct {
	target     string
	targetAddr common.Address
	isAddr     bool
}

// NewNormalizer creates a Normalizer for the given target builder. Builder
// identifiers that are hex addresses are compared by address value, so case
// and checksum differences do not matter. An empty target attributes nothing.
func NewNormalizer(targetBuilder string) *Normalizer {
	target := strings.TrimSpace(targetBuilder)
	n := &Normalizer{target: target}
	if common.IsHexAddress(target) {
		n.targetAddr = common.HexToAddress(target)
		n.isAddr = true
	}
	return n
}

// Target returns the configured target builder identifier.
func (n *Normalizer) Target() string {
	return n.target
}

// IsTarget reports whether a fill with the given builder and optional builder
// fee is attributed to the target builder. When a builder fee is reported it
// must be strictly positive.
func (n *Normalizer) IsTarget(builder string, builderFee *float64) bool {
	builder = strings.TrimSpace(builder)
	if n.target == "" || builder == "" {
		return false
	}
	if builderFee != nil && *builderFee <= 0 {
		return false
	}
	if n.isAddr && common.IsHexAddress(builder) {
		return common.HexToAddress(builder) == n.targetAddr
	}
	return strings.EqualFold(builder, n.target)
}

// Normalize validates one raw fill.
func (n *Normalizer) Normalize(raw domain.RawFill) (domain.Fill, error) {
	coin := strings.TrimSpace(raw.Coin)
	if coin == "" {
		return domain.Fill{}, &domain.MalformedFillError{Field: "coin", Reason: "missing"}
	}
	if strings.TrimSpace(raw.Side) == "" {
		return domain.Fill{}, &domain.MalformedFillError{Field: "side", Reason: "missing"}
	}
	if raw.Time == nil {
		return domain.Fill{}, &domain.MalformedFillError{Field: "time", Reason: "missing"}
	}
	side, err := ParseSide(raw.Side)
	if err != nil {
		return domain.Fill{}, err
	}

	size, err := parseMagnitude("sz", raw.Sz)
	if err != nil {
		return domain.Fill{}, err
	}
	price, err := parseMagnitude("px", raw.Px)
	if err != nil {
		return domain.Fill{}, err
	}
	start, err := parseOptional("startPosition", raw.StartPosition)
	if err != nil {
		return domain.Fill{}, err
	}
	fee, err := parseOptional("fee", raw.Fee)
	if err != nil {
		return domain.Fill{}, err
	}
	closedPnl, err := parseOptional("closedPnl", raw.ClosedPnl)
	if err != nil {
		return domain.Fill{}, err
	}

	var builderFee *float64
	if strings.TrimSpace(raw.BuilderFee) != "" {
		v, err := parseOptional("builderFee", raw.BuilderFee)
		if err != nil {
			return domain.Fill{}, err
		}
		builderFee = &v
	}

	return domain.Fill{
		Coin:            coin,
		TimeMs:          *raw.Time,
		TradeID:         raw.Tid,
		Side:            side,
		Size:            size,
		Price:           price,
		StartPosition:   start,
		Fee:             fee,
		ClosedPnl:       closedPnl,
		Builder:         strings.TrimSpace(raw.Builder),
		BuilderFee:      builderFee,
		Hash:            raw.Hash,
		Dir:             raw.Dir,
		IsTargetBuilder: n.IsTarget(raw.Builder, builderFee),
	}, nil
}

// NormalizeAll validates a batch. The first bad record rejects the whole
// batch; the returned *domain.BatchError carries its index. An empty batch is
// not an error.
func (n *Normalizer) NormalizeAll(raws []domain.RawFill) ([]domain.Fill, error) {
	out := make([]domain.Fill, 0, len(raws))
	for i, raw := range raws {
		f, err := n.Normalize(raw)
		if err != nil {
			return nil, &domain.BatchError{Index: i, Err: err}
		}
		out = append(out, f)
	}
	return out, nil
}

// ParseSide maps the exchange's side markers onto domain.Side. "B" (bid) is a
// buy and "A" (ask) is a sell.
func ParseSide(s string) (domain.Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "B", "BUY", "BID":
		return domain.SideBuy, nil
	case "A", "S", "SELL", "ASK":
		return domain.SideSell, nil
	default:
		return "", &domain.UnknownSideError{Side: s}
	}
}

func parseMagnitude(field, value string) (float64, error) {
	if strings.TrimSpace(value) == "" {
		return 0, &domain.MalformedFillError{Field: field, Reason: "missing"}
	}
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return 0, &domain.MalformedFillError{Field: field, Value: value, Reason: "not a number"}
	}
	if d.IsNegative() {
		return 0, &domain.MalformedFillError{Field: field, Value: value, Reason: "negative magnitude"}
	}
	return d.InexactFloat64(), nil
}

func parseOptional(field, value string) (float64, error) {
	if strings.TrimSpace(value) == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return 0, &domain.MalformedFillError{Field: field, Value: value, Reason: "not a number"}
	}
	return d.InexactFloat64(), nil
}
