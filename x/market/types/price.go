package types

import (
	"cosmossdk.io/math"
)

// DirectionToBase is the position direction in terms of the base asset.
type DirectionToBase int

const (
	DirectionUnspecified DirectionToBase = iota
	DirectionLong
	DirectionShort
)

func (d DirectionToBase) String() string {
	switch d {
	case DirectionLong:
		return "long"
	case DirectionShort:
		return "short"
	default:
		return "unspecified"
	}
}

func (d DirectionToBase) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *DirectionToBase) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"long"`:
		*d = DirectionLong
	case `"short"`:
		*d = DirectionShort
	default:
		return ErrInvalidDirection
	}
	return nil
}

// PricePoint is all prices in the protocol at a given point in time.
//
// PriceNotional is the internal collateral/notional price, PriceUsd the
// collateral price in USD, PriceBase the base asset price in quote.
type PricePoint struct {
	PriceNotional math.LegacyDec `json:"price_notional"`
	PriceUsd      math.LegacyDec `json:"price_usd"`
	PriceBase     math.LegacyDec `json:"price_base"`
	Timestamp     Timestamp      `json:"timestamp"`
}

// UsdToCollateral converts a USD amount into collateral at this price point.
func (p PricePoint) UsdToCollateral(usd math.LegacyDec) math.LegacyDec {
	if p.PriceUsd.IsZero() {
		return math.LegacyZeroDec()
	}
	return usd.Quo(p.PriceUsd)
}

// CollateralToUsd converts a collateral amount into USD at this price point.
func (p PricePoint) CollateralToUsd(collateral math.LegacyDec) math.LegacyDec {
	return collateral.Mul(p.PriceUsd)
}

// SlippageAssert is a trader-supplied assertion that the price has not moved
// too far between submission and crank execution. Tolerance of 0.01 means at
// most a 1% unfavorable difference from the expected price.
type SlippageAssert struct {
	Price     math.LegacyDec `json:"price"`
	Tolerance math.LegacyDec `json:"tolerance"`
}

// Check validates the current price against the assertion for a trade in the
// given direction. Long trades fail when the price ran up past the expected
// price, short trades when it fell below it.
func (s SlippageAssert) Check(direction DirectionToBase, current math.LegacyDec) error {
	if s.Price.IsNil() || !s.Price.IsPositive() {
		return ErrInvalidPrice
	}
	bound := s.Price.Mul(math.LegacyOneDec().Add(s.Tolerance))
	if direction == DirectionShort {
		bound = s.Price.Mul(math.LegacyOneDec().Sub(s.Tolerance))
		if current.LT(bound) {
			return ErrSlippageAssert.Wrapf("price %s below tolerated %s", current.String(), bound.String())
		}
		return nil
	}
	if current.GT(bound) {
		return ErrSlippageAssert.Wrapf("price %s above tolerated %s", current.String(), bound.String())
	}
	return nil
}

// SpotPriceHistoryResp is the response for the spot price history query.
type SpotPriceHistoryResp struct {
	PricePoints []PricePoint `json:"price_points"`
}
