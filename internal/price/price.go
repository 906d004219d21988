// Package price handles price values from prediction market APIs
// without losing precision.
package price

import (
	"encoding/json"
	"strconv"
)

type Price int64

// Size is a share quantity in the same fixed-point scale as Price.
type Size int64

var _ json.Unmarshaler = (*Price)(nil)
var _ json.Unmarshaler = (*Size)(nil)

const PriceScale int64 = 1_000_000

func (p *Price) UnmarshalJSON(data []byte) error {
	v, err := parseFixed(data)
	if err != nil {
		return err
	}
	*p = Price(v)
	return nil
}

func (s *Size) UnmarshalJSON(data []byte) error {
	v, err := parseFixed(data)
	if err != nil {
		return err
	}
	*s = Size(v)
	return nil
}

func parseFixed(data []byte) (int64, error) {
	if len(data) > 2 && data[0] == '"' && data[len(data)-1] == '"' {
		data = data[1 : len(data)-1]
	}
	// Else we assume that it is a raw number.

	var res int64
	i := 0

	for i < len(data) && data[i] != '.' {
		res = res*10 + int64(data[i]-'0')*PriceScale
		i++
	}

	if i < len(data) && data[i] == '.' {
		i++
		mult := PriceScale
		for i < len(data) {
			mult /= 10
			res += int64(data[i]-'0') * mult
			i++
		}
	}

	return res, nil
}

// FromFloat converts a float price to fixed point, rounding half away
// from zero.
func FromFloat(f float64) Price {
	if f < 0 {
		return Price(int64(f*float64(PriceScale) - 0.5))
	}
	return Price(int64(f*float64(PriceScale) + 0.5))
}

// Float converts the fixed-point price back to a float64. Prices are
// bounded by [0,1] so the conversion is exact well past six decimals.
func (p Price) Float() float64 {
	return float64(p) / float64(PriceScale)
}

func (p Price) String() string {
	return strconv.FormatFloat(p.Float(), 'f', -1, 64)
}

func (s Size) Float() float64 {
	return float64(s) / float64(PriceScale)
}
