// Package tipamount converts tip gestures into bounded USD amounts and their
// ETH base-unit equivalent.
package tipamount

import (
	"errors"
	"math"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Amount bounds and conversion constants.
var (
	DefaultUSD   = decimal.RequireFromString("0.01")
	MinUSD       = decimal.RequireFromString("0.01")
	MaxUSD       = decimal.RequireFromString("500")
	MinIncrement = decimal.RequireFromString("0.01")
	MaxIncrement = decimal.RequireFromString("0.45")
	USDPerETH    = decimal.RequireFromString("3000")
)

const (
	// WeiDecimals is the number of decimal places in one ETH.
	WeiDecimals = 18
	// ETHDisplayDecimals is the precision of the displayed ETH equivalent.
	ETHDisplayDecimals = 6
	// AutoSubmitDelay is the idle period after the last edit before a tip is sent.
	AutoSubmitDelay = 1500 * time.Millisecond

	// KeyboardRatio is used when a click carries no pointer position.
	KeyboardRatio = 0.5

	baseIntensity  = 0.35
	intensitySpan  = 0.4
	usdPlaces      = 2
	TooSmallReason = "Tip amount is too small. Try increasing it."
)

// ErrAmountTooSmall is returned when an amount converts to zero wei.
var ErrAmountTooSmall = errors.New("tip amount is too small")

var leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// Clamp bounds v to [MinUSD, MaxUSD] and rounds it to cents.
func Clamp(v decimal.Decimal) decimal.Decimal {
	if v.LessThan(MinUSD) {
		v = MinUSD
	}
	if v.GreaterThan(MaxUSD) {
		v = MaxUSD
	}
	return v.Round(usdPlaces)
}

// ClampFloat is Clamp for float input; NaN and infinities resolve to DefaultUSD.
func ClampFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return DefaultUSD
	}
	return Clamp(decimal.NewFromFloat(f))
}

// Seed returns the starting amount for a composer given the post's last tip.
func Seed(lastTip *decimal.Decimal) decimal.Decimal {
	if lastTip == nil {
		return Clamp(DefaultUSD)
	}
	return Clamp(*lastTip)
}

// ParseUSD reads a typed amount. A comma is accepted as the decimal
// separator and trailing garbage after a leading number is ignored.
func ParseUSD(text string) (decimal.Decimal, bool) {
	text = strings.Replace(strings.TrimSpace(text), ",", ".", 1)
	m := leadingNumber.FindString(text)
	if m == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(m)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// FormatUSD renders v with exactly two decimal places.
func FormatUSD(v decimal.Decimal) string {
	return v.StringFixed(usdPlaces)
}

// ClickRatio normalizes a click at offset x inside a control of the given
// width to [0,1]. Keyboard activation, a non-positive width and NaN all map
// to the centre.
func ClickRatio(x, width float64, keyboard bool) float64 {
	if keyboard || width <= 0 {
		return KeyboardRatio
	}
	return ClampRatio(x / width)
}

// ClampRatio limits r to [0,1]. NaN maps to the centre.
func ClampRatio(r float64) float64 {
	if math.IsNaN(r) {
		return KeyboardRatio
	}
	return math.Min(math.Max(r, 0), 1)
}

// Increment interpolates between MinIncrement and MaxIncrement.
func Increment(ratio float64) decimal.Decimal {
	r := decimal.NewFromFloat(ClampRatio(ratio))
	return MinIncrement.Add(r.Mul(MaxIncrement.Sub(MinIncrement)))
}

// Intensity is the visual emphasis after a click at ratio.
func Intensity(ratio float64) float64 {
	return baseIntensity + ClampRatio(ratio)*intensitySpan
}

// ToETH converts USD to ETH at the fixed rate, kept to 18 decimal places.
func ToETH(usd decimal.Decimal) decimal.Decimal {
	return usd.DivRound(USDPerETH, WeiDecimals)
}

// FormatETH renders the ETH equivalent of usd for display; negative amounts show as zero.
func FormatETH(usd decimal.Decimal) string {
	if usd.IsNegative() {
		usd = decimal.Zero
	}
	return ToETH(usd).StringFixed(ETHDisplayDecimals)
}

// ToWei returns the base-unit value of usd.
func ToWei(usd decimal.Decimal) (*big.Int, error) {
	wei := ToETH(usd).Shift(WeiDecimals).BigInt()
	if wei.Sign() <= 0 {
		return nil, ErrAmountTooSmall
	}
	return wei, nil
}
