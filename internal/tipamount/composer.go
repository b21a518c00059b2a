package tipamount

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Composer holds the pending amount for one tip control. It is not safe for
// concurrent use; the owning button serializes access.
type Composer struct {
	value          decimal.Decimal
	lastValid      decimal.Decimal
	field          string
	editedManually bool
	editing        bool
	intensity      float64
}

// NewComposer starts at the post's last tip amount, or the default.
func NewComposer(lastTip *decimal.Decimal) *Composer {
	c := &Composer{}
	c.set(Seed(lastTip))
	return c
}

func (c *Composer) set(v decimal.Decimal) {
	c.value = v
	c.lastValid = v
	c.field = FormatUSD(v)
}

func (c *Composer) Value() decimal.Decimal { return c.value }
func (c *Composer) Field() string          { return c.field }
func (c *Composer) Editing() bool          { return c.editing }
func (c *Composer) EditedManually() bool   { return c.editedManually }
func (c *Composer) Intensity() float64     { return c.intensity }

// ETH is the display string of the pending amount in ETH.
func (c *Composer) ETH() string { return FormatETH(c.value) }

// Click adds the increment for ratio to the pending amount.
func (c *Composer) Click(ratio float64) decimal.Decimal {
	c.editing = false
	c.set(Clamp(c.value.Add(Increment(ratio))))
	c.intensity = Intensity(ratio)
	c.editedManually = true
	return c.value
}

// BeginEdit enters free-text mode.
func (c *Composer) BeginEdit() {
	c.editing = true
	c.editedManually = true
}

// SetText replaces the field text. The pending value follows the text
// unclamped; unparsable text makes it zero until Blur normalizes it.
func (c *Composer) SetText(text string) {
	c.field = strings.Replace(text, ",", ".", 1)
	if v, ok := ParseUSD(c.field); ok {
		c.value = v
	} else {
		c.value = decimal.Zero
	}
	c.editedManually = true
}

// Blur leaves free-text mode, falling back to the last valid amount when the
// field does not parse.
func (c *Composer) Blur() decimal.Decimal {
	if v, ok := ParseUSD(c.field); ok {
		c.set(Clamp(v))
	} else {
		c.set(c.lastValid)
	}
	c.editing = false
	return c.value
}

// EndEdit leaves free-text mode without touching the amount.
func (c *Composer) EndEdit() { c.editing = false }

// Invalid reports whether the field holds text that is not an acceptable amount.
func (c *Composer) Invalid() bool {
	if c.field == "" {
		return false
	}
	v, ok := ParseUSD(c.field)
	return !ok || v.LessThan(MinUSD)
}

// SubmitAmount is the clamped amount to send.
func (c *Composer) SubmitAmount() decimal.Decimal {
	return Clamp(c.value)
}

// Reset returns to the default amount after a settled tip.
func (c *Composer) Reset(hasTipped bool) {
	c.set(Clamp(DefaultUSD))
	c.editedManually = false
	c.intensity = 0
	if hasTipped {
		c.intensity = baseIntensity
	}
}

// Seed adopts lastTip as the pending amount unless the user is busy with
// the control or has already adjusted it.
func (c *Composer) Seed(lastTip *decimal.Decimal, hasTipped, busy bool) {
	if lastTip == nil || busy || c.editing || c.editedManually {
		return
	}
	c.set(Clamp(*lastTip))
	c.intensity = 0
	if hasTipped {
		c.intensity = baseIntensity
	}
}
