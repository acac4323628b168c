package compare

import "fmt"

// NotApplicable is rendered in place of an undefined delta.
const NotApplicable = "N/A"

// FormatChange renders a percentage delta with an explicit sign, like "+15%"
// or "-10%". A nil delta renders as the fixed not-applicable token.
func FormatChange(change *float64) string {
	if change == nil {
		return NotApplicable
	}
	if *change >= 0 {
		return fmt.Sprintf("+%.0f%%", *change)
	}
	return fmt.Sprintf("%.0f%%", *change)
}

// FormatSuffix renders a delta pair as a parenthetical suffix, like
// " (+15% MoM, -5% YoY)". When both deltas are absent the suffix is empty
// rather than a pair of not-applicable tokens.
func FormatSuffix(d Delta) string {
	if d.MoM == nil && d.YoY == nil {
		return ""
	}
	return fmt.Sprintf(" (%s MoM, %s YoY)", FormatChange(d.MoM), FormatChange(d.YoY))
}
