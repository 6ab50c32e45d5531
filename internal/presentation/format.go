package presentation

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// FormatPercentage renders a ratio as a percentage with one decimal place.
// Values outside [0, 1] are formatted as-is.
func FormatPercentage(v float64) string {
	x := v * 100
	if x == 0 {
		x = 0 // drop the sign of negative zero
	}
	return fmt.Sprintf("%.1f%%", x)
}

// HumanizeFeatureName turns snake_case feature keys into "Title Case" labels.
// Only the first letter of each token is changed.
func HumanizeFeatureName(feature string) string {
	if feature == "" {
		return ""
	}
	tokens := strings.Split(feature, "_")
	for i, tok := range tokens {
		r, size := utf8.DecodeRuneInString(tok)
		if size == 0 {
			continue
		}
		tokens[i] = string(unicode.ToUpper(r)) + tok[size:]
	}
	return strings.Join(tokens, " ")
}

// FormatShap renders a SHAP value to three decimals. Every entry of a
// risk-increasing list carries a literal "+" whatever its value; risk-reducing
// entries keep their native form.
func FormatShap(v float64, increasing bool) string {
	if increasing {
		return "+" + fmt.Sprintf("%.3f", v)
	}
	return fmt.Sprintf("%.3f", v)
}

// FormatWeight renders a meta-model weight or intercept.
func FormatWeight(v float64) string {
	return fmt.Sprintf("%.3f", v)
}
