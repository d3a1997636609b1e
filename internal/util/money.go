// Package util holds small formatting helpers.
package util

import "fmt"

// CentsToString renders a cent amount as a euro string, e.g. 1205 -> "€12,05".
func CentsToString(cents int, separator string, withEuro bool) string {
	negative := cents < 0
	if negative {
		cents = -cents
	}

	prefix := ""
	if withEuro {
		prefix = "€"
	}
	if negative {
		prefix += "-"
	}
	return fmt.Sprintf("%s%d%s%02d", prefix, cents/100, separator, cents%100)
}
