package normalizer

import (
	"math"
	"strconv"
	"strings"
)

// PriceCents parses a display price such as "$49.00" or "$1,299.50"
// into integer minor units. Unparseable input yields 0.
func PriceCents(priceText string) int {
	if priceText == "" {
		return 0
	}

	clean := strings.NewReplacer("$", "", ",", "").Replace(priceText)
	price, err := strconv.ParseFloat(strings.TrimSpace(clean), 64)
	if err != nil {
		return 0
	}

	return int(math.Round(price * 100))
}
