package server

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseWeights parses a "AAPL:0.5,MSFT:0.3" weight string into a map.
// Weights must be in (0, 1] and sum to at most 1 plus rounding slack.
func ParseWeights(input string) (map[string]float64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("weights parameter is required, e.g. AAPL:0.5,MSFT:0.5")
	}

	out := map[string]float64{}
	var total float64
	for _, pair := range strings.Split(input, ",") {
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid weight entry %q, expected TICKER:WEIGHT", pair)
		}
		ticker := strings.ToUpper(strings.TrimSpace(parts[0]))
		if ticker == "" {
			return nil, fmt.Errorf("empty ticker in weight entry %q", pair)
		}
		weight, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid weight %q for %s: %w", parts[1], ticker, err)
		}
		if weight <= 0 || weight > 1 {
			return nil, fmt.Errorf("weight %v for %s outside (0, 1]", weight, ticker)
		}
		if _, dup := out[ticker]; dup {
			return nil, fmt.Errorf("duplicate ticker %s", ticker)
		}
		out[ticker] = weight
		total += weight
	}
	if total > 1.0001 {
		return nil, fmt.Errorf("weights sum to %.4f, must not exceed 1", total)
	}
	return out, nil
}
