package model

import "regexp"

// symbolRe matches Binance-style spot symbols: uppercase alphanumerics,
// e.g. "BTCUSDT", "ETHBTC". 5–20 chars keeps obvious garbage out.
var symbolRe = regexp.MustCompile(`^[A-Z0-9]{5,20}$`)

// ValidSymbol reports whether s is a well-formed instrument symbol.
func ValidSymbol(s string) bool {
	return symbolRe.MatchString(s)
}

// Instrument describes one tradeable instrument offered on the control
// surface.
type Instrument struct {
	Symbol   string `json:"symbol"`
	Base     string `json:"base,omitempty"`
	Quote    string `json:"quote,omitempty"`
	Interval string `json:"interval"`
}
