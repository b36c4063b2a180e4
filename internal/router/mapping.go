package router

import "strings"

// VenueKind identifies which execution venue a symbol routes to.
type VenueKind string

const (
	VenueCrypto   VenueKind = "crypto"
	VenueFX       VenueKind = "fx"
	VenueIndex    VenueKind = "index"
	VenueEquities VenueKind = "equities"
	VenueUnknown  VenueKind = "unknown"
)

// cryptoQuoteSuffixes are quote-currency suffixes that mark a crypto pair.
var cryptoQuoteSuffixes = []string{"USDT", "USDC", "BUSD", "PERP", "BTC", "ETH"}

// isoCurrencies are the currency codes recognized for FX pair detection.
var isoCurrencies = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "JPY": true, "CHF": true,
	"AUD": true, "NZD": true, "CAD": true, "SEK": true, "NOK": true,
	"SGD": true, "HKD": true, "MXN": true, "ZAR": true, "TRY": true,
}

// indexTickers are known index/CFD symbols.
var indexTickers = map[string]bool{
	"SPX": true, "NDX": true, "DJI": true, "US30": true, "NAS100": true,
	"SPX500": true, "GER40": true, "UK100": true, "JPN225": true,
}

// MapSymbol routes a symbol label to a venue kind. It is a pure function of
// the label; unmatched patterns map to VenueUnknown, which the router treats
// as a terminal failure rather than a silent default.
func MapSymbol(symbol string) VenueKind {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return VenueUnknown
	}

	if indexTickers[s] {
		return VenueIndex
	}

	for _, suffix := range cryptoQuoteSuffixes {
		if strings.HasSuffix(s, suffix) && len(s) > len(suffix) {
			return VenueCrypto
		}
	}

	if len(s) == 6 && isAlpha(s) && isoCurrencies[s[:3]] && isoCurrencies[s[3:]] {
		return VenueFX
	}

	if len(s) >= 1 && len(s) <= 5 && isAlpha(s) {
		return VenueEquities
	}

	return VenueUnknown
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
