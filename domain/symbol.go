package domain

import (
	"strings"
)

type AssetClass int

const (
	AssetCrypto AssetClass = iota
	AssetForex
)

func (a AssetClass) String() string {
	if a == AssetForex {
		return "forex"
	}
	return "crypto"
}

// QuoteSuffix is the spot-market quote currency appended to bare crypto
// tickers before querying the exchange (BTC -> BTCUSDT).
const QuoteSuffix = "USDT"

var forexCurrencies = map[string]struct{}{
	"USD": {}, "EUR": {}, "GBP": {}, "JPY": {},
	"AUD": {}, "CAD": {}, "CHF": {}, "NZD": {},
}

var separators = []string{"/", "_", "-"}

// Classify decides once, at the boundary, whether a canonical symbol is a
// forex pair or a crypto asset. A symbol is forex when a pair separator
// splits it into two known currency codes, or when the cleaned symbol is
// exactly two known codes back to back. Everything else is crypto.
func Classify(symbol string) AssetClass {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	for _, sep := range separators {
		if idx := strings.Index(s, sep); idx > 0 {
			base, quote := s[:idx], s[idx+len(sep):]
			if isCurrency(base) && isCurrency(quote) {
				return AssetForex
			}
		}
	}
	cleaned := CleanSymbol(s)
	if len(cleaned) == 6 && isCurrency(cleaned[:3]) && isCurrency(cleaned[3:]) {
		return AssetForex
	}
	return AssetCrypto
}

func CleanSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	for _, sep := range separators {
		s = strings.ReplaceAll(s, sep, "")
	}
	return s
}

func isCurrency(code string) bool {
	_, ok := forexCurrencies[code]
	return ok
}

// MarketSymbol converts a canonical crypto ticker into the exchange spot
// symbol, appending the quote suffix when it is not already present.
func MarketSymbol(symbol string) string {
	s := CleanSymbol(symbol)
	if strings.HasSuffix(s, QuoteSuffix) {
		return s
	}
	return s + QuoteSuffix
}

// Instrument converts a canonical forex pair into the provider's
// underscore-separated instrument name (EUR/USD -> EUR_USD).
func Instrument(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	for _, sep := range separators {
		s = strings.ReplaceAll(s, sep, "_")
	}
	if !strings.Contains(s, "_") && len(s) == 6 {
		s = s[:3] + "_" + s[3:]
	}
	return s
}

type upstreamSymbols struct {
	Crypto string
	Forex  string
}

// symbolTable maps every canonical ticker the application advertises onto
// each upstream's own spelling. It is static on purpose: a symbol missing
// here is a configuration error, caught at startup, not at stream time.
var symbolTable = map[string]upstreamSymbols{
	"BTC":  {Crypto: "BTCUSDT"},
	"ETH":  {Crypto: "ETHUSDT"},
	"BNB":  {Crypto: "BNBUSDT"},
	"SOL":  {Crypto: "SOLUSDT"},
	"XRP":  {Crypto: "XRPUSDT"},
	"ADA":  {Crypto: "ADAUSDT"},
	"DOGE": {Crypto: "DOGEUSDT"},
	"DOT":  {Crypto: "DOTUSDT"},
	"LTC":  {Crypto: "LTCUSDT"},
	"TRX":  {Crypto: "TRXUSDT"},

	"EUR/USD": {Forex: "EUR_USD"},
	"GBP/USD": {Forex: "GBP_USD"},
	"USD/JPY": {Forex: "USD_JPY"},
	"AUD/USD": {Forex: "AUD_USD"},
	"USD/CHF": {Forex: "USD_CHF"},
	"USD/CAD": {Forex: "USD_CAD"},
}

// UpstreamSymbol resolves the canonical ticker to the spelling the
// appropriate upstream expects.
func UpstreamSymbol(symbol string) (string, error) {
	entry, ok := symbolTable[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return "", &UnmappedSymbolError{Symbol: symbol}
	}
	if Classify(symbol) == AssetForex {
		return entry.Forex, nil
	}
	return entry.Crypto, nil
}

// CanonicalSymbol maps an upstream spelling back to the canonical ticker
// (BTCUSDT -> BTC, EUR_USD -> EUR/USD). Unknown spellings come back as-is.
func CanonicalSymbol(upstream string) string {
	s := strings.ToUpper(strings.TrimSpace(upstream))
	for canonical, entry := range symbolTable {
		if entry.Crypto == s || entry.Forex == s {
			return canonical
		}
	}
	if strings.HasSuffix(s, QuoteSuffix) && len(s) > len(QuoteSuffix) {
		return strings.TrimSuffix(s, QuoteSuffix)
	}
	return strings.ReplaceAll(s, "_", "/")
}

func SupportedSymbols() []string {
	out := make([]string, 0, len(symbolTable))
	for s := range symbolTable {
		out = append(out, s)
	}
	return out
}

// ValidateSymbols fails fast when any advertised symbol has no upstream
// mapping.
func ValidateSymbols(advertised []string) error {
	for _, s := range advertised {
		if _, err := UpstreamSymbol(s); err != nil {
			return err
		}
	}
	return nil
}
