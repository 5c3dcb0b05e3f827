package paymentlink

// Currencies accepted at the API boundary. Lowercase ISO 4217 codes,
// matching what the checkout provider supports today.
var supportedCurrencies = map[string]bool{
	"usd": true, "eur": true, "gbp": true, "cad": true, "aud": true,
	"nzd": true, "chf": true, "sek": true, "nok": true, "dkk": true,
	"jpy": true, "sgd": true, "hkd": true, "mxn": true, "brl": true,
	"inr": true, "pln": true, "czk": true, "aed": true, "zar": true,
}

// DefaultCurrency is applied when a create request omits the currency.
const DefaultCurrency = "usd"

// SupportedCurrency reports whether code (already lowercased) is accepted.
func SupportedCurrency(code string) bool {
	return supportedCurrencies[code]
}
