package bank

// Bank is a tracked financial institution. Ticker and CIK tie the bank to
// market data and SEC EDGAR; the public complaint and enforcement databases
// file the same institution under different legal names, so those variants
// are resolved through CFPBNames and Aliases.
type Bank struct {
	ID     int64  `json:"id" db:"id"`
	Name   string `json:"name" db:"name"`
	Ticker string `json:"ticker" db:"ticker"`
	CIK    string `json:"cik" db:"cik"`
}

// cfpbNames maps a bank to the company strings the CFPB consumer complaint
// database indexes it under.
var cfpbNames = map[string][]string{
	"US Bancorp":       {"U.S. BANCORP", "US BANK", "U.S. BANK NATIONAL ASSOCIATION"},
	"JPMorgan Chase":   {"JPMORGAN CHASE & CO.", "JPMORGAN CHASE BANK", "CHASE BANK"},
	"Wells Fargo":      {"WELLS FARGO & COMPANY", "WELLS FARGO BANK"},
	"Bank of America":  {"BANK OF AMERICA", "BANK OF AMERICA, NATIONAL ASSOCIATION"},
	"PNC Financial":    {"PNC BANK", "PNC FINANCIAL SERVICES"},
	"Truist Financial": {"TRUIST BANK", "TRUIST FINANCIAL", "BB&T", "SUNTRUST"},
}

// aliasNames lists the short names regulators and news wires use for a bank.
// Enforcement notices rarely spell out the canonical holding-company name.
var aliasNames = map[string][]string{
	"US Bancorp":       {"U.S. Bancorp", "US Bank", "U.S. Bank"},
	"JPMorgan Chase":   {"JPMorgan Chase", "JP Morgan Chase", "Chase Bank"},
	"Wells Fargo":      {"Wells Fargo"},
	"Bank of America":  {"Bank of America"},
	"PNC Financial":    {"PNC Bank", "PNC Financial"},
	"Truist Financial": {"Truist", "BB&T", "SunTrust"},
}

// Defaults returns the institutions tracked out of the box. IDs are zero
// until the banks are registered with the store.
func Defaults() []Bank {
	return []Bank{
		{Name: "US Bancorp", Ticker: "USB", CIK: "0000036104"},
		{Name: "JPMorgan Chase", Ticker: "JPM", CIK: "0000019617"},
		{Name: "Wells Fargo", Ticker: "WFC", CIK: "0000072971"},
		{Name: "Bank of America", Ticker: "BAC", CIK: "0000070858"},
		{Name: "PNC Financial", Ticker: "PNC", CIK: "0000713676"},
		{Name: "Truist Financial", Ticker: "TFC", CIK: "0000092230"},
	}
}

// CFPBNames returns the CFPB company strings for a bank, falling back to the
// bank's own name when no variant is registered.
func (b Bank) CFPBNames() []string {
	if names, ok := cfpbNames[b.Name]; ok {
		return names
	}
	return []string{b.Name}
}

// Aliases returns every name the bank may appear under in free text. For
// registered banks the canonical name is not always included, matching how
// the agencies actually caption their notices.
func (b Bank) Aliases() []string {
	if names, ok := aliasNames[b.Name]; ok {
		return names
	}
	return []string{b.Name}
}
