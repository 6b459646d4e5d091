package domain

// TokenInfo is chain-sourced token metadata (genesis info).
// Chain values are authoritative for ticker and decimals.
type TokenInfo struct {
	TokenID  string
	Name     string
	Ticker   string
	Decimals int
	URL      string // genesis document url (may be empty)
}

// Placeholder values used when chain metadata is unavailable or a token is not in the directory.
const (
	PlaceholderTicker = "UNKNOWN"
	PlaceholderName   = "Unknown Token"
	PlaceholderImage  = "/images/token-placeholder.png"
)
