package domain

// DirectoryEntry is a curated, descriptive record of a known token.
// Its ticker and decimals are informational only and never override chain values.
type DirectoryEntry struct {
	ID       string // directory entry ID (stable bookmark identity)
	TokenID  string // exact-match join key against chain token IDs
	Name     string
	Ticker   string
	Decimals int
	ImageURL string
	Region   string
	Verified bool
}
