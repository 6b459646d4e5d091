package domain

import "math/big"

// TokenHolding is one token the wallet holds, joined against the directory.
type TokenHolding struct {
	TokenID        string
	RawBalance     *big.Int // base units
	Ticker         string   // chain-sourced
	Decimals       int      // chain-sourced
	Name           string
	ImageURL       string
	Region         string
	DisplayBalance string // RawBalance / 10^Decimals, trailing zeros trimmed
	Verified       bool   // true when matched against the directory
	MetadataOK     bool   // false when chain metadata fell back to placeholders
	Entry          *DirectoryEntry
}

// HoldingSnapshot is a point-in-time record of a holding, appended after each committed scan.
type HoldingSnapshot struct {
	OwnerAddress string
	TokenID      string
	Ticker       string
	RawBalance   string
	Decimals     int
	ScannedAt    int64 // unix ms
	Generation   uint64
}
