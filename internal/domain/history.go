package domain

// HistoryEntry is an append-only audit record of a successful action.
// It is written best-effort and is not a ledger of truth.
type HistoryEntry struct {
	ID            string
	OwnerAddress  string
	TokenID       string
	Ticker        string
	ActionType    ActionType
	Amount        string
	TransactionID string
	Details       string
	CreatedAt     int64 // unix ms
}
