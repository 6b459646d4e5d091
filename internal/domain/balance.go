package domain

// Balance is the wallet's native XEC balance in satoshis.
type Balance struct {
	Sats      int64 // spendable
	TotalSats int64 // including unconfirmed / token dust
	UTXOCount int
}
