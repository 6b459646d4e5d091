package domain

// ActionType identifies a value-moving wallet operation.
type ActionType string

const (
	ActionSend    ActionType = "SEND"
	ActionMint    ActionType = "MINT"
	ActionBurn    ActionType = "BURN"
	ActionAirdrop ActionType = "AIRDROP"
)

// String returns the string representation of ActionType.
func (a ActionType) String() string {
	return string(a)
}

// IsValid checks if the action type is a valid value.
func (a ActionType) IsValid() bool {
	switch a {
	case ActionSend, ActionMint, ActionBurn, ActionAirdrop:
		return true
	}
	return false
}

// Label returns the past-tense label shown to the user after the action succeeds.
func (a ActionType) Label() string {
	switch a {
	case ActionSend:
		return "Sent"
	case ActionMint:
		return "Minted"
	case ActionBurn:
		return "Burned"
	case ActionAirdrop:
		return "Airdropped"
	}
	return "Completed"
}

// Recipient is a single destination of a send or airdrop.
type Recipient struct {
	Address string // cashaddr, e.g. ecash:qq...
	Amount  string // decimal string in token units
}
