// Package fee estimates network fees from the shape of a wallet action.
package fee

// DustFloor is the smallest output value the chain accepts, in satoshis.
// Every estimate is clamped up to it.
const DustFloor int64 = 546

// SatsPerByte is the fixed relay fee rate.
const SatsPerByte int64 = 1

// Action is the operation being estimated.
type Action string

const (
	ActionSend    Action = "send"
	ActionMint    Action = "mint"
	ActionBurn    Action = "burn"
	ActionAirdrop Action = "airdrop"
	ActionMessage Action = "message"
)

// Estimated transaction sizes, in bytes.
const (
	sendBytes = 450

	airdropBaseBytes      = 250
	airdropPerOutputBytes = 34
	airdropBatchBytes     = 150 // extra input/overhead every airdropBatchSize recipients
	airdropBatchSize      = 5

	messageBaseBytes     = 200
	messageOverheadBytes = 15
	messageChangeBytes   = 34
)

// Params is the part of an action's input that affects its size.
type Params struct {
	RecipientCount int
	Message        string
}

// Estimate is the fee in satoshis. It is pure and cheap; callers recompute it
// on every input change.
type Estimate struct {
	Sats int64 `json:"sats"`
}

// EstimateFee returns the fee for action with params, never below DustFloor.
func EstimateFee(action Action, params Params) Estimate {
	return Estimate{Sats: clamp(txBytes(action, params) * SatsPerByte)}
}

// EstimateSats is EstimateFee returning the bare satoshi value.
func EstimateSats(action Action, params Params) int64 {
	return EstimateFee(action, params).Sats
}

func txBytes(action Action, params Params) int64 {
	switch action {
	case ActionSend:
		return sendBytes
	case ActionAirdrop:
		n := int64(params.RecipientCount)
		if n < 0 {
			n = 0
		}
		return airdropBaseBytes + airdropPerOutputBytes*n + airdropBatchBytes*(n/airdropBatchSize)
	case ActionMessage:
		// len() counts UTF-8 bytes, which is what goes on chain.
		return messageBaseBytes + messageOverheadBytes + int64(len(params.Message)) + messageChangeBytes
	default:
		// mint, burn and unknown actions rely on the dust floor alone
		return 0
	}
}

func clamp(sats int64) int64 {
	if sats < DustFloor {
		return DustFloor
	}
	return sats
}
