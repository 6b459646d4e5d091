// Package chronik is a WebSocket client for the chain indexer's live event stream.
package chronik

// Message types sent by the indexer.
const (
	TypeTx    = "Tx"
	TypeBlock = "Block"
	TypeError = "Error"
)

// Message is one event from the indexer.
type Message struct {
	Type        string `json:"type"`
	MsgType     string `json:"msgType,omitempty"` // e.g. TX_ADDED_TO_MEMPOOL, BLK_CONNECTED
	TxID        string `json:"txid,omitempty"`
	BlockHash   string `json:"blockHash,omitempty"`
	BlockHeight int64  `json:"blockHeight,omitempty"`
	Msg         string `json:"msg,omitempty"`
}

// ScriptSub identifies an output script to watch.
type ScriptSub struct {
	ScriptType    string `json:"scriptType"`    // p2pkh or p2sh
	ScriptPayload string `json:"scriptPayload"` // hex hash160
}

// subscribeRequest is the client request frame.
type subscribeRequest struct {
	Action        string `json:"action"` // subscribe or unsubscribe
	ScriptType    string `json:"scriptType,omitempty"`
	ScriptPayload string `json:"scriptPayload,omitempty"`
	Blocks        bool   `json:"blocks,omitempty"`
}
