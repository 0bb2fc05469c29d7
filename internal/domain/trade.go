package domain

// Action is the trade direction.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// TradeRequest is built from a callback payload.
type TradeRequest struct {
	ActorIdentity  string
	Action         Action
	Mint           string
	AmountSol      float64 // ignored for sells, which always sell 100%
	SlippageBps    int
	PriorityFeeSol float64
	Pool           string
}

// ErrorClass classifies a failed trade.
type ErrorClass string

const (
	ErrorClassNone                 ErrorClass = "none"
	ErrorClassNetwork              ErrorClass = "network_error"
	ErrorClassEmptyResponse        ErrorClass = "empty_response"
	ErrorClassMalformedTransaction ErrorClass = "malformed_transaction"
	ErrorClassAccountNotFound      ErrorClass = "account_not_found"
	ErrorClassChainSubmission      ErrorClass = "chain_submission_error"
	ErrorClassKeyNotFound          ErrorClass = "key_not_found"
	ErrorClassInvalidAddress       ErrorClass = "invalid_address"
)

// TradeResult is delivered privately to the invoker.
type TradeResult struct {
	Succeeded  bool
	Message    string // explorer URL on success, plain-language explanation otherwise
	ErrorClass ErrorClass
	Signature  string
	Detail     string // raw diagnostic for support, never key material
}
