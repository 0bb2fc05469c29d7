package domain

// EventTypeCreate is the txType of a token creation frame.
const EventTypeCreate = "create"

// CreationEvent is one decoded token creation frame from the live feed.
// It lives only for the duration of one match evaluation.
type CreationEvent struct {
	EventType      string  `json:"txType"`
	CreatorAddress string  `json:"traderPublicKey"`
	TokenName      string  `json:"name"`
	Symbol         string  `json:"symbol"`
	MintAddress    string  `json:"mint"`
	MarketCapSol   float64 `json:"marketCapSol"`
	InitialBuy     float64 `json:"initialBuy"`
	SolAmount      float64 `json:"solAmount"`
	Signature      string  `json:"signature"`
}

// IsCreate reports whether the event is a token creation.
func (e CreationEvent) IsCreate() bool {
	return e.EventType == EventTypeCreate
}
