package domain

// JournalEntry is one recorded trade attempt.
type JournalEntry struct {
	ID          string
	Identity    string
	Action      Action
	Mint        string
	AmountSol   float64
	Succeeded   bool
	ErrorClass  ErrorClass
	Signature   string
	Message     string
	CreatedAtMs int64
}
