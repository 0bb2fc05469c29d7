package solana

import "context"

// RPCClient defines the Solana JSON-RPC calls the bot needs.
type RPCClient interface {
	// SendTransaction submits a signed, serialized transaction and returns its signature.
	SendTransaction(ctx context.Context, tx []byte) (string, error)

	// GetBalance returns the balance of an address in lamports.
	GetBalance(ctx context.Context, address string) (uint64, error)
}

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// LamportsToSOL converts lamports to SOL.
func LamportsToSOL(lamports uint64) float64 {
	return float64(lamports) / LamportsPerSOL
}
