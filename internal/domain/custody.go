package domain

// CustodyRecord maps an operator identity to its encrypted signing key.
// One record per identity; records are never overwritten.
type CustodyRecord struct {
	Identity   string
	Ciphertext string
}

// Wallet is a decrypted custody record.
// PrivateKey is base58 or hex key material and must not be logged.
type Wallet struct {
	Address    string
	PrivateKey string
}

// String hides key material from fmt and slog.
func (w Wallet) String() string {
	return "Wallet{" + w.Address + "}"
}
