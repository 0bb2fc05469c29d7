package signer

import (
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

var (
	// ErrMalformedTransaction is returned when the template cannot be decoded.
	ErrMalformedTransaction = errors.New("malformed transaction")

	// ErrUnexpectedSigner is returned when the template expects signers other than the wallet.
	ErrUnexpectedSigner = errors.New("transaction requires an unexpected signer")
)

// SignTransaction decodes a serialized unsigned transaction (legacy or v0),
// signs its message with kp as the sole signer and returns the signed bytes
// along with the transaction signature.
func SignTransaction(template []byte, kp *Keypair) ([]byte, solana.Signature, error) {
	if len(template) == 0 {
		return nil, solana.Signature{}, fmt.Errorf("%w: empty payload", ErrMalformedTransaction)
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(template))
	if err != nil {
		return nil, solana.Signature{}, fmt.Errorf("%w: %v", ErrMalformedTransaction, err)
	}

	header := tx.Message.Header
	if header.NumRequiredSignatures != 1 {
		return nil, solana.Signature{}, fmt.Errorf("%w: %d signatures required", ErrUnexpectedSigner, header.NumRequiredSignatures)
	}
	if len(tx.Message.AccountKeys) == 0 || !tx.Message.AccountKeys[0].Equals(kp.PublicKey()) {
		return nil, solana.Signature{}, fmt.Errorf("%w: fee payer is not %s", ErrUnexpectedSigner, kp.Address())
	}

	// Templates arrive with zeroed placeholder signatures; Sign appends.
	tx.Signatures = nil
	sigs, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(kp.PublicKey()) {
			return &kp.key
		}
		return nil
	})
	if err != nil {
		return nil, solana.Signature{}, fmt.Errorf("sign transaction: %w", err)
	}

	signed, err := tx.MarshalBinary()
	if err != nil {
		return nil, solana.Signature{}, fmt.Errorf("encode signed transaction: %w", err)
	}
	return signed, sigs[0], nil
}
