package signer

import (
	"crypto/ed25519"
	"encoding/hex"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseRoundTrip(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	parsed, err := ParseKeypair(kp.Secret())
	require.NoError(t, err)
	assert.Equal(t, kp.Address(), parsed.Address())
	assert.Len(t, kp.Address(), len(kp.PublicKey().String()))
}

func TestParseKeypair_LegacyHexForms(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	full := ed25519.NewKeyFromSeed(seed)
	want := solana.PublicKeyFromBytes(full.Public().(ed25519.PublicKey)).String()

	fromSeed, err := ParseKeypair(hex.EncodeToString(seed))
	require.NoError(t, err)
	assert.Equal(t, want, fromSeed.Address())

	fromFull, err := ParseKeypair(hex.EncodeToString(full))
	require.NoError(t, err)
	assert.Equal(t, want, fromFull.Address())
}

func TestParseKeypair_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"not base58", "0OIl"},
		{"short base58", "3yZe7d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseKeypair(tt.input)
			assert.ErrorIs(t, err, ErrInvalidKey)
		})
	}
}

func TestVerifyKeypair_MismatchedPublicKey(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)

	raw := append([]byte(nil), a.key[:32]...)
	raw = append(raw, b.key[32:]...)
	assert.ErrorIs(t, VerifyKeypair(raw), ErrInvalidKey)
}

func TestZero(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)
	kp.Zero()
	for _, b := range kp.key {
		require.Zero(t, b)
	}
}

func TestString_HidesSecret(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)
	assert.NotContains(t, kp.String(), kp.Secret())
	assert.Contains(t, kp.String(), kp.Address())
}

// buildTemplate returns an unsigned transfer paid by payer, serialized with
// a zeroed placeholder signature the way trade-local templates arrive.
func buildTemplate(t *testing.T, payer solana.PublicKey) []byte {
	t.Helper()

	recipient, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(1000, payer, recipient.PublicKey()).Build(),
		},
		solana.Hash{1, 2, 3},
		solana.TransactionPayer(payer),
	)
	require.NoError(t, err)

	tx.Signatures = []solana.Signature{{}}
	data, err := tx.MarshalBinary()
	require.NoError(t, err)
	return data
}

func TestSignTransaction(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	signed, sig, err := SignTransaction(buildTemplate(t, kp.PublicKey()), kp)
	require.NoError(t, err)
	assert.False(t, sig.IsZero())

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(signed))
	require.NoError(t, err)
	require.Len(t, tx.Signatures, 1)
	assert.Equal(t, sig, tx.Signatures[0])

	msg, err := tx.Message.MarshalBinary()
	require.NoError(t, err)
	assert.True(t, sig.Verify(kp.PublicKey(), msg))
}

func TestSignTransaction_Malformed(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	_, _, err = SignTransaction(nil, kp)
	assert.ErrorIs(t, err, ErrMalformedTransaction)

	_, _, err = SignTransaction([]byte{0x01, 0x02, 0x03}, kp)
	assert.ErrorIs(t, err, ErrMalformedTransaction)
}

func TestSignTransaction_ForeignPayer(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)
	other, err := Generate()
	require.NoError(t, err)

	_, _, err = SignTransaction(buildTemplate(t, other.PublicKey()), kp)
	assert.ErrorIs(t, err, ErrUnexpectedSigner)
}
