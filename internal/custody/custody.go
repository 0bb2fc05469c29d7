// Package custody holds one encrypted signing key per operator identity.
//
// Keys are sealed with a cipher key derived from a passphrase and a persisted
// random salt. Only the salt and the ciphertexts are stored.
package custody

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"rugwatch/internal/domain"
	"rugwatch/internal/signer"
	"rugwatch/internal/storage"
)

var (
	// ErrAlreadyProvisioned is returned when the identity already has a wallet.
	ErrAlreadyProvisioned = errors.New("wallet already provisioned")

	// ErrKeyNotFound is returned when no usable key exists for the identity.
	ErrKeyNotFound = errors.New("key not found")
)

// Options configures a Store.
type Options struct {
	// Passphrase feeds the KDF. Empty keeps compatibility with existing stores.
	Passphrase string
	Logger     *slog.Logger
}

// Store is the key custody store. All operations are serialized.
type Store struct {
	mu      sync.Mutex
	records storage.CustodyStore
	cipher  *Cipher
	logger  *slog.Logger
}

// New loads (or creates) the salt, derives the cipher key and returns a Store.
func New(ctx context.Context, records storage.CustodyStore, salts storage.SaltStore, opts Options) (*Store, error) {
	salt, err := storage.LoadOrCreateSalt(ctx, salts, NewSalt)
	if err != nil {
		return nil, fmt.Errorf("custody salt: %w", err)
	}

	key := DeriveKey(opts.Passphrase, salt)
	c, err := NewCipher(key)
	for i := range key {
		key[i] = 0
	}
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		records: records,
		cipher:  c,
		logger:  logger.With("component", "custody"),
	}, nil
}

// Provision generates a keypair for identity and stores it encrypted.
// Returns ErrAlreadyProvisioned if the identity has a record; the existing
// record is left untouched.
func (s *Store) Provision(ctx context.Context, identity string) (*domain.Wallet, error) {
	if identity == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.records.Get(ctx, identity); err == nil {
		return nil, ErrAlreadyProvisioned
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("check custody record: %w", err)
	}

	kp, err := signer.Generate()
	if err != nil {
		return nil, err
	}
	defer kp.Zero()

	wallet := &domain.Wallet{Address: kp.Address(), PrivateKey: kp.Secret()}
	ct, err := s.cipher.Seal([]byte(wallet.PrivateKey), []byte(identity))
	if err != nil {
		return nil, fmt.Errorf("seal key: %w", err)
	}

	if err := s.records.Insert(ctx, domain.CustodyRecord{Identity: identity, Ciphertext: ct}); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, ErrAlreadyProvisioned
		}
		return nil, fmt.Errorf("store custody record: %w", err)
	}

	s.logger.Info("wallet provisioned", "identity", identity, "address", wallet.Address)
	return wallet, nil
}

// Get returns the decrypted wallet for identity. A missing record is
// ErrKeyNotFound; undecryptable and malformed records wrap ErrDecryption.
func (s *Store) Get(ctx context.Context, identity string) (*domain.Wallet, error) {
	kp, err := s.Keypair(ctx, identity)
	if err != nil {
		return nil, err
	}
	defer kp.Zero()

	return &domain.Wallet{Address: kp.Address(), PrivateKey: kp.Secret()}, nil
}

// Keypair returns the signing keypair for identity. The caller owns the
// keypair and should Zero it once the signature is produced.
func (s *Store) Keypair(ctx context.Context, identity string) (*signer.Keypair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.records.Get(ctx, identity)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("load custody record: %w", err)
	}

	plaintext, err := s.cipher.Open(rec.Ciphertext, []byte(identity))
	if err != nil {
		s.logger.Warn("custody record unreadable", "identity", identity, "error", err)
		return nil, err
	}
	defer func() {
		for i := range plaintext {
			plaintext[i] = 0
		}
	}()

	kp, err := signer.ParseKeypair(string(plaintext))
	if err != nil {
		s.logger.Warn("custody record malformed", "identity", identity, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrDecryption, err)
	}
	return kp, nil
}

// Has reports whether identity has a stored record, without decrypting it.
func (s *Store) Has(ctx context.Context, identity string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.records.Get(ctx, identity)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check custody record: %w", err)
	}
	return true, nil
}
