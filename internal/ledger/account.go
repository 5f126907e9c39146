// Package ledger stores the accounts the engine reads and writes
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"

	"mev_engine/internal/core"
	apperrors "mev_engine/pkg/errors"
)

// Account is a funded, owned data slot
type Account struct {
	Key      core.Pubkey
	Owner    core.Pubkey
	Lamports uint64
	Data     []byte
}

// Clone returns a deep copy so callers can mutate without touching stored state
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.Data = append([]byte(nil), a.Data...)
	return &c
}

func (a *Account) checksum() [32]byte {
	h := sha256.New()
	h.Write(a.Key[:])
	h.Write(a.Owner[:])
	var lamports [8]byte
	binary.LittleEndian.PutUint64(lamports[:], a.Lamports)
	h.Write(lamports[:])
	h.Write(a.Data)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Store persists accounts. Save writes every account or none of them.
type Store interface {
	Load(ctx context.Context, key core.Pubkey) (*Account, error)
	Save(ctx context.Context, accounts ...*Account) error
	Close() error
}

// LoadOrEmpty returns the stored account, or an unfunded system-owned account
// when the key has never been written.
func LoadOrEmpty(ctx context.Context, s Store, key core.Pubkey) (*Account, error) {
	acc, err := s.Load(ctx, key)
	if errors.Is(err, apperrors.ErrAccountNotFound) {
		return &Account{Key: key, Owner: core.SystemProgram}, nil
	}
	return acc, err
}

// Ping checks that the store answers reads
func Ping(ctx context.Context, s Store) error {
	_, err := s.Load(ctx, core.Pubkey{})
	if err == nil || errors.Is(err, apperrors.ErrAccountNotFound) {
		return nil
	}
	return err
}

// Rent computes the funding an account needs to stay exempt from collection
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionYears      uint64
}

// accountStorageOverhead is charged on top of the data length
const accountStorageOverhead = 128

// DefaultRent mirrors the usual cluster parameters
var DefaultRent = Rent{LamportsPerByteYear: 3480, ExemptionYears: 2}

// MinimumBalance returns the rent-exempt balance for size bytes of data
func (r Rent) MinimumBalance(size int) uint64 {
	return (accountStorageOverhead + uint64(size)) * r.LamportsPerByteYear * r.ExemptionYears
}
