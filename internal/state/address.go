package state

import (
	"mev_engine/internal/core"

	"golang.org/x/crypto/sha3"
)

const (
	derivationMarker = "ProgramDerivedAddress"
	slotSeed         = "mev_state"
	retiredSeed      = "mev_retired"
)

// DeriveAddress hashes the seeds together with the owning program id into a
// deterministic account key.
func DeriveAddress(programID core.Pubkey, seeds ...[]byte) core.Pubkey {
	h := sha3.New256()
	for _, s := range seeds {
		h.Write(s)
	}
	h.Write(programID[:])
	h.Write([]byte(derivationMarker))

	var out core.Pubkey
	copy(out[:], h.Sum(nil))
	return out
}

// SlotAddress is where the record for owner lives under programID
func SlotAddress(programID, owner core.Pubkey) core.Pubkey {
	return DeriveAddress(programID, []byte(slotSeed), owner[:])
}

// RetiredOwner takes over a withdrawn slot. The record bytes stay in place but
// the slot is no longer owned by programID, so no later credit revives it.
func RetiredOwner(programID core.Pubkey) core.Pubkey {
	return DeriveAddress(programID, []byte(retiredSeed))
}
