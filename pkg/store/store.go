// Package store persists savestates in a pebble database keyed by ROM
// fingerprint and slot number, so snapshots from different ROMs never
// collide.
package store

import (
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/retroenv/retrogolib/log"
	"golang.org/x/crypto/blake2b"

	"chip86/pkg/chip8"
	"chip86/pkg/errors"
	"chip86/pkg/serializer"
)

// Store is a pebble-backed savestate repository.
type Store struct {
	db     *pebble.DB
	logger *log.Logger
}

// RomSum fingerprints a ROM image. The hash is the savestate namespace for
// that ROM.
func RomSum(data []byte) [32]byte {
	return blake2b.Sum256(data)
}

// Open opens or creates the savestate database at path.
func Open(path string, logger *log.Logger) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("opening savestate db: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func stateKey(rom [32]byte, slot uint8) []byte {
	key := make([]byte, 0, len(rom)+1)
	key = append(key, rom[:]...)
	return append(key, slot)
}

// Save snapshots the guest machine into a slot.
func (s *Store) Save(rom [32]byte, slot uint8, st *chip8.State) error {
	data := serializer.Serialize(st)

	if err := s.db.Set(stateKey(rom, slot), data, pebble.Sync); err != nil {
		return fmt.Errorf("writing savestate slot %d: %w", slot, err)
	}

	s.logger.Debug("savestate written",
		log.Int("slot", int(slot)),
		log.Int("bytes", len(data)))
	return nil
}

// Load restores a snapshot into the guest machine. The caller must flush
// the translation cache afterwards: the restored memory invalidates every
// translated block.
//
// The state's stack pointer survives the round trip unchanged because it
// is stored base-relative, not as a host address.
func (s *Store) Load(rom [32]byte, slot uint8, st *chip8.State) error {
	data, closer, err := s.db.Get(stateKey(rom, slot))
	if err == pebble.ErrNotFound {
		return errors.EmuErrorf("no savestate in slot %d", slot)
	}
	if err != nil {
		return fmt.Errorf("reading savestate slot %d: %w", slot, err)
	}
	defer closer.Close()

	var restored chip8.State
	if err := serializer.Deserialize(data, &restored); err != nil {
		return errors.WrapEmuError(err, fmt.Sprintf("corrupt savestate in slot %d", slot))
	}

	*st = restored
	return nil
}

// Slots lists the occupied savestate slots for a ROM.
func (s *Store) Slots(rom [32]byte) ([]uint8, error) {
	lower := stateKey(rom, 0)
	upper := append(rom[:len(rom):len(rom)], 0xFF, 0xFF)

	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: upper,
	})
	if err != nil {
		return nil, fmt.Errorf("iterating savestates: %w", err)
	}
	defer iter.Close()

	var slots []uint8
	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		if len(key) == len(rom)+1 {
			slots = append(slots, key[len(rom)])
		}
	}
	return slots, iter.Error()
}
