package verifier

import (
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/blake2b"
)

// Fingerprinter derives a keyed, deterministic digest of a serial within an
// institution. Salted verifiers cannot back a uniqueness constraint, so the
// store indexes this digest instead of the raw serial. Without the key the
// digest cannot be brute-forced offline.
type Fingerprinter struct {
	key []byte
}

func NewFingerprinter(key []byte) (*Fingerprinter, error) {
	if len(key) < 16 || len(key) > blake2b.Size {
		return nil, errors.New("fingerprint key must be between 16 and 64 bytes")
	}
	return &Fingerprinter{key: append([]byte(nil), key...)}, nil
}

// Serial returns hex(blake2b-256_key(scope || 0x00 || serial)).
func (f *Fingerprinter) Serial(scope, serial string) string {
	h, err := blake2b.New256(f.key)
	if err != nil {
		// key length is checked in NewFingerprinter
		panic(err)
	}
	h.Write([]byte(scope))
	h.Write([]byte{0})
	h.Write([]byte(NormalizeSerial(serial)))
	return hex.EncodeToString(h.Sum(nil))
}
