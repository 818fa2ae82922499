// Package crypto holds the hashing helpers used for trie key derivation and
// proof node lookup.
package crypto

import (
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// Keccak256 calculates the legacy (pre-NIST) Keccak-256 hash of the
// concatenation of data.
func Keccak256(data ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

// Keccak256Hash is Keccak256 returned as a common.Hash.
func Keccak256Hash(data ...[]byte) common.Hash {
	return common.BytesToHash(Keccak256(data...))
}

// SecureKey derives the state trie key of an account address: state tries
// are keyed by the hash of the address rather than the address itself.
func SecureKey(address []byte) []byte {
	return Keccak256(address)
}
