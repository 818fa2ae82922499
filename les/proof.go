package les

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/holiman/uint256"

	"github.com/eth2030/lespeer/crypto"
)

var (
	ErrEmptyProof    = errors.New("les: proofs response carries no nodes")
	ErrNoStateRoot   = errors.New("les: block header has no state root")
	ErrBadAccountRLP = errors.New("les: malformed account in proof")
)

// TrieEvaluator verifies a les/2 proofs response against the state root of
// the requested block header. The node set is loaded into a scratch
// key/value store keyed by node hash, then the account is looked up under
// keccak(address). A valid proof of absence yields the empty account.
type TrieEvaluator struct{}

// Evaluate implements Evaluator.
func (TrieEvaluator) Evaluate(address []byte, header *BlockHeader, msg *ProofsMessage) (*AccountState, error) {
	if header == nil {
		return nil, ErrNilBlockHeader
	}
	if header.StateRoot == (common.Hash{}) {
		return nil, ErrNoStateRoot
	}
	if len(msg.Nodes) == 0 {
		return nil, ErrEmptyProof
	}
	db := memorydb.New()
	for _, node := range msg.Nodes {
		if err := db.Put(crypto.Keccak256(node), node); err != nil {
			return nil, err
		}
	}
	value, err := trie.VerifyProof(header.StateRoot, crypto.SecureKey(address), db)
	if err != nil {
		return nil, fmt.Errorf("les: account proof for %x: %w", address, err)
	}
	if len(value) == 0 {
		return emptyAccountState(), nil
	}
	return decodeAccountState(value)
}

func decodeAccountState(enc []byte) (*AccountState, error) {
	var acc types.StateAccount
	if err := rlp.DecodeBytes(enc, &acc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadAccountRLP, err)
	}
	state := &AccountState{
		Nonce:       acc.Nonce,
		Balance:     acc.Balance,
		StorageRoot: acc.Root,
		CodeHash:    common.BytesToHash(acc.CodeHash),
	}
	if state.Balance == nil {
		state.Balance = new(uint256.Int)
	}
	return state, nil
}

func emptyAccountState() *AccountState {
	return &AccountState{
		Balance:     new(uint256.Int),
		StorageRoot: types.EmptyRootHash,
		CodeHash:    types.EmptyCodeHash,
	}
}
