package les

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// BlockHeader is the subset of a block header the light client tracks.
// Headers are produced by the chain/sync layer and are read-only here.
type BlockHeader struct {
	Hash            common.Hash
	ParentHash      common.Hash
	StateRoot       common.Hash
	Number          *big.Int
	TotalDifficulty *big.Int // nil when the source did not report it

	// Source is the full header this summary was taken from, if any.
	Source *types.Header
}

// NewBlockHeader summarises a full header. td may be nil.
func NewBlockHeader(h *types.Header, td *big.Int) *BlockHeader {
	number := new(big.Int)
	if h.Number != nil {
		number.Set(h.Number)
	}
	return &BlockHeader{
		Hash:            h.Hash(),
		ParentHash:      h.ParentHash,
		StateRoot:       h.Root,
		Number:          number,
		TotalDifficulty: td,
		Source:          h,
	}
}

// NumberU64 returns the header height, or 0 for a nil number.
func (h *BlockHeader) NumberU64() uint64 {
	if h == nil || h.Number == nil {
		return 0
	}
	return h.Number.Uint64()
}

// ChainIdentity holds the local facts a remote status is checked against.
// It is immutable for the lifetime of a peer session.
type ChainIdentity struct {
	NetworkID   uint64
	GenesisHash common.Hash
	BestHeader  *BlockHeader
}

// bestHeight returns the local best height, treating a missing header as 0.
func (c *ChainIdentity) bestHeight() *big.Int {
	if c.BestHeader == nil || c.BestHeader.Number == nil {
		return new(big.Int)
	}
	return c.BestHeader.Number
}

// AccountState is the result of evaluating an account proof.
type AccountState struct {
	Nonce       uint64
	Balance     *uint256.Int
	StorageRoot common.Hash
	CodeHash    common.Hash
}
