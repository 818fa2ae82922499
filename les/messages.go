package les

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Message is a decoded les message. Code reports the les/2 message code of
// the variant.
type Message interface {
	Code() uint64
}

// StatusMessage is exchanged by both sides right after the session starts.
type StatusMessage struct {
	ProtocolVersion          uint8
	NetworkID                uint64
	GenesisHash              common.Hash
	BestBlockTotalDifficulty *big.Int
	BestBlockHash            common.Hash
	BestBlockHeight          *big.Int
}

// GetBlockHeadersMessage asks for up to MaxHeaders headers starting at
// BlockHash.
type GetBlockHeadersMessage struct {
	RequestID  uint64
	BlockHash  common.Hash
	MaxHeaders uint64
	Skip       uint64
	Reverse    bool
}

// BlockHeadersMessage answers a GetBlockHeadersMessage.
type BlockHeadersMessage struct {
	RequestID uint64
	Headers   []*BlockHeader
}

// ProofRequest asks for the Merkle proof of Key in the state trie of the
// block identified by BlockHash.
type ProofRequest struct {
	BlockHash common.Hash
	Key       []byte
}

// GetProofsMessage requests one or more proofs.
type GetProofsMessage struct {
	RequestID     uint64
	ProofRequests []ProofRequest
}

// ProofsMessage carries the trie nodes answering a GetProofsMessage. The
// node set is opaque to the peer and consumed by the request's Evaluator.
type ProofsMessage struct {
	RequestID uint64
	Nodes     [][]byte
}

// AnnounceMessage is pushed by a server whenever its head changes.
type AnnounceMessage struct {
	BlockHash       common.Hash
	BlockHeight     *big.Int
	TotalDifficulty *big.Int
	ReorgDepth      uint64
}

func (*StatusMessage) Code() uint64          { return StatusMsg }
func (*GetBlockHeadersMessage) Code() uint64 { return GetBlockHeadersMsg }
func (*BlockHeadersMessage) Code() uint64    { return BlockHeadersMsg }
func (*GetProofsMessage) Code() uint64       { return GetProofsV2Msg }
func (*ProofsMessage) Code() uint64          { return ProofsV2Msg }
func (*AnnounceMessage) Code() uint64        { return AnnounceMsg }

func (m *StatusMessage) String() string {
	return fmt.Sprintf("Status(version=%d network=%d genesis=%x head=%x height=%v td=%v)",
		m.ProtocolVersion, m.NetworkID, m.GenesisHash[:4], m.BestBlockHash[:4], m.BestBlockHeight, m.BestBlockTotalDifficulty)
}

func (m *GetBlockHeadersMessage) String() string {
	return fmt.Sprintf("GetBlockHeaders(id=%d hash=%x max=%d)", m.RequestID, m.BlockHash[:4], m.MaxHeaders)
}

func (m *BlockHeadersMessage) String() string {
	return fmt.Sprintf("BlockHeaders(id=%d count=%d)", m.RequestID, len(m.Headers))
}

func (m *GetProofsMessage) String() string {
	return fmt.Sprintf("GetProofs(id=%d count=%d)", m.RequestID, len(m.ProofRequests))
}

func (m *ProofsMessage) String() string {
	return fmt.Sprintf("Proofs(id=%d nodes=%d)", m.RequestID, len(m.Nodes))
}

func (m *AnnounceMessage) String() string {
	return fmt.Sprintf("Announce(hash=%x height=%v)", m.BlockHash[:4], m.BlockHeight)
}

// messageName is used as a log and metric label.
func messageName(msg Message) string {
	switch msg.(type) {
	case *StatusMessage:
		return "status"
	case *GetBlockHeadersMessage:
		return "getheaders"
	case *BlockHeadersMessage:
		return "headers"
	case *GetProofsMessage:
		return "getproofs"
	case *ProofsMessage:
		return "proofs"
	case *AnnounceMessage:
		return "announce"
	default:
		return "unknown"
	}
}
