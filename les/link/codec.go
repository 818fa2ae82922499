// Package link carries les messages over a devp2p session. It owns the RLP
// wire format of les/2 and adapts a p2p.MsgReadWriter to les.LinkPeer.
package link

import (
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/p2p"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/eth2030/lespeer/crypto"
	"github.com/eth2030/lespeer/les"
)

// Codec errors.
var (
	ErrUnknownCode    = errors.New("link: unknown message code")
	ErrMissingKey     = errors.New("link: status key missing")
	ErrNumberOrigin   = errors.New("link: header request by number not supported")
	ErrMsgTooLarge    = errors.New("link: message too large")
	ErrUnknownMessage = errors.New("link: cannot encode message")
)

// Status keys, in the order they are sent.
const (
	keyProtocolVersion = "protocolVersion"
	keyNetworkID       = "networkId"
	keyHeadTd          = "headTd"
	keyHeadHash        = "headHash"
	keyHeadNum         = "headNum"
	keyGenesisHash     = "genesisHash"
)

// keyValueList is the status payload: an ordered list of named RLP values.
type keyValueList []keyValueEntry

type keyValueEntry struct {
	Key   string
	Value rlp.RawValue
}

func (l keyValueList) add(key string, val interface{}) (keyValueList, error) {
	enc, err := rlp.EncodeToBytes(val)
	if err != nil {
		return l, fmt.Errorf("link: encode %s: %w", key, err)
	}
	return append(l, keyValueEntry{Key: key, Value: enc}), nil
}

type keyValueMap map[string]rlp.RawValue

func (l keyValueList) decode() keyValueMap {
	m := make(keyValueMap, len(l))
	for _, entry := range l {
		m[entry.Key] = entry.Value
	}
	return m
}

func (m keyValueMap) get(key string, val interface{}) error {
	enc, ok := m[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMissingKey, key)
	}
	if err := rlp.DecodeBytes(enc, val); err != nil {
		return fmt.Errorf("link: decode %s: %w", key, err)
	}
	return nil
}

// hashOrNumber is the origin of a header query. Exactly one side is set on
// the wire.
type hashOrNumber struct {
	Hash   common.Hash
	Number uint64
}

func (hn *hashOrNumber) EncodeRLP(w io.Writer) error {
	if hn.Hash == (common.Hash{}) {
		return rlp.Encode(w, hn.Number)
	}
	if hn.Number != 0 {
		return fmt.Errorf("link: both origin hash (%x) and number (%d) set", hn.Hash, hn.Number)
	}
	return rlp.Encode(w, hn.Hash)
}

func (hn *hashOrNumber) DecodeRLP(s *rlp.Stream) error {
	_, size, err := s.Kind()
	switch {
	case err != nil:
		return err
	case size == 32:
		hn.Number = 0
		return s.Decode(&hn.Hash)
	case size <= 8:
		hn.Hash = common.Hash{}
		hn.Number, err = s.Uint64()
		return err
	default:
		return fmt.Errorf("link: invalid origin size %d", size)
	}
}

type getBlockHeadersData struct {
	Origin  hashOrNumber
	Amount  uint64
	Skip    uint64
	Reverse bool
}

type getBlockHeadersPacket struct {
	ReqID uint64
	Query getBlockHeadersData
}

type blockHeadersPacket struct {
	ReqID   uint64
	BV      uint64
	Headers []*types.Header
}

type proofReq struct {
	BHash     common.Hash
	AccKey    []byte
	Key       []byte
	FromLevel uint
}

type getProofsPacket struct {
	ReqID uint64
	Reqs  []proofReq
}

type proofsPacket struct {
	ReqID uint64
	BV    uint64
	Data  [][]byte
}

type announceData struct {
	Hash       common.Hash
	Number     uint64
	Td         *big.Int
	ReorgDepth uint64
	Update     keyValueList
}

// Encode returns the message code and RLP-ready payload for msg.
//
// Account proof keys are hashed with keccak256 on the way out, since servers
// index the state trie by the secure key.
func Encode(msg les.Message) (uint64, interface{}, error) {
	switch m := msg.(type) {
	case *les.StatusMessage:
		list, err := encodeStatus(m)
		return les.StatusMsg, list, err

	case *les.GetBlockHeadersMessage:
		return les.GetBlockHeadersMsg, &getBlockHeadersPacket{
			ReqID: m.RequestID,
			Query: getBlockHeadersData{
				Origin:  hashOrNumber{Hash: m.BlockHash},
				Amount:  m.MaxHeaders,
				Skip:    m.Skip,
				Reverse: m.Reverse,
			},
		}, nil

	case *les.BlockHeadersMessage:
		headers := make([]*types.Header, len(m.Headers))
		for i, h := range m.Headers {
			headers[i] = toEthHeader(h)
		}
		return les.BlockHeadersMsg, &blockHeadersPacket{ReqID: m.RequestID, Headers: headers}, nil

	case *les.GetProofsMessage:
		reqs := make([]proofReq, len(m.ProofRequests))
		for i, r := range m.ProofRequests {
			reqs[i] = proofReq{BHash: r.BlockHash, Key: crypto.SecureKey(r.Key)}
		}
		return les.GetProofsV2Msg, &getProofsPacket{ReqID: m.RequestID, Reqs: reqs}, nil

	case *les.ProofsMessage:
		return les.ProofsV2Msg, &proofsPacket{ReqID: m.RequestID, Data: m.Nodes}, nil

	case *les.AnnounceMessage:
		return les.AnnounceMsg, &announceData{
			Hash:       m.BlockHash,
			Number:     bigUint64(m.BlockHeight),
			Td:         bigOrZero(m.TotalDifficulty),
			ReorgDepth: m.ReorgDepth,
		}, nil
	}
	return 0, nil, fmt.Errorf("%w: %T", ErrUnknownMessage, msg)
}

func encodeStatus(m *les.StatusMessage) (keyValueList, error) {
	var (
		list keyValueList
		err  error
	)
	entries := []struct {
		key string
		val interface{}
	}{
		{keyProtocolVersion, uint64(m.ProtocolVersion)},
		{keyNetworkID, m.NetworkID},
		{keyHeadTd, bigOrZero(m.BestBlockTotalDifficulty)},
		{keyHeadHash, m.BestBlockHash},
		{keyHeadNum, bigUint64(m.BestBlockHeight)},
		{keyGenesisHash, m.GenesisHash},
	}
	for _, e := range entries {
		if list, err = list.add(e.key, e.val); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// Decode parses an inbound devp2p message into a les message. The payload
// is consumed but not discarded; the caller owns msg.
func Decode(msg p2p.Msg) (les.Message, error) {
	if msg.Size > les.ProtocolMaxMsgSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrMsgTooLarge, msg.Size, les.ProtocolMaxMsgSize)
	}
	switch msg.Code {
	case les.StatusMsg:
		var list keyValueList
		if err := msg.Decode(&list); err != nil {
			return nil, fmt.Errorf("link: status: %w", err)
		}
		return decodeStatus(list.decode())

	case les.GetBlockHeadersMsg:
		var req getBlockHeadersPacket
		if err := msg.Decode(&req); err != nil {
			return nil, fmt.Errorf("link: get headers: %w", err)
		}
		if req.Query.Origin.Hash == (common.Hash{}) {
			return nil, ErrNumberOrigin
		}
		return &les.GetBlockHeadersMessage{
			RequestID:  req.ReqID,
			BlockHash:  req.Query.Origin.Hash,
			MaxHeaders: req.Query.Amount,
			Skip:       req.Query.Skip,
			Reverse:    req.Query.Reverse,
		}, nil

	case les.BlockHeadersMsg:
		var resp blockHeadersPacket
		if err := msg.Decode(&resp); err != nil {
			return nil, fmt.Errorf("link: headers: %w", err)
		}
		headers := make([]*les.BlockHeader, len(resp.Headers))
		for i, h := range resp.Headers {
			headers[i] = les.NewBlockHeader(h, nil)
		}
		return &les.BlockHeadersMessage{RequestID: resp.ReqID, Headers: headers}, nil

	case les.GetProofsV2Msg:
		var req getProofsPacket
		if err := msg.Decode(&req); err != nil {
			return nil, fmt.Errorf("link: get proofs: %w", err)
		}
		reqs := make([]les.ProofRequest, len(req.Reqs))
		for i, r := range req.Reqs {
			reqs[i] = les.ProofRequest{BlockHash: r.BHash, Key: r.Key}
		}
		return &les.GetProofsMessage{RequestID: req.ReqID, ProofRequests: reqs}, nil

	case les.ProofsV2Msg:
		var resp proofsPacket
		if err := msg.Decode(&resp); err != nil {
			return nil, fmt.Errorf("link: proofs: %w", err)
		}
		return &les.ProofsMessage{RequestID: resp.ReqID, Nodes: resp.Data}, nil

	case les.AnnounceMsg:
		var ann announceData
		if err := msg.Decode(&ann); err != nil {
			return nil, fmt.Errorf("link: announce: %w", err)
		}
		return &les.AnnounceMessage{
			BlockHash:       ann.Hash,
			BlockHeight:     new(big.Int).SetUint64(ann.Number),
			TotalDifficulty: bigOrZero(ann.Td),
			ReorgDepth:      ann.ReorgDepth,
		}, nil
	}
	return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownCode, msg.Code)
}

func decodeStatus(m keyValueMap) (*les.StatusMessage, error) {
	var (
		version, network, headNum uint64
		td                        = new(big.Int)
		status                    les.StatusMessage
	)
	fields := []struct {
		key string
		val interface{}
	}{
		{keyProtocolVersion, &version},
		{keyNetworkID, &network},
		{keyHeadTd, td},
		{keyHeadHash, &status.BestBlockHash},
		{keyHeadNum, &headNum},
		{keyGenesisHash, &status.GenesisHash},
	}
	for _, f := range fields {
		if err := m.get(f.key, f.val); err != nil {
			return nil, err
		}
	}
	if version > 0xff {
		return nil, fmt.Errorf("link: protocol version %d out of range", version)
	}
	status.ProtocolVersion = uint8(version)
	status.NetworkID = network
	status.BestBlockTotalDifficulty = td
	status.BestBlockHeight = new(big.Int).SetUint64(headNum)
	return &status, nil
}

// toEthHeader returns the full header behind h, or a minimal one carrying
// its chain-linking fields when no source header is known.
func toEthHeader(h *les.BlockHeader) *types.Header {
	if h.Source != nil {
		return h.Source
	}
	return &types.Header{
		ParentHash: h.ParentHash,
		Root:       h.StateRoot,
		Number:     bigOrZero(h.Number),
		Difficulty: new(big.Int),
	}
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func bigUint64(v *big.Int) uint64 {
	if v == nil {
		return 0
	}
	return v.Uint64()
}
