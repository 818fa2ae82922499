package les

import (
	"bytes"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// fakeLink records every call made by the peer.
type fakeLink struct {
	mu          sync.Mutex
	connects    int
	disconnects []DisconnectReason
	sent        []Message
}

func (l *fakeLink) Connect() {
	l.mu.Lock()
	l.connects++
	l.mu.Unlock()
}

func (l *fakeLink) Disconnect(reason DisconnectReason) {
	l.mu.Lock()
	l.disconnects = append(l.disconnects, reason)
	l.mu.Unlock()
}

func (l *fakeLink) Send(msg Message) {
	l.mu.Lock()
	l.sent = append(l.sent, msg)
	l.mu.Unlock()
}

func (l *fakeLink) reasons() []DisconnectReason {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]DisconnectReason(nil), l.disconnects...)
}

func (l *fakeLink) lastSent() Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.sent) == 0 {
		return nil
	}
	return l.sent[len(l.sent)-1]
}

// fakeListener records callbacks in order.
type fakeListener struct {
	mu        sync.Mutex
	connects  int
	headers   []headersCall
	accounts  []accountCall
	announces []announceCall
}

type headersCall struct {
	headers []*BlockHeader
	hash    common.Hash
}

type accountCall struct {
	state   *AccountState
	address []byte
	header  *BlockHeader
}

type announceCall struct {
	hash   common.Hash
	height *big.Int
}

func (l *fakeListener) DidConnect() {
	l.mu.Lock()
	l.connects++
	l.mu.Unlock()
}

func (l *fakeListener) DidReceiveHeaders(headers []*BlockHeader, hash common.Hash) {
	l.mu.Lock()
	l.headers = append(l.headers, headersCall{headers, hash})
	l.mu.Unlock()
}

func (l *fakeListener) DidReceiveAccountState(state *AccountState, address []byte, header *BlockHeader) {
	l.mu.Lock()
	l.accounts = append(l.accounts, accountCall{state, address, header})
	l.mu.Unlock()
}

func (l *fakeListener) DidAnnounce(hash common.Hash, height *big.Int) {
	l.mu.Lock()
	l.announces = append(l.announces, announceCall{hash, height})
	l.mu.Unlock()
}

func (l *fakeListener) total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connects + len(l.headers) + len(l.accounts) + len(l.announces)
}

// seqIDs hands out a fixed sequence of ids and repeats the last one.
type seqIDs struct {
	mu  sync.Mutex
	ids []uint64
}

func (s *seqIDs) Next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.ids[0]
	if len(s.ids) > 1 {
		s.ids = s.ids[1:]
	}
	return id
}

// stubEvaluator returns a fixed state and counts calls.
type stubEvaluator struct {
	mu    sync.Mutex
	calls int
	state *AccountState
	err   error
}

func (e *stubEvaluator) Evaluate(address []byte, header *BlockHeader, msg *ProofsMessage) (*AccountState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	return e.state, e.err
}

// Chain identity used throughout: network 1, genesis 32x0x01, height 100.
var (
	testNetworkID  = uint64(1)
	testGenesis    = common.BytesToHash(bytes.Repeat([]byte{1}, 32))
	testBestHash   = common.BytesToHash(bytes.Repeat([]byte{3}, 32))
	testBestTD     = big.NewInt(12345)
	testBestHeight = big.NewInt(100)
)

func testChain() ChainIdentity {
	return ChainIdentity{
		NetworkID:   testNetworkID,
		GenesisHash: testGenesis,
		BestHeader: &BlockHeader{
			Hash:            testBestHash,
			Number:          testBestHeight,
			TotalDifficulty: testBestTD,
		},
	}
}

func validStatus() *StatusMessage {
	return &StatusMessage{
		ProtocolVersion:          ProtocolVersion,
		NetworkID:                testNetworkID,
		GenesisHash:              testGenesis,
		BestBlockTotalDifficulty: big.NewInt(20000),
		BestBlockHash:            common.HexToHash("0xfeed"),
		BestBlockHeight:          big.NewInt(100),
	}
}

type peerFixture struct {
	peer     *Peer
	link     *fakeLink
	listener *fakeListener
	eval     *stubEvaluator
	ids      *seqIDs
}

func newFixture(ids ...uint64) *peerFixture {
	if len(ids) == 0 {
		ids = []uint64{123}
	}
	f := &peerFixture{
		link:     &fakeLink{},
		listener: &fakeListener{},
		eval:     &stubEvaluator{state: &AccountState{Nonce: 7}},
		ids:      &seqIDs{ids: ids},
	}
	cfg := DefaultConfig()
	cfg.Evaluator = f.eval
	f.peer = NewPeerWithConfig(cfg, "test-peer", f.link, testChain(), f.ids, NewRequestHolder())
	f.peer.SetListener(f.listener)
	return f
}

// ready drives the fixture through a successful handshake.
func (f *peerFixture) ready() *peerFixture {
	f.peer.OnTransportConnected()
	f.peer.OnMessage(validStatus())
	return f
}
