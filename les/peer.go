package les

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/eth2030/lespeer/log"
)

// State is the handshake state of a Peer.
type State uint8

const (
	StateNotConnected State = iota
	StateAwaitingStatus
	StateReady
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateNotConnected:
		return "not connected"
	case StateAwaitingStatus:
		return "awaiting status"
	case StateReady:
		return "ready"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Peer is the les state machine for one remote connection. Inbound messages
// arrive through OnMessage, typically on the link's reader goroutine, while
// an orchestrator issues requests from its own goroutines. The link and the
// listener are never called with the peer lock held, so both may call back
// into the peer.
type Peer struct {
	id       string
	config   Config
	link     LinkPeer
	chain    ChainIdentity
	ids      IDSource
	requests RequestTable
	log      *log.Logger

	mu         sync.Mutex
	state      State
	statusSent bool
	remote     *StatusMessage
	listener   Listener
}

// NewPeer creates a peer with DefaultConfig. Nil ids or requests select
// RandomIDSource and a fresh RequestHolder.
func NewPeer(id string, link LinkPeer, chain ChainIdentity, ids IDSource, requests RequestTable) *Peer {
	return NewPeerWithConfig(DefaultConfig(), id, link, chain, ids, requests)
}

// NewPeerWithConfig creates a peer with the given config.
func NewPeerWithConfig(cfg Config, id string, link LinkPeer, chain ChainIdentity, ids IDSource, requests RequestTable) *Peer {
	if ids == nil {
		ids = RandomIDSource{}
	}
	if requests == nil {
		requests = NewRequestHolder()
	}
	return &Peer{
		id:       id,
		config:   cfg.sanitize(),
		link:     link,
		chain:    chain,
		ids:      ids,
		requests: requests,
		log:      log.Default().Module("les").Peer(id),
	}
}

// ID returns the identifier the peer was created with.
func (p *Peer) ID() string { return p.id }

// State returns the current handshake state.
func (p *Peer) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// SetListener installs the event consumer. A nil listener drops events.
func (p *Peer) SetListener(l Listener) {
	p.mu.Lock()
	p.listener = l
	p.mu.Unlock()
}

// RemoteStatus returns the status the remote sent during the handshake, or
// nil before the peer is ready.
func (p *Peer) RemoteStatus() *StatusMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remote
}

// Connect asks the link to establish a session.
func (p *Peer) Connect() {
	p.link.Connect()
}

// Disconnect ends the session with reason. Only the first call reaches the
// link; later calls are no-ops.
func (p *Peer) Disconnect(reason DisconnectReason) {
	p.mu.Lock()
	if p.state == StateDisconnected {
		p.mu.Unlock()
		return
	}
	p.state = StateDisconnected
	p.mu.Unlock()

	if reason == Requested {
		p.log.Info("Disconnecting peer", "reason", reason)
	} else {
		p.log.Warn("Disconnecting peer", "reason", reason)
	}
	markDisconnect(reason)
	p.dropRequests()
	p.link.Disconnect(reason)
}

// OnTransportConnected is called by the link once the session is up. It
// sends the local status exactly once.
func (p *Peer) OnTransportConnected() {
	p.mu.Lock()
	if p.state == StateDisconnected || p.statusSent {
		p.mu.Unlock()
		return
	}
	p.statusSent = true
	if p.state == StateNotConnected {
		p.state = StateAwaitingStatus
	}
	p.mu.Unlock()

	status := p.localStatus()
	p.log.Debug("Sending status", "network", status.NetworkID, "height", status.BestBlockHeight)
	p.link.Send(status)
}

// OnTransportDisconnected is called by the link when the session ended
// underneath the peer. The link is not called back.
func (p *Peer) OnTransportDisconnected() {
	p.mu.Lock()
	if p.state == StateDisconnected {
		p.mu.Unlock()
		return
	}
	p.state = StateDisconnected
	p.mu.Unlock()

	p.log.Debug("Transport disconnected")
	p.dropRequests()
}

// OnMessage dispatches one inbound message. Every protocol violation ends
// in Disconnect with a specific reason; messages arriving after disconnect
// are ignored.
func (p *Peer) OnMessage(msg Message) {
	state := p.State()
	if state == StateDisconnected {
		p.log.Debug("Ignoring message on disconnected peer", "msg", messageName(msg))
		return
	}
	markInbound(msg)
	p.log.Debug("Received message", "msg", messageName(msg), "state", state.String())

	switch m := msg.(type) {
	case *StatusMessage:
		p.handleStatus(m)

	case *AnnounceMessage:
		p.notify(func(l Listener) { l.DidAnnounce(m.BlockHash, m.BlockHeight) })

	case *BlockHeadersMessage:
		if state != StateReady {
			p.Disconnect(UnexpectedMessage)
			return
		}
		p.handleBlockHeaders(m)

	case *ProofsMessage:
		if state != StateReady {
			p.Disconnect(UnexpectedMessage)
			return
		}
		p.handleProofs(m)

	default:
		p.Disconnect(UnexpectedMessage)
	}
}

func (p *Peer) handleStatus(m *StatusMessage) {
	p.mu.Lock()
	switch p.state {
	case StateDisconnected:
		p.mu.Unlock()
		return
	case StateReady:
		p.mu.Unlock()
		p.Disconnect(UnexpectedMessage)
		return
	}
	if err := validateStatus(&p.chain, m); err != nil {
		p.mu.Unlock()
		var reason DisconnectReason
		if !errors.As(err, &reason) {
			reason = UnexpectedMessage
		}
		p.log.Debug("Status rejected", "err", err)
		p.Disconnect(reason)
		return
	}
	p.state = StateReady
	p.remote = m
	listener := p.listener
	p.mu.Unlock()

	handshakeMeter.Mark(1)
	p.log.Info("Peer handshake complete", "height", m.BestBlockHeight, "head", m.BestBlockHash)
	if listener != nil {
		listener.DidConnect()
	}
}

// validateStatus checks a remote status against local chain identity. The
// order of the checks determines the reported reason.
func validateStatus(chain *ChainIdentity, m *StatusMessage) error {
	if m.ProtocolVersion != ProtocolVersion {
		return InvalidProtocolVersion
	}
	if m.NetworkID != chain.NetworkID {
		return WrongNetwork
	}
	if m.GenesisHash != chain.GenesisHash {
		return WrongNetwork
	}
	height := m.BestBlockHeight
	if height == nil {
		height = new(big.Int)
	}
	if height.Cmp(chain.bestHeight()) < 0 {
		return ExpiredBestBlockHeight
	}
	return nil
}

func (p *Peer) handleBlockHeaders(m *BlockHeadersMessage) {
	req, ok := p.requests.RemoveBlockHeaderRequest(m.RequestID)
	if !ok {
		p.log.Debug("Unsolicited headers response", "id", m.RequestID)
		p.Disconnect(UnexpectedMessage)
		return
	}
	p.notify(func(l Listener) { l.DidReceiveHeaders(m.Headers, req.BlockHash) })
}

func (p *Peer) handleProofs(m *ProofsMessage) {
	req, ok := p.requests.RemoveAccountStateRequest(m.RequestID)
	if !ok {
		p.log.Debug("Unsolicited proofs response", "id", m.RequestID)
		p.Disconnect(UnexpectedMessage)
		return
	}
	state, err := req.Evaluate(m)
	if err != nil {
		p.log.Debug("Proof evaluation failed", "id", m.RequestID, "err", err)
		p.Disconnect(InvalidProof)
		return
	}
	p.notify(func(l Listener) { l.DidReceiveAccountState(state, req.Address, req.BlockHeader) })
}

// notify hands an event to the listener. A response that was correlated
// before a concurrent disconnect is still delivered.
func (p *Peer) notify(fn func(Listener)) {
	p.mu.Lock()
	listener := p.listener
	p.mu.Unlock()

	if listener != nil {
		fn(listener)
	}
}

// RequestBlockHeaders asks the remote for headers starting at blockHash.
// The response is delivered later through Listener.DidReceiveHeaders.
func (p *Peer) RequestBlockHeaders(blockHash common.Hash) error {
	if err := p.checkReady(); err != nil {
		return err
	}
	id, err := p.allocate(func(id uint64) error {
		return p.requests.SetBlockHeaderRequest(&BlockHeaderRequest{ID: id, BlockHash: blockHash}, id)
	})
	if err != nil {
		return err
	}
	miscOutHeaderMeter.Mark(1)
	p.link.Send(&GetBlockHeadersMessage{
		RequestID:  id,
		BlockHash:  blockHash,
		MaxHeaders: p.config.MaxHeaders,
	})
	return nil
}

// RequestAccountState asks the remote for a proof of address in the state
// of header. The evaluated result is delivered later through
// Listener.DidReceiveAccountState.
func (p *Peer) RequestAccountState(address []byte, header *BlockHeader) error {
	if header == nil {
		return ErrNilBlockHeader
	}
	if err := p.checkReady(); err != nil {
		return err
	}
	address = common.CopyBytes(address)
	id, err := p.allocate(func(id uint64) error {
		return p.requests.SetAccountStateRequest(NewAccountStateRequest(id, address, header, p.config.Evaluator), id)
	})
	if err != nil {
		return err
	}
	miscOutProofMeter.Mark(1)
	p.link.Send(&GetProofsMessage{
		RequestID:     id,
		ProofRequests: []ProofRequest{{BlockHash: header.Hash, Key: address}},
	})
	return nil
}

func (p *Peer) checkReady() error {
	switch p.State() {
	case StateReady:
		return nil
	case StateDisconnected:
		return ErrPeerDisconnected
	default:
		return ErrPeerNotReady
	}
}

// allocate draws ids until insert accepts one.
func (p *Peer) allocate(insert func(id uint64) error) (uint64, error) {
	for i := 0; i < p.config.MaxIDAttempts; i++ {
		id := p.ids.Next()
		err := insert(id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, ErrDuplicateRequestID) {
			return 0, err
		}
		p.log.Debug("Request id collision", "id", id)
	}
	return 0, ErrRequestIDExhausted
}

func (p *Peer) localStatus() *StatusMessage {
	best := p.chain.BestHeader
	status := &StatusMessage{
		ProtocolVersion: ProtocolVersion,
		NetworkID:       p.chain.NetworkID,
		GenesisHash:     p.chain.GenesisHash,
		BestBlockHeight: new(big.Int).Set(p.chain.bestHeight()),
	}
	if best != nil {
		status.BestBlockHash = best.Hash
		if best.TotalDifficulty != nil {
			status.BestBlockTotalDifficulty = new(big.Int).Set(best.TotalDifficulty)
		}
	}
	if status.BestBlockTotalDifficulty == nil {
		status.BestBlockTotalDifficulty = new(big.Int)
	}
	return status
}

// dropRequests forgets outstanding requests once the session is over.
func (p *Peer) dropRequests() {
	if c, ok := p.requests.(interface{ Clear() }); ok {
		c.Clear()
	}
}
