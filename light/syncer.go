// Package light is a minimal light client built on les peers. The Syncer
// follows the best chain announced by its peers and answers account queries
// against the latest known header.
package light

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/eth2030/lespeer/les"
	"github.com/eth2030/lespeer/log"
)

var (
	ErrNoHeader     = errors.New("light: no header known yet")
	ErrNoReadyPeers = errors.New("light: no ready peers")
)

// Peer is the part of *les.Peer the Syncer drives.
type Peer interface {
	ID() string
	State() les.State
	RemoteStatus() *les.StatusMessage
	SetListener(l les.Listener)
	RequestBlockHeaders(blockHash common.Hash) error
	RequestAccountState(address []byte, header *les.BlockHeader) error
}

type waiterKey struct {
	address string
	header  common.Hash
}

// Syncer listens to a set of les peers, stores the headers they return and
// serves account state lookups. It is safe for concurrent use.
type Syncer struct {
	store HeaderStore
	log   *log.Logger

	mu      sync.Mutex
	peers   map[string]Peer
	order   []string
	next    int
	waiters map[waiterKey][]chan *les.AccountState
}

// NewSyncer creates a Syncer storing headers in store.
func NewSyncer(store HeaderStore) *Syncer {
	return &Syncer{
		store:   store,
		log:     log.Default().Module("light"),
		peers:   make(map[string]Peer),
		waiters: make(map[waiterKey][]chan *les.AccountState),
	}
}

// Attach starts listening to p. It must be called before the peer's
// handshake completes to observe its DidConnect.
func (s *Syncer) Attach(p Peer) {
	s.mu.Lock()
	if _, ok := s.peers[p.ID()]; !ok {
		s.order = append(s.order, p.ID())
	}
	s.peers[p.ID()] = p
	s.mu.Unlock()

	p.SetListener(&peerListener{syncer: s, peer: p})
}

// Detach forgets p. The peer keeps its listener; events still in flight are
// processed.
func (s *Syncer) Detach(p Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.peers, p.ID())
	for i, id := range s.order {
		if id == p.ID() {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Peers returns the number of attached peers.
func (s *Syncer) Peers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// Head returns the latest stored header, or nil.
func (s *Syncer) Head() *les.BlockHeader {
	return s.store.GetLatest()
}

// AccountState fetches the state of address at the latest stored header
// from one of the ready peers. It blocks until the proof arrives or ctx is
// done.
func (s *Syncer) AccountState(ctx context.Context, address []byte) (*les.AccountState, error) {
	head := s.store.GetLatest()
	if head == nil {
		return nil, ErrNoHeader
	}
	p := s.pickReady()
	if p == nil {
		return nil, ErrNoReadyPeers
	}

	key := waiterKey{address: string(address), header: head.Hash}
	ch := make(chan *les.AccountState, 1)
	s.mu.Lock()
	s.waiters[key] = append(s.waiters[key], ch)
	s.mu.Unlock()

	if err := p.RequestAccountState(address, head); err != nil {
		s.dropWaiter(key, ch)
		return nil, err
	}
	select {
	case state := <-ch:
		return state, nil
	case <-ctx.Done():
		s.dropWaiter(key, ch)
		return nil, ctx.Err()
	}
}

// pickReady returns the next ready peer in round-robin order.
func (s *Syncer) pickReady() Peer {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < len(s.order); i++ {
		idx := (s.next + i) % len(s.order)
		p := s.peers[s.order[idx]]
		if p.State() == les.StateReady {
			s.next = idx + 1
			return p
		}
	}
	return nil
}

func (s *Syncer) dropWaiter(key waiterKey, ch chan *les.AccountState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.waiters[key]
	for i, c := range list {
		if c == ch {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(s.waiters, key)
	} else {
		s.waiters[key] = list
	}
}

// deliver hands state to every caller waiting on (address, header).
func (s *Syncer) deliver(state *les.AccountState, address []byte, header *les.BlockHeader) {
	key := waiterKey{address: string(address), header: header.Hash}
	s.mu.Lock()
	list := s.waiters[key]
	delete(s.waiters, key)
	s.mu.Unlock()

	for _, ch := range list {
		ch <- state
	}
}

// follow asks p for the headers at hash unless the block is already known.
func (s *Syncer) follow(p Peer, hash common.Hash, height *big.Int) {
	if s.store.GetHeader(hash) != nil {
		return
	}
	if head := s.store.GetLatest(); head != nil && height != nil && height.Cmp(head.Number) < 0 {
		return
	}
	if err := p.RequestBlockHeaders(hash); err != nil {
		s.log.Debug("Header request failed", "peer", p.ID(), "hash", hash, "err", err)
	}
}

func (s *Syncer) storeHeaders(p Peer, headers []*les.BlockHeader) {
	stored := 0
	for _, h := range headers {
		if err := s.store.StoreHeader(h); err != nil {
			s.log.Debug("Dropping header", "peer", p.ID(), "err", err)
			continue
		}
		stored++
	}
	if head := s.store.GetLatest(); head != nil && stored > 0 {
		s.log.Info("Imported headers", "peer", p.ID(), "count", stored, "head", head.NumberU64(), "hash", head.Hash)
	}
}

// peerListener binds Listener callbacks to the peer they came from.
type peerListener struct {
	syncer *Syncer
	peer   Peer
}

func (l *peerListener) DidConnect() {
	status := l.peer.RemoteStatus()
	if status == nil {
		return
	}
	l.syncer.log.Info("Peer ready", "peer", l.peer.ID(), "head", status.BestBlockHeight)
	l.syncer.follow(l.peer, status.BestBlockHash, status.BestBlockHeight)
}

func (l *peerListener) DidReceiveHeaders(headers []*les.BlockHeader, requestedHash common.Hash) {
	l.syncer.storeHeaders(l.peer, headers)
}

func (l *peerListener) DidReceiveAccountState(state *les.AccountState, address []byte, header *les.BlockHeader) {
	l.syncer.deliver(state, address, header)
}

func (l *peerListener) DidAnnounce(blockHash common.Hash, blockHeight *big.Int) {
	l.syncer.follow(l.peer, blockHash, blockHeight)
}
