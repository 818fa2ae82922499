package les

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
)

// LinkPeer is the transport below the peer. It owns framing, encryption and
// encoding; the peer only hands it semantic messages. Send is
// fire-and-forget.
type LinkPeer interface {
	Connect()
	Disconnect(reason DisconnectReason)
	Send(msg Message)
}

// Listener receives validated protocol events. Exactly one callback fires
// per successful handshake, correlated response or announcement, and none
// on a disconnect path.
type Listener interface {
	DidConnect()
	DidReceiveHeaders(headers []*BlockHeader, requestedHash common.Hash)
	DidReceiveAccountState(state *AccountState, address []byte, header *BlockHeader)
	DidAnnounce(blockHash common.Hash, blockHeight *big.Int)
}

// EventKind tags an Event.
type EventKind uint8

const (
	ConnectEvent EventKind = iota
	HeadersEvent
	AccountStateEvent
	AnnounceEvent
)

// Event is the channel form of a Listener callback. Only the fields of the
// given Kind are set.
type Event struct {
	Kind   EventKind
	PeerID string

	Headers       []*BlockHeader // HeadersEvent
	RequestedHash common.Hash    // HeadersEvent

	AccountState *AccountState // AccountStateEvent
	Address      []byte        // AccountStateEvent
	BlockHeader  *BlockHeader  // AccountStateEvent

	BlockHash   common.Hash // AnnounceEvent
	BlockHeight *big.Int    // AnnounceEvent
}

// FeedListener publishes every callback as an Event on a go-ethereum
// event.Feed, letting an orchestrator consume peer events from a channel.
// Send blocks until every subscriber has taken the event.
type FeedListener struct {
	peerID string
	feed   event.Feed
}

// NewFeedListener creates a listener that stamps events with peerID.
func NewFeedListener(peerID string) *FeedListener {
	return &FeedListener{peerID: peerID}
}

// Subscribe registers ch for future events.
func (l *FeedListener) Subscribe(ch chan<- Event) event.Subscription {
	return l.feed.Subscribe(ch)
}

func (l *FeedListener) DidConnect() {
	l.feed.Send(Event{Kind: ConnectEvent, PeerID: l.peerID})
}

func (l *FeedListener) DidReceiveHeaders(headers []*BlockHeader, requestedHash common.Hash) {
	l.feed.Send(Event{Kind: HeadersEvent, PeerID: l.peerID, Headers: headers, RequestedHash: requestedHash})
}

func (l *FeedListener) DidReceiveAccountState(state *AccountState, address []byte, header *BlockHeader) {
	l.feed.Send(Event{Kind: AccountStateEvent, PeerID: l.peerID, AccountState: state, Address: address, BlockHeader: header})
}

func (l *FeedListener) DidAnnounce(blockHash common.Hash, blockHeight *big.Int) {
	l.feed.Send(Event{Kind: AnnounceEvent, PeerID: l.peerID, BlockHash: blockHash, BlockHeight: blockHeight})
}

var _ Listener = (*FeedListener)(nil)
