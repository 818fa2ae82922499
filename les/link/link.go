package link

import (
	"bytes"
	"sync"

	"github.com/ethereum/go-ethereum/metrics"
	"github.com/ethereum/go-ethereum/p2p"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/eth2030/lespeer/les"
	"github.com/eth2030/lespeer/log"
)

var (
	inPacketsMeter  = metrics.NewRegisteredMeter("les/link/in/packets", nil)
	inTrafficMeter  = metrics.NewRegisteredMeter("les/link/in/traffic", nil)
	outPacketsMeter = metrics.NewRegisteredMeter("les/link/out/packets", nil)
	outTrafficMeter = metrics.NewRegisteredMeter("les/link/out/traffic", nil)
	decodeErrMeter  = metrics.NewRegisteredMeter("les/link/in/errors", nil)
	sendErrMeter    = metrics.NewRegisteredMeter("les/link/out/errors", nil)
)

// Handler consumes the events of one devp2p session. *les.Peer satisfies it.
type Handler interface {
	OnTransportConnected()
	OnTransportDisconnected()
	OnMessage(msg les.Message)
	Disconnect(reason les.DisconnectReason)
}

// Link implements les.LinkPeer on top of a devp2p message stream.
type Link struct {
	rw   p2p.MsgReadWriter
	drop func(p2p.DiscReason)
	dial func()
	log  *log.Logger

	sendMu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
	reason    les.DisconnectReason
}

// New wraps rw. drop, if non-nil, tears down the underlying devp2p
// connection; it is (*p2p.Peer).Disconnect in production.
func New(id string, rw p2p.MsgReadWriter, drop func(p2p.DiscReason)) *Link {
	return &Link{
		rw:     rw,
		drop:   drop,
		log:    log.Default().Module("link").Peer(id),
		closed: make(chan struct{}),
	}
}

// SetDialer installs the function Connect runs. Without one Connect does
// nothing, which is the case for sessions created by an inbound or already
// established devp2p connection.
func (l *Link) SetDialer(fn func()) {
	l.dial = fn
}

// Connect implements les.LinkPeer.
func (l *Link) Connect() {
	if l.dial != nil {
		l.dial()
	}
}

// Send implements les.LinkPeer. Write failures are logged and dropped; a
// broken stream surfaces through Run.
func (l *Link) Send(msg les.Message) {
	code, payload, err := Encode(msg)
	if err != nil {
		sendErrMeter.Mark(1)
		l.log.Error("Failed to encode message", "msg", msg, "err", err)
		return
	}
	data, err := rlp.EncodeToBytes(payload)
	if err != nil {
		sendErrMeter.Mark(1)
		l.log.Error("Failed to encode payload", "msg", msg, "err", err)
		return
	}
	l.sendMu.Lock()
	err = l.rw.WriteMsg(p2p.Msg{Code: code, Size: uint32(len(data)), Payload: bytes.NewReader(data)})
	l.sendMu.Unlock()
	if err != nil {
		sendErrMeter.Mark(1)
		l.log.Debug("Failed to send message", "code", code, "err", err)
		return
	}
	outPacketsMeter.Mark(1)
	outTrafficMeter.Mark(int64(len(data)))
}

// Disconnect implements les.LinkPeer. Only the first call has an effect.
func (l *Link) Disconnect(reason les.DisconnectReason) {
	l.closeOnce.Do(func() {
		l.reason = reason
		close(l.closed)
		l.log.Debug("Closing link", "reason", reason.String())
		if l.drop != nil {
			l.drop(DiscReason(reason))
		}
	})
}

// Closed reports whether Disconnect has been called.
func (l *Link) Closed() bool {
	select {
	case <-l.closed:
		return true
	default:
		return false
	}
}

// Run drives h until the stream fails or either side disconnects. After a
// local disconnect the returned error is the les.DisconnectReason. Messages
// that cannot be decoded cost the remote its session.
func (l *Link) Run(h Handler) error {
	h.OnTransportConnected()
	defer h.OnTransportDisconnected()

	for {
		msg, err := l.rw.ReadMsg()
		if err != nil {
			if l.Closed() {
				return l.reason
			}
			return err
		}
		inPacketsMeter.Mark(1)
		inTrafficMeter.Mark(int64(msg.Size))

		decoded, err := Decode(msg)
		msg.Discard()
		if err != nil {
			decodeErrMeter.Mark(1)
			l.log.Debug("Undecodable message", "code", msg.Code, "size", msg.Size, "err", err)
			h.Disconnect(les.UnexpectedMessage)
			return err
		}
		h.OnMessage(decoded)

		if l.Closed() {
			return l.reason
		}
	}
}

// DiscReason maps a les disconnect reason onto the devp2p reason sent to the
// remote.
func DiscReason(reason les.DisconnectReason) p2p.DiscReason {
	switch reason {
	case les.Requested:
		return p2p.DiscRequested
	case les.InvalidProtocolVersion:
		return p2p.DiscIncompatibleVersion
	case les.WrongNetwork, les.ExpiredBestBlockHeight:
		return p2p.DiscUselessPeer
	case les.UnexpectedMessage:
		return p2p.DiscProtocolError
	default:
		return p2p.DiscSubprotocolError
	}
}

var _ les.LinkPeer = (*Link)(nil)
