package link

import (
	"github.com/ethereum/go-ethereum/p2p"

	"github.com/eth2030/lespeer/les"
)

// SessionFunc runs one les session over an established devp2p connection.
// It returns when the session ends.
type SessionFunc func(p *p2p.Peer, l *Link) error

// Protocol returns the devp2p descriptor that advertises les/2 and hands
// every negotiated connection to run.
func Protocol(run SessionFunc) p2p.Protocol {
	return p2p.Protocol{
		Name:    les.ProtocolName,
		Version: les.ProtocolVersion,
		Length:  les.ProtocolLength,
		Run: func(p *p2p.Peer, rw p2p.MsgReadWriter) error {
			return run(p, New(p.ID().TerminalString(), rw, p.Disconnect))
		},
	}
}
