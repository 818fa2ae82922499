package les

import (
	"errors"
	"fmt"
)

// DisconnectReason classifies why a peer session was terminated. It is the
// argument of LinkPeer.Disconnect and also satisfies error, so a reason can
// travel up an error return unchanged.
type DisconnectReason uint8

const (
	// Requested is a local, orchestrator-initiated disconnect.
	Requested DisconnectReason = iota
	// InvalidProtocolVersion: the remote status declares a different les version.
	InvalidProtocolVersion
	// WrongNetwork: the remote network id or genesis hash differs from ours.
	WrongNetwork
	// ExpiredBestBlockHeight: the remote head is behind our local head.
	ExpiredBestBlockHeight
	// UnexpectedMessage: a message arrived that has no place in the current
	// state, or a response id has no live pending request.
	UnexpectedMessage
	// InvalidProof: a proofs response failed evaluation.
	InvalidProof
)

func (r DisconnectReason) String() string {
	switch r {
	case Requested:
		return "requested"
	case InvalidProtocolVersion:
		return "invalid protocol version"
	case WrongNetwork:
		return "wrong network"
	case ExpiredBestBlockHeight:
		return "expired best block height"
	case UnexpectedMessage:
		return "unexpected message"
	case InvalidProof:
		return "invalid proof"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(r))
	}
}

// Error implements error.
func (r DisconnectReason) Error() string {
	return "les: disconnect: " + r.String()
}

var (
	ErrPeerNotReady       = errors.New("les: peer handshake not complete")
	ErrPeerDisconnected   = errors.New("les: peer disconnected")
	ErrDuplicateRequestID = errors.New("les: duplicate request id")
	ErrRequestIDExhausted = errors.New("les: could not allocate a free request id")
	ErrNilBlockHeader     = errors.New("les: nil block header")
)
