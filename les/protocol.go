// Package les implements the peer side of the Light Ethereum Subprotocol:
// the status handshake, correlation of asynchronous request/response pairs
// and translation of validated protocol events into Listener callbacks.
//
// The package never touches bytes. It hands semantic Message values to a
// LinkPeer and receives decoded Message values back through Peer.OnMessage.
// Wire encoding for devp2p lives in the les/link subpackage.
package les

// Local capability. Both ends must speak exactly this version.
const (
	ProtocolName    = "les"
	ProtocolVersion = 2

	// ProtocolLength is the number of message codes reserved by les/2.
	ProtocolLength = 22

	// ProtocolMaxMsgSize caps a single inbound message.
	ProtocolMaxMsgSize = 10 * 1024 * 1024
)

// les/2 message codes. Only the subset this engine speaks is listed.
const (
	StatusMsg          = 0x00
	AnnounceMsg        = 0x01
	GetBlockHeadersMsg = 0x02
	BlockHeadersMsg    = 0x03
	GetProofsV2Msg     = 0x0f
	ProofsV2Msg        = 0x10
)

// MaxHeaderFetch is the largest header batch a server will return for a
// single GetBlockHeaders request.
const MaxHeaderFetch = 192
