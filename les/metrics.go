package les

import "github.com/ethereum/go-ethereum/metrics"

var (
	miscInStatusMeter   = metrics.NewRegisteredMeter("les/client/req/in/status", nil)
	miscInHeaderMeter   = metrics.NewRegisteredMeter("les/client/req/in/headers", nil)
	miscInProofMeter    = metrics.NewRegisteredMeter("les/client/req/in/proofs", nil)
	miscInAnnounceMeter = metrics.NewRegisteredMeter("les/client/req/in/announce", nil)
	miscInOtherMeter    = metrics.NewRegisteredMeter("les/client/req/in/other", nil)

	miscOutHeaderMeter = metrics.NewRegisteredMeter("les/client/req/out/headers", nil)
	miscOutProofMeter  = metrics.NewRegisteredMeter("les/client/req/out/proofs", nil)

	handshakeMeter = metrics.NewRegisteredMeter("les/client/handshake", nil)
	pendingGauge   = metrics.NewRegisteredGauge("les/client/pending", nil)

	disconnectMeters = map[DisconnectReason]metrics.Meter{
		Requested:              metrics.NewRegisteredMeter("les/client/disconnect/requested", nil),
		InvalidProtocolVersion: metrics.NewRegisteredMeter("les/client/disconnect/version", nil),
		WrongNetwork:           metrics.NewRegisteredMeter("les/client/disconnect/network", nil),
		ExpiredBestBlockHeight: metrics.NewRegisteredMeter("les/client/disconnect/height", nil),
		UnexpectedMessage:      metrics.NewRegisteredMeter("les/client/disconnect/unexpected", nil),
		InvalidProof:           metrics.NewRegisteredMeter("les/client/disconnect/proof", nil),
	}
)

func markInbound(msg Message) {
	switch msg.(type) {
	case *StatusMessage:
		miscInStatusMeter.Mark(1)
	case *BlockHeadersMessage:
		miscInHeaderMeter.Mark(1)
	case *ProofsMessage:
		miscInProofMeter.Mark(1)
	case *AnnounceMessage:
		miscInAnnounceMeter.Mark(1)
	default:
		miscInOtherMeter.Mark(1)
	}
}

func markDisconnect(reason DisconnectReason) {
	if m, ok := disconnectMeters[reason]; ok {
		m.Mark(1)
	}
}
