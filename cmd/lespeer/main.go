// Command lespeer runs a light client that speaks les/2 to the peers it is
// given and follows their announced chain head.
//
// Usage:
//
//	lespeer [flags]
//
// Flags:
//
//	--config        YAML configuration file
//	--network       Network to join: mainnet, sepolia, holesky (default: mainnet)
//	--networkid     Override the network id
//	--genesis       Override the genesis hash
//	--listen        P2P listen address (default: :30303)
//	--maxpeers      Max P2P peers (default: 25)
//	--peer          Static les server enode URL, repeatable
//	--maxheaders    Headers per request (default: 50)
//	--metrics.addr  Serve Prometheus metrics on this address
//	--verbosity     Log level 0-5 (default: 3)
//	--version       Print version and exit
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/crypto"
	gethlog "github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/ethereum/go-ethereum/metrics/prometheus"
	"github.com/ethereum/go-ethereum/p2p"

	"github.com/eth2030/lespeer/les"
	"github.com/eth2030/lespeer/les/link"
	"github.com/eth2030/lespeer/light"
	"github.com/eth2030/lespeer/log"
)

var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is the actual entry point, returning an exit code.
func run(args []string) int {
	cfg, exit, code := parseFlags(args)
	if exit {
		return code
	}
	setupLogging(cfg.Verbosity)

	chain, err := cfg.ChainIdentity()
	if err != nil {
		log.Error("Invalid chain configuration", "err", err)
		return 1
	}
	nodes, err := cfg.StaticNodes()
	if err != nil {
		log.Error("Invalid peer list", "err", err)
		return 1
	}
	key, err := crypto.GenerateKey()
	if err != nil {
		log.Error("Failed to generate node key", "err", err)
		return 1
	}

	syncer := light.NewSyncer(light.NewMemoryHeaderStore(cfg.HeaderLimit))
	peerCfg := les.DefaultConfig()
	peerCfg.MaxHeaders = cfg.MaxHeaders

	srv := &p2p.Server{Config: p2p.Config{
		PrivateKey:  key,
		Name:        "lespeer/" + version,
		MaxPeers:    cfg.MaxPeers,
		ListenAddr:  cfg.ListenAddr,
		NoDiscovery: true,
		StaticNodes: nodes,
		Protocols:   []p2p.Protocol{link.Protocol(newSession(peerCfg, chain, syncer))},
	}}
	if err := srv.Start(); err != nil {
		log.Error("Failed to start p2p server", "err", err)
		return 1
	}
	defer srv.Stop()

	log.Info("lespeer started",
		"version", version,
		"commit", commit,
		"network", chain.NetworkID,
		"genesis", chain.GenesisHash,
		"peers", len(nodes),
		"enode", srv.Self().URLv4(),
	)

	if cfg.MetricsAddr != "" {
		startMetrics(cfg.MetricsAddr)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("Received shutdown signal", "signal", sig, "head", syncer.Head().NumberU64())
	return 0
}

// newSession runs one les peer per devp2p connection and keeps the syncer
// informed of it.
func newSession(cfg les.Config, chain les.ChainIdentity, syncer *light.Syncer) link.SessionFunc {
	return func(p *p2p.Peer, l *link.Link) error {
		peer := les.NewPeerWithConfig(cfg, p.ID().TerminalString(), l, chain, nil, nil)
		syncer.Attach(peer)
		defer syncer.Detach(peer)
		return l.Run(peer)
	}
}

func parseFlags(args []string) (Config, bool, int) {
	fs := newFlagSet("lespeer")

	var (
		configPath, network, genesis, listen, metricsAddr string
		networkID, maxHeaders                             uint64
		maxPeers, verbosity                               int
		peers                                             []string
	)
	def := DefaultConfig()
	fs.StringVar(&configPath, "config", "", "YAML configuration file")
	fs.StringVar(&network, "network", def.Network, "Network to join (mainnet, sepolia, holesky)")
	fs.Uint64Var(&networkID, "networkid", 0, "Override the network id")
	fs.StringVar(&genesis, "genesis", "", "Override the genesis hash")
	fs.StringVar(&listen, "listen", def.ListenAddr, "P2P listen address")
	fs.IntVar(&maxPeers, "maxpeers", def.MaxPeers, "Maximum number of P2P peers")
	fs.StringsVar(&peers, "peer", "Static les server enode URL (repeatable)")
	fs.Uint64Var(&maxHeaders, "maxheaders", def.MaxHeaders, "Headers per request")
	fs.StringVar(&metricsAddr, "metrics.addr", "", "Serve Prometheus metrics on this address")
	fs.IntVar(&verbosity, "verbosity", def.Verbosity, "Log level 0-5 (0=silent, 5=debug)")
	showVersion := fs.Bool("version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return Config{}, true, 0
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return Config{}, true, 2
	}
	if *showVersion {
		fmt.Printf("lespeer %s (commit %s)\n", version, commit)
		return Config{}, true, 0
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return Config{}, true, 1
	}
	// Flags given explicitly win over the file.
	if fs.isSet("network") {
		cfg.Network = network
	}
	if fs.isSet("networkid") {
		cfg.NetworkID = networkID
	}
	if fs.isSet("genesis") {
		cfg.Genesis = genesis
	}
	if fs.isSet("listen") {
		cfg.ListenAddr = listen
	}
	if fs.isSet("maxpeers") {
		cfg.MaxPeers = maxPeers
	}
	if len(peers) > 0 {
		cfg.Peers = peers
	}
	if fs.isSet("maxheaders") {
		cfg.MaxHeaders = maxHeaders
	}
	if fs.isSet("metrics.addr") {
		cfg.MetricsAddr = metricsAddr
	}
	if fs.isSet("verbosity") {
		cfg.Verbosity = verbosity
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return Config{}, true, 2
	}
	return cfg, false, 0
}

// setupLogging points both our logger and go-ethereum's at stderr with the
// level derived from verbosity.
func setupLogging(verbosity int) {
	lvl := log.VerbosityToLevel(verbosity)
	gethlog.SetDefault(gethlog.NewLogger(gethlog.NewTerminalHandlerWithLevel(os.Stderr, lvl, true)))
	log.SetDefault(log.NewWithHandler(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func startMetrics(addr string) {
	metrics.Enabled = true
	mux := http.NewServeMux()
	mux.Handle("/debug/metrics/prometheus", prometheus.Handler(metrics.DefaultRegistry))
	go func() {
		log.Info("Serving metrics", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server failed", "err", err)
		}
	}()
}
