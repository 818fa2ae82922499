package main

import (
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/p2p/enode"
	"github.com/ethereum/go-ethereum/params"
	"gopkg.in/yaml.v3"

	"github.com/eth2030/lespeer/les"
)

// Configuration errors.
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrUnknownNetwork     = errors.New("unknown network name")
	ErrInvalidConfig      = errors.New("invalid configuration")
)

// NetworkConfig holds the chain identity of a known network.
type NetworkConfig struct {
	Name      string
	NetworkID uint64
	Genesis   common.Hash
	Bootnodes []string
}

// PredefinedNetworks maps network names to their configurations.
var PredefinedNetworks = map[string]NetworkConfig{
	"mainnet": {
		Name:      "mainnet",
		NetworkID: 1,
		Genesis:   params.MainnetGenesisHash,
		Bootnodes: params.MainnetBootnodes,
	},
	"sepolia": {
		Name:      "sepolia",
		NetworkID: 11155111,
		Genesis:   params.SepoliaGenesisHash,
		Bootnodes: params.SepoliaBootnodes,
	},
	"holesky": {
		Name:      "holesky",
		NetworkID: 17000,
		Genesis:   params.HoleskyGenesisHash,
		Bootnodes: params.HoleskyBootnodes,
	},
}

// HeadConfig seeds the local best block advertised in the status message.
type HeadConfig struct {
	Hash   string `yaml:"hash"`
	Number uint64 `yaml:"number"`
	TD     string `yaml:"td"`
}

// Config is the on-disk and command-line configuration of lespeer.
type Config struct {
	Network     string      `yaml:"network"`
	NetworkID   uint64      `yaml:"networkId"`
	Genesis     string      `yaml:"genesis"`
	Head        *HeadConfig `yaml:"head"`
	ListenAddr  string      `yaml:"listen"`
	MaxPeers    int         `yaml:"maxPeers"`
	Peers       []string    `yaml:"peers"`
	MaxHeaders  uint64      `yaml:"maxHeaders"`
	HeaderLimit int         `yaml:"headerLimit"`
	MetricsAddr string      `yaml:"metrics"`
	Verbosity   int         `yaml:"verbosity"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Network:     "mainnet",
		ListenAddr:  ":30303",
		MaxPeers:    25,
		MaxHeaders:  les.DefaultConfig().MaxHeaders,
		HeaderLimit: 8192,
		Verbosity:   3,
	}
}

// LoadConfig reads a YAML file over the defaults. An empty path yields the
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, ErrConfigFileNotFound
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks the values that cannot be fixed up silently.
func (c *Config) Validate() error {
	if c.MaxPeers <= 0 {
		return fmt.Errorf("%w: maxPeers must be positive", ErrInvalidConfig)
	}
	if c.MaxHeaders == 0 || c.MaxHeaders > les.MaxHeaderFetch {
		return fmt.Errorf("%w: maxHeaders must be in 1..%d", ErrInvalidConfig, les.MaxHeaderFetch)
	}
	if c.Verbosity < 0 || c.Verbosity > 5 {
		return fmt.Errorf("%w: verbosity must be 0-5", ErrInvalidConfig)
	}
	return nil
}

// network resolves the predefined network, if any.
func (c *Config) network() (NetworkConfig, bool) {
	n, ok := PredefinedNetworks[c.Network]
	return n, ok
}

// ChainIdentity builds the local chain facts the peers are checked against.
// Explicit networkId and genesis values override the named network.
func (c *Config) ChainIdentity() (les.ChainIdentity, error) {
	var chain les.ChainIdentity
	if n, ok := c.network(); ok {
		chain.NetworkID = n.NetworkID
		chain.GenesisHash = n.Genesis
	} else if c.Network != "" {
		return chain, fmt.Errorf("%w: %q", ErrUnknownNetwork, c.Network)
	}
	if c.NetworkID != 0 {
		chain.NetworkID = c.NetworkID
	}
	if c.Genesis != "" {
		h, err := parseHash(c.Genesis)
		if err != nil {
			return chain, fmt.Errorf("%w: genesis: %v", ErrInvalidConfig, err)
		}
		chain.GenesisHash = h
	}
	if chain.NetworkID == 0 || chain.GenesisHash == (common.Hash{}) {
		return chain, fmt.Errorf("%w: network id and genesis hash required", ErrInvalidConfig)
	}

	head := &les.BlockHeader{Hash: chain.GenesisHash, Number: new(big.Int), TotalDifficulty: new(big.Int)}
	if c.Head != nil {
		h, err := parseHash(c.Head.Hash)
		if err != nil {
			return chain, fmt.Errorf("%w: head hash: %v", ErrInvalidConfig, err)
		}
		head.Hash = h
		head.Number.SetUint64(c.Head.Number)
		if c.Head.TD != "" {
			if _, ok := head.TotalDifficulty.SetString(c.Head.TD, 0); !ok {
				return chain, fmt.Errorf("%w: head td %q", ErrInvalidConfig, c.Head.TD)
			}
		}
	}
	chain.BestHeader = head
	return chain, nil
}

// StaticNodes parses the configured peers, falling back to the network's
// bootnodes when none are given.
func (c *Config) StaticNodes() ([]*enode.Node, error) {
	urls := c.Peers
	if len(urls) == 0 {
		if n, ok := c.network(); ok {
			urls = n.Bootnodes
		}
	}
	nodes := make([]*enode.Node, 0, len(urls))
	for _, url := range urls {
		node, err := enode.Parse(enode.ValidSchemes, url)
		if err != nil {
			return nil, fmt.Errorf("%w: peer %q: %v", ErrInvalidConfig, url, err)
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func parseHash(s string) (common.Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return common.Hash{}, err
	}
	if len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("want %d bytes, got %d", common.HashLength, len(b))
	}
	return common.BytesToHash(b), nil
}
