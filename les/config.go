package les

// Config tunes a Peer.
type Config struct {
	// MaxHeaders is the batch size put into every GetBlockHeaders request.
	MaxHeaders uint64
	// MaxIDAttempts bounds how often a colliding request id is redrawn.
	MaxIDAttempts int
	// Evaluator checks proofs responses. Defaults to TrieEvaluator.
	Evaluator Evaluator
}

// DefaultConfig returns the settings used by NewPeer.
func DefaultConfig() Config {
	return Config{
		MaxHeaders:    50,
		MaxIDAttempts: 4,
		Evaluator:     TrieEvaluator{},
	}
}

func (c Config) sanitize() Config {
	def := DefaultConfig()
	if c.MaxHeaders == 0 {
		c.MaxHeaders = def.MaxHeaders
	}
	if c.MaxHeaders > MaxHeaderFetch {
		c.MaxHeaders = MaxHeaderFetch
	}
	if c.MaxIDAttempts <= 0 {
		c.MaxIDAttempts = def.MaxIDAttempts
	}
	if c.Evaluator == nil {
		c.Evaluator = def.Evaluator
	}
	return c
}
