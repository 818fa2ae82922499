package les

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// BlockHeaderRequest is an outstanding GetBlockHeaders request.
type BlockHeaderRequest struct {
	ID        uint64
	BlockHash common.Hash
}

// Evaluator verifies a proofs response for an account and decodes the
// proven account state.
type Evaluator interface {
	Evaluate(address []byte, header *BlockHeader, msg *ProofsMessage) (*AccountState, error)
}

// EvaluatorFunc adapts an ordinary function to Evaluator.
type EvaluatorFunc func(address []byte, header *BlockHeader, msg *ProofsMessage) (*AccountState, error)

// Evaluate calls f.
func (f EvaluatorFunc) Evaluate(address []byte, header *BlockHeader, msg *ProofsMessage) (*AccountState, error) {
	return f(address, header, msg)
}

// AccountStateRequest is an outstanding GetProofs request for one account.
type AccountStateRequest struct {
	ID          uint64
	Address     []byte
	BlockHeader *BlockHeader

	evaluator Evaluator
}

// NewAccountStateRequest binds an account request to the evaluator that
// will check its response.
func NewAccountStateRequest(id uint64, address []byte, header *BlockHeader, ev Evaluator) *AccountStateRequest {
	return &AccountStateRequest{ID: id, Address: address, BlockHeader: header, evaluator: ev}
}

// Evaluate checks msg against the request's block header and returns the
// proven account state.
func (r *AccountStateRequest) Evaluate(msg *ProofsMessage) (*AccountState, error) {
	return r.evaluator.Evaluate(r.Address, r.BlockHeader, msg)
}

// RequestTable stores outstanding requests by id. Removal is a single
// take-or-none step: of two racing removals for the same id at most one
// observes the request.
type RequestTable interface {
	SetBlockHeaderRequest(req *BlockHeaderRequest, id uint64) error
	SetAccountStateRequest(req *AccountStateRequest, id uint64) error
	RemoveBlockHeaderRequest(id uint64) (*BlockHeaderRequest, bool)
	RemoveAccountStateRequest(id uint64) (*AccountStateRequest, bool)
	Len() int
}

// RequestHolder is the mutex-guarded RequestTable. Header and account
// requests live in independent maps.
type RequestHolder struct {
	mu       sync.Mutex
	headers  map[uint64]*BlockHeaderRequest
	accounts map[uint64]*AccountStateRequest
}

// NewRequestHolder creates an empty holder.
func NewRequestHolder() *RequestHolder {
	return &RequestHolder{
		headers:  make(map[uint64]*BlockHeaderRequest),
		accounts: make(map[uint64]*AccountStateRequest),
	}
}

// SetBlockHeaderRequest stores req under id. An id that is already pending
// is rejected with ErrDuplicateRequestID.
func (h *RequestHolder) SetBlockHeaderRequest(req *BlockHeaderRequest, id uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.headers[id]; ok {
		return ErrDuplicateRequestID
	}
	h.headers[id] = req
	pendingGauge.Inc(1)
	return nil
}

// SetAccountStateRequest stores req under id. An id that is already pending
// is rejected with ErrDuplicateRequestID.
func (h *RequestHolder) SetAccountStateRequest(req *AccountStateRequest, id uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.accounts[id]; ok {
		return ErrDuplicateRequestID
	}
	h.accounts[id] = req
	pendingGauge.Inc(1)
	return nil
}

// RemoveBlockHeaderRequest takes the header request stored under id.
func (h *RequestHolder) RemoveBlockHeaderRequest(id uint64) (*BlockHeaderRequest, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	req, ok := h.headers[id]
	if ok {
		delete(h.headers, id)
		pendingGauge.Dec(1)
	}
	return req, ok
}

// RemoveAccountStateRequest takes the account request stored under id.
func (h *RequestHolder) RemoveAccountStateRequest(id uint64) (*AccountStateRequest, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	req, ok := h.accounts[id]
	if ok {
		delete(h.accounts, id)
		pendingGauge.Dec(1)
	}
	return req, ok
}

// Len returns the number of outstanding requests across both tables.
func (h *RequestHolder) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.headers) + len(h.accounts)
}

// Clear drops every outstanding request. Used when a session ends.
func (h *RequestHolder) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	pendingGauge.Dec(int64(len(h.headers) + len(h.accounts)))
	h.headers = make(map[uint64]*BlockHeaderRequest)
	h.accounts = make(map[uint64]*AccountStateRequest)
}
