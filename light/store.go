package light

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/eth2030/lespeer/les"
)

// ErrNilHeader is returned when storing a header without a number.
var ErrNilHeader = errors.New("light: nil header")

// HeaderStore holds the headers a light client has learned from its peers.
type HeaderStore interface {
	StoreHeader(header *les.BlockHeader) error
	GetHeader(hash common.Hash) *les.BlockHeader
	GetLatest() *les.BlockHeader
	GetByNumber(num uint64) *les.BlockHeader
}

// MemoryHeaderStore is an in-memory HeaderStore that keeps at most limit
// headers, evicting the lowest numbers first.
type MemoryHeaderStore struct {
	mu        sync.RWMutex
	limit     int
	byHash    map[common.Hash]*les.BlockHeader
	byNumber  map[uint64]*les.BlockHeader
	latest    *les.BlockHeader
	latestNum uint64
}

// NewMemoryHeaderStore creates an empty store. A non-positive limit means
// unbounded.
func NewMemoryHeaderStore(limit int) *MemoryHeaderStore {
	return &MemoryHeaderStore{
		limit:    limit,
		byHash:   make(map[common.Hash]*les.BlockHeader),
		byNumber: make(map[uint64]*les.BlockHeader),
	}
}

// StoreHeader stores a header, updating the latest if it is not lower.
func (s *MemoryHeaderStore) StoreHeader(header *les.BlockHeader) error {
	if header == nil || header.Number == nil {
		return ErrNilHeader
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	num := header.NumberU64()
	if prev, ok := s.byNumber[num]; ok && prev.Hash != header.Hash {
		delete(s.byHash, prev.Hash)
	}
	s.byHash[header.Hash] = header
	s.byNumber[num] = header

	if s.latest == nil || num >= s.latestNum {
		s.latest = header
		s.latestNum = num
	}
	s.evictIfNeeded()
	return nil
}

// evictIfNeeded drops the lowest-numbered headers above the limit. The
// latest header is never evicted. Caller must hold s.mu.
func (s *MemoryHeaderStore) evictIfNeeded() {
	for s.limit > 0 && len(s.byNumber) > s.limit {
		var (
			lowest uint64
			found  bool
		)
		for num := range s.byNumber {
			if num != s.latestNum && (!found || num < lowest) {
				lowest, found = num, true
			}
		}
		if !found {
			return
		}
		delete(s.byHash, s.byNumber[lowest].Hash)
		delete(s.byNumber, lowest)
	}
}

// GetHeader retrieves a header by its hash.
func (s *MemoryHeaderStore) GetHeader(hash common.Hash) *les.BlockHeader {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byHash[hash]
}

// GetLatest returns the header with the highest block number.
func (s *MemoryHeaderStore) GetLatest() *les.BlockHeader {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// GetByNumber retrieves a header by block number.
func (s *MemoryHeaderStore) GetByNumber(num uint64) *les.BlockHeader {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byNumber[num]
}

// Count returns the number of stored headers.
func (s *MemoryHeaderStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byHash)
}
