package light

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/eth2030/lespeer/les"
)

func header(num int64) *les.BlockHeader {
	return &les.BlockHeader{
		Hash:   common.BigToHash(big.NewInt(1000 + num)),
		Number: big.NewInt(num),
	}
}

func TestMemoryHeaderStore_StoreAndGet(t *testing.T) {
	store := NewMemoryHeaderStore(0)

	h := header(100)
	if err := store.StoreHeader(h); err != nil {
		t.Fatalf("StoreHeader: %v", err)
	}
	got := store.GetHeader(h.Hash)
	if got == nil {
		t.Fatal("GetHeader returned nil")
	}
	if got.NumberU64() != 100 {
		t.Errorf("number = %d, want 100", got.NumberU64())
	}
	if store.GetByNumber(100) != h {
		t.Error("GetByNumber(100) did not return the stored header")
	}
	if store.GetByNumber(999) != nil {
		t.Error("expected nil for non-existent block number")
	}
}

func TestMemoryHeaderStore_GetLatest(t *testing.T) {
	store := NewMemoryHeaderStore(0)
	if store.GetLatest() != nil {
		t.Error("expected nil for empty store")
	}

	for _, n := range []int64{10, 20, 5} {
		store.StoreHeader(header(n))
	}
	if got := store.GetLatest().NumberU64(); got != 20 {
		t.Errorf("latest = %d, want 20", got)
	}
	if store.Count() != 3 {
		t.Errorf("count = %d, want 3", store.Count())
	}
}

func TestMemoryHeaderStore_NilHeader(t *testing.T) {
	store := NewMemoryHeaderStore(0)
	if err := store.StoreHeader(nil); err != ErrNilHeader {
		t.Fatalf("err = %v, want ErrNilHeader", err)
	}
	if err := store.StoreHeader(&les.BlockHeader{}); err != ErrNilHeader {
		t.Fatalf("err = %v, want ErrNilHeader", err)
	}
}

func TestMemoryHeaderStore_ReplaceAtHeight(t *testing.T) {
	store := NewMemoryHeaderStore(0)
	old := header(7)
	store.StoreHeader(old)

	fork := &les.BlockHeader{Hash: common.HexToHash("0xf0"), Number: big.NewInt(7)}
	store.StoreHeader(fork)

	if store.GetHeader(old.Hash) != nil {
		t.Error("replaced header still reachable by hash")
	}
	if store.GetByNumber(7) != fork || store.GetLatest() != fork {
		t.Error("fork header not canonical at height 7")
	}
	if store.Count() != 1 {
		t.Errorf("count = %d, want 1", store.Count())
	}
}

func TestMemoryHeaderStore_Eviction(t *testing.T) {
	store := NewMemoryHeaderStore(3)
	for n := int64(1); n <= 5; n++ {
		store.StoreHeader(header(n))
	}
	if store.Count() != 3 {
		t.Fatalf("count = %d, want 3", store.Count())
	}
	for _, n := range []uint64{1, 2} {
		if store.GetByNumber(n) != nil {
			t.Errorf("header %d not evicted", n)
		}
	}
	if store.GetLatest().NumberU64() != 5 {
		t.Errorf("latest = %d, want 5", store.GetLatest().NumberU64())
	}

	// An old header arriving late never pushes out the head.
	store.StoreHeader(header(0))
	if store.GetLatest().NumberU64() != 5 || store.GetByNumber(5) == nil {
		t.Fatal("head evicted")
	}
}
