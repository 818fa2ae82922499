package les

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestRequestHolder_SetAndRemove(t *testing.T) {
	h := NewRequestHolder()
	req := &BlockHeaderRequest{ID: 1, BlockHash: common.HexToHash("0x01")}
	if err := h.SetBlockHeaderRequest(req, 1); err != nil {
		t.Fatalf("SetBlockHeaderRequest: %v", err)
	}
	if h.Len() != 1 {
		t.Fatalf("Len = %d, want 1", h.Len())
	}

	got, ok := h.RemoveBlockHeaderRequest(1)
	if !ok || got != req {
		t.Fatalf("RemoveBlockHeaderRequest = (%v, %v), want (%v, true)", got, ok, req)
	}
	if _, ok := h.RemoveBlockHeaderRequest(1); ok {
		t.Fatal("second remove succeeded")
	}
	if h.Len() != 0 {
		t.Fatalf("Len = %d, want 0", h.Len())
	}
}

func TestRequestHolder_DuplicateRejected(t *testing.T) {
	h := NewRequestHolder()
	first := &BlockHeaderRequest{ID: 7, BlockHash: common.HexToHash("0x01")}
	if err := h.SetBlockHeaderRequest(first, 7); err != nil {
		t.Fatalf("SetBlockHeaderRequest: %v", err)
	}
	err := h.SetBlockHeaderRequest(&BlockHeaderRequest{ID: 7}, 7)
	if !errors.Is(err, ErrDuplicateRequestID) {
		t.Fatalf("err = %v, want ErrDuplicateRequestID", err)
	}
	if got, _ := h.RemoveBlockHeaderRequest(7); got != first {
		t.Fatal("duplicate insert overwrote the original request")
	}

	acc := NewAccountStateRequest(7, []byte{1}, &BlockHeader{}, TrieEvaluator{})
	if err := h.SetAccountStateRequest(acc, 7); err != nil {
		t.Fatalf("SetAccountStateRequest: %v", err)
	}
	if err := h.SetAccountStateRequest(acc, 7); !errors.Is(err, ErrDuplicateRequestID) {
		t.Fatalf("err = %v, want ErrDuplicateRequestID", err)
	}
}

func TestRequestHolder_IndependentTables(t *testing.T) {
	h := NewRequestHolder()
	if err := h.SetBlockHeaderRequest(&BlockHeaderRequest{ID: 5}, 5); err != nil {
		t.Fatalf("SetBlockHeaderRequest: %v", err)
	}
	if _, ok := h.RemoveAccountStateRequest(5); ok {
		t.Fatal("account table returned a header request id")
	}
	acc := NewAccountStateRequest(5, []byte{1}, &BlockHeader{}, TrieEvaluator{})
	if err := h.SetAccountStateRequest(acc, 5); err != nil {
		t.Fatalf("same id in the other table rejected: %v", err)
	}
	if h.Len() != 2 {
		t.Fatalf("Len = %d, want 2", h.Len())
	}
	if got, ok := h.RemoveAccountStateRequest(5); !ok || got != acc {
		t.Fatalf("RemoveAccountStateRequest = (%v, %v)", got, ok)
	}
	if _, ok := h.RemoveBlockHeaderRequest(5); !ok {
		t.Fatal("header request lost")
	}
}

func TestRequestHolder_Clear(t *testing.T) {
	h := NewRequestHolder()
	for i := uint64(0); i < 4; i++ {
		h.SetBlockHeaderRequest(&BlockHeaderRequest{ID: i}, i)
	}
	h.Clear()
	if h.Len() != 0 {
		t.Fatalf("Len after Clear = %d, want 0", h.Len())
	}
}

func TestRequestHolder_ConcurrentRemoveAtMostOnce(t *testing.T) {
	for round := 0; round < 50; round++ {
		h := NewRequestHolder()
		h.SetAccountStateRequest(NewAccountStateRequest(1, nil, &BlockHeader{}, TrieEvaluator{}), 1)

		var (
			wg   sync.WaitGroup
			hits atomic.Int32
		)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, ok := h.RemoveAccountStateRequest(1); ok {
					hits.Add(1)
				}
			}()
		}
		wg.Wait()
		if n := hits.Load(); n != 1 {
			t.Fatalf("round %d: %d removals succeeded, want 1", round, n)
		}
	}
}

func TestAccountStateRequest_Evaluate(t *testing.T) {
	want := &AccountState{Nonce: 3}
	header := &BlockHeader{Hash: common.HexToHash("0x10")}
	var gotAddr []byte
	var gotHeader *BlockHeader
	ev := EvaluatorFunc(func(address []byte, h *BlockHeader, msg *ProofsMessage) (*AccountState, error) {
		gotAddr, gotHeader = address, h
		return want, nil
	})
	req := NewAccountStateRequest(1, []byte{0xaa}, header, ev)
	got, err := req.Evaluate(&ProofsMessage{RequestID: 1})
	if err != nil || got != want {
		t.Fatalf("Evaluate = (%v, %v), want (%v, nil)", got, err, want)
	}
	if len(gotAddr) != 1 || gotAddr[0] != 0xaa || gotHeader != header {
		t.Fatal("evaluator did not receive the request's address and header")
	}
}

func TestRandomIDSource(t *testing.T) {
	src := RandomIDSource{}
	seen := make(map[uint64]bool)
	for i := 0; i < 1000; i++ {
		id := src.Next()
		if seen[id] {
			t.Fatalf("repeated id %d after %d draws", id, i)
		}
		seen[id] = true
	}
}
