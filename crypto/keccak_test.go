package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

const emptyKeccak = "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"

func TestKeccak256EmptyString(t *testing.T) {
	got := hex.EncodeToString(Keccak256([]byte{}))
	if got != emptyKeccak {
		t.Errorf("Keccak256(empty) = %s, want %s", got, emptyKeccak)
	}
}

func TestKeccak256Hello(t *testing.T) {
	got := hex.EncodeToString(Keccak256([]byte("hello")))
	want := "1c8aff950685c2ed4bc3174f3472287b56d9517b9c948127319a09a7a36deac8"
	if got != want {
		t.Errorf("Keccak256(hello) = %s, want %s", got, want)
	}
}

func TestKeccak256MultipleInputs(t *testing.T) {
	combined := Keccak256([]byte("helloworld"))
	separate := Keccak256([]byte("hello"), []byte("world"))
	if !bytes.Equal(combined, separate) {
		t.Errorf("Keccak256 multi-input mismatch: %x != %x", combined, separate)
	}
}

func TestKeccak256Hash(t *testing.T) {
	h := Keccak256Hash([]byte{})
	if want := common.HexToHash(emptyKeccak); h != want {
		t.Errorf("Keccak256Hash(empty) = %s, want %s", h, want)
	}
}

func TestSecureKey(t *testing.T) {
	addr := bytes.Repeat([]byte{0xaa}, 20)
	if got, want := SecureKey(addr), Keccak256(addr); !bytes.Equal(got, want) {
		t.Errorf("SecureKey = %x, want %x", got, want)
	}
}
