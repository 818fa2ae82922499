package les

import (
	"crypto/rand"
	"encoding/binary"
)

// IDSource produces request identifiers. Values only need to be unique
// among one peer's outstanding requests, but should be hard to guess so a
// remote cannot pre-forge responses.
type IDSource interface {
	Next() uint64
}

// RandomIDSource draws identifiers from crypto/rand.
type RandomIDSource struct{}

// Next returns a fresh random identifier.
func (RandomIDSource) Next() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand.Read never fails on supported platforms.
		panic("les: crypto/rand failure: " + err.Error())
	}
	return binary.BigEndian.Uint64(buf[:])
}
