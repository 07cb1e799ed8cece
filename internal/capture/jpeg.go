package capture

import (
	"sync"

	"gocv.io/x/gocv"
)

// JPEGBuffer holds the most recent frame as JPEG for preview streaming, so
// viewers never touch the camera themselves.
type JPEGBuffer struct {
	mu   sync.RWMutex
	data []byte
	seq  uint64
}

// Store encodes frame and replaces the buffered image.
func (b *JPEGBuffer) Store(frame *gocv.Mat) error {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return err
	}
	defer buf.Close()

	data := append([]byte(nil), buf.GetBytes()...)

	b.mu.Lock()
	b.data = data
	b.seq++
	b.mu.Unlock()
	return nil
}

// Latest returns the buffered JPEG and its sequence number. The sequence
// is zero until the first Store. The returned slice must not be modified.
func (b *JPEGBuffer) Latest() ([]byte, uint64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.data, b.seq
}
