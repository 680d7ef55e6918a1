package buffer

// Bytes is a ReadBuffer over an in-memory byte slice.
type Bytes struct {
	sliceReader
	data []byte
}

// NewBytes wraps data. The slice must not be modified afterwards.
func NewBytes(data []byte) *Bytes {
	b := &Bytes{data: data}
	b.sliceReader = sliceReader{window: b.window}
	return b
}

func (b *Bytes) window(pos int64, n int) ([]byte, error) {
	if err := checkRange(pos, n, int64(len(b.data))); err != nil {
		return nil, err
	}
	return b.data[pos : pos+int64(n)], nil
}

// Size returns the number of bytes.
func (b *Bytes) Size() int64 {
	return int64(len(b.data))
}

// Close releases the slice.
func (b *Bytes) Close() error {
	b.data = nil
	return nil
}
