package util

import "sync"

// RawBufSize is the chunk size for raw socket reads. It comfortably
// covers a full TLS record (16 KiB payload plus framing overhead).
const RawBufSize = 18 * 1024

// rawBufPool recycles the scratch buffers used by the per-connection
// read cycle, keeping the hot loop allocation-free.
var rawBufPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, RawBufSize)
		return &buf
	},
}

// GetBuf retrieves a raw-read buffer from the pool.  Callers must
// return it with [PutBuf] when finished.
func GetBuf() *[]byte {
	return rawBufPool.Get().(*[]byte)
}

// PutBuf returns a buffer to the pool for reuse.
func PutBuf(buf *[]byte) {
	if buf == nil {
		return
	}
	rawBufPool.Put(buf)
}
