package pcm

// Source supplies raw 16-bit little-endian PCM on demand. Capture runs on
// the source's own goroutine; Read only drains what is already buffered and
// never blocks, so a slow consumer costs dropped audio, not a stalled
// pipeline.
type Source interface {
	Start() error
	// Read fills buf with buffered PCM and returns the byte count, which
	// may be zero.
	Read(buf []byte) (int, error)
	Stop() error
}
