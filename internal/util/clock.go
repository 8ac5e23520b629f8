package util

import "time"

var processStart = time.Now()

// NowMicros returns microseconds elapsed on the monotonic clock since
// process start. Presentation timestamps across the pipeline share this
// origin.
func NowMicros() int64 {
	return time.Since(processStart).Microseconds()
}
