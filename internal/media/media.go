package media

// MIME types used across the encoder and muxer boundary.
const (
	MimeVideoAVC = "video/avc"
	MimeAudioAAC = "audio/mp4a-latm"
)

// SampleFlags carries the per-buffer flag set of the encoder output protocol.
type SampleFlags uint32

const (
	// FlagSync marks a sample decodable on its own (video keyframe; every
	// AAC frame).
	FlagSync SampleFlags = 1 << iota
	// FlagConfig marks a buffer carrying codec configuration data instead
	// of media. Config buffers are consumed by track registration and must
	// never be written to the container.
	FlagConfig
	// FlagEndOfStream marks the encoder's last buffer.
	FlagEndOfStream
)

// IsSync reports whether the sync flag is set.
func (f SampleFlags) IsSync() bool { return f&FlagSync != 0 }

// IsConfig reports whether the config flag is set.
func (f SampleFlags) IsConfig() bool { return f&FlagConfig != 0 }

// IsEndOfStream reports whether the end-of-stream flag is set.
func (f SampleFlags) IsEndOfStream() bool { return f&FlagEndOfStream != 0 }

// Format describes one compressed stream, as reported by its encoder after
// the format-changed event. It is what the muxer needs to register a track.
type Format struct {
	Mime string

	// Video only.
	Width  int
	Height int
	// SPS and PPS are raw H.264 parameter set NAL payloads, no start codes.
	SPS []byte
	PPS []byte

	// Audio only.
	SampleRate int
	Channels   int
	// AudioConfig is the MPEG-4 AudioSpecificConfig payload.
	AudioConfig []byte
}

// IsVideo reports whether the format describes a video stream.
func (f Format) IsVideo() bool { return f.Mime == MimeVideoAVC }
