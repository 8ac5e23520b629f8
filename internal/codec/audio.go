package codec

import (
	"fmt"
	"log/slog"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"

	"github.com/vidgrab/vidgrab/internal/media"
)

// AudioConfig describes the AAC encoder setup.
type AudioConfig struct {
	FFmpegPath string

	SampleRate      int
	Channels        int
	BitRate         int
	SamplesPerFrame int
}

// NewAudioEncoder builds an AAC encoder fed with 16-bit little-endian PCM.
// Input buffers hold one capture frame of samples; output units are ADTS
// frames.
func NewAudioEncoder(cfg AudioConfig, logger *slog.Logger) *FFmpegEncoder {
	frameSize := cfg.SamplesPerFrame * cfg.Channels * 2

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", cfg.SampleRate),
		"-ac", fmt.Sprintf("%d", cfg.Channels),
		"-i", "pipe:0",
		"-c:a", "aac",
		"-b:a", fmt.Sprintf("%d", cfg.BitRate),
		"-f", "adts",
		"pipe:1",
	}

	return newFFmpegEncoder("audio", cfg.FFmpegPath, args, &adtsParser{},
		4, frameSize, 8, 8*1024, logger)
}

// adtsSampleRates maps the ADTS sampling_frequency_index to Hz.
var adtsSampleRates = []int{
	96000, 88200, 64000, 48000, 44100, 32000,
	24000, 22050, 16000, 12000, 11025, 8000, 7350,
}

// adtsParser re-frames an ADTS byte stream into single AAC frames, header
// included, and derives the AudioSpecificConfig from the first header.
type adtsParser struct {
	buf         []byte
	formatKnown bool
	format      media.Format
	configBytes []byte
}

func (p *adtsParser) Feed(data []byte) [][]byte {
	p.buf = append(p.buf, data...)

	var units [][]byte
	for {
		// Resync to the 0xFFF syncword; stray bytes are dropped.
		for len(p.buf) >= 2 && !(p.buf[0] == 0xFF && p.buf[1]&0xF0 == 0xF0) {
			p.buf = p.buf[1:]
		}
		if len(p.buf) < 7 {
			return units
		}

		frameLen := int(p.buf[3]&0x03)<<11 | int(p.buf[4])<<3 | int(p.buf[5])>>5
		if frameLen < 7 {
			p.buf = p.buf[1:]
			continue
		}
		if len(p.buf) < frameLen {
			return units
		}

		if !p.formatKnown {
			p.probe(p.buf)
		}
		units = append(units, append([]byte{}, p.buf[:frameLen]...))
		p.buf = p.buf[frameLen:]
	}
}

func (p *adtsParser) Finish() [][]byte {
	// A trailing partial frame is unplayable; drop it.
	p.buf = nil
	return nil
}

func (p *adtsParser) probe(header []byte) {
	profile := int(header[2]>>6) & 0x3 // MPEG-4 audioObjectType - 1
	srIndex := int(header[2]>>2) & 0xF
	channels := int(header[2]&0x1)<<2 | int(header[3])>>6
	if srIndex >= len(adtsSampleRates) || channels == 0 {
		return
	}

	asc := mpeg4audio.AudioSpecificConfig{
		Type:         mpeg4audio.ObjectType(profile + 1),
		SampleRate:   adtsSampleRates[srIndex],
		ChannelCount: channels,
	}
	configBytes, err := asc.Marshal()
	if err != nil {
		return
	}

	p.format = media.Format{
		Mime:        media.MimeAudioAAC,
		SampleRate:  asc.SampleRate,
		Channels:    channels,
		AudioConfig: configBytes,
	}
	p.configBytes = configBytes
	p.formatKnown = true
}

func (p *adtsParser) Format() (media.Format, []byte, bool) {
	if !p.formatKnown {
		return media.Format{}, nil, false
	}
	return p.format, p.configBytes, true
}

// Sync reports true for every unit; each AAC frame decodes on its own.
func (p *adtsParser) Sync([]byte) bool { return true }
