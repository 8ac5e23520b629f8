package codec

import (
	"fmt"
	"log/slog"

	"github.com/vidgrab/vidgrab/internal/h264"
	"github.com/vidgrab/vidgrab/internal/media"
)

// VideoConfig describes the H.264 encoder setup.
type VideoConfig struct {
	FFmpegPath string

	// Raw frame geometry pushed into the input buffers (RGBA).
	CaptureWidth  int
	CaptureHeight int

	// Output video geometry. The capture image is aspect-fit letterboxed
	// into it by the encoder's scaler.
	Width  int
	Height int

	FrameRate         int
	BitRate           int
	IFrameIntervalSec int
}

const videoOutputSlots = 8

// NewVideoEncoder builds an H.264 encoder fed with raw RGBA frames. Input
// buffers are sized for exactly one frame.
func NewVideoEncoder(cfg VideoConfig, logger *slog.Logger) *FFmpegEncoder {
	frameSize := cfg.CaptureWidth * cfg.CaptureHeight * 4
	scale := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,format=yuv420p",
		cfg.Width, cfg.Height, cfg.Width, cfg.Height)

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", cfg.CaptureWidth, cfg.CaptureHeight),
		"-framerate", fmt.Sprintf("%d", cfg.FrameRate),
		"-i", "pipe:0",
		"-an",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-tune", "zerolatency",
		"-b:v", fmt.Sprintf("%d", cfg.BitRate),
		"-g", fmt.Sprintf("%d", cfg.FrameRate*cfg.IFrameIntervalSec),
		"-vf", scale,
		// Access-unit delimiters let the output stream be re-framed
		// without parsing slice headers.
		"-bsf:v", "h264_metadata=aud=insert",
		"-f", "h264",
		"pipe:1",
	}

	parser := &videoParser{width: cfg.Width, height: cfg.Height}
	return newFFmpegEncoder("video", cfg.FFmpegPath, args, parser,
		4, frameSize, videoOutputSlots, 256*1024, logger)
}

// videoParser re-frames an Annex-B H.264 byte stream into access units,
// splitting at the access-unit delimiters the encoder inserts.
type videoParser struct {
	buf    []byte
	width  int
	height int

	sps []byte
	pps []byte
}

func (p *videoParser) Feed(data []byte) [][]byte {
	p.buf = append(p.buf, data...)

	var units [][]byte
	for {
		first := indexAUD(p.buf, 0)
		if first == -1 {
			return units
		}
		second := indexAUD(p.buf, first+4)
		if second == -1 {
			if first > 0 {
				p.buf = p.buf[first:]
			}
			return units
		}
		unit := append([]byte{}, p.buf[first:second]...)
		p.buf = p.buf[second:]
		units = append(units, p.probe(unit))
	}
}

func (p *videoParser) Finish() [][]byte {
	if indexAUD(p.buf, 0) == -1 {
		return nil
	}
	unit := append([]byte{}, p.buf...)
	p.buf = nil
	return [][]byte{p.probe(unit)}
}

func (p *videoParser) probe(unit []byte) []byte {
	if p.sps == nil || p.pps == nil {
		sps, pps := h264.ExtractParameterSets(unit)
		if p.sps == nil {
			p.sps = sps
		}
		if p.pps == nil {
			p.pps = pps
		}
	}
	return unit
}

func (p *videoParser) Format() (media.Format, []byte, bool) {
	if p.sps == nil || p.pps == nil {
		return media.Format{}, nil, false
	}
	format := media.Format{
		Mime:   media.MimeVideoAVC,
		Width:  p.width,
		Height: p.height,
		SPS:    p.sps,
		PPS:    p.pps,
	}
	// The config payload is the Annex-B parameter sets, as a hardware
	// codec would hand them out in its codec-config buffer.
	payload := make([]byte, 0, 8+len(p.sps)+len(p.pps))
	for _, ps := range [][]byte{p.sps, p.pps} {
		payload = append(payload, 0x00, 0x00, 0x00, 0x01)
		payload = append(payload, ps...)
	}
	return format, payload, true
}

func (p *videoParser) Sync(unit []byte) bool {
	return h264.ContainsIDR(unit)
}

// indexAUD returns the byte offset of the next access-unit delimiter start
// code at or after from, or -1.
func indexAUD(b []byte, from int) int {
	for i := from; i+4 <= len(b); i++ {
		if b[i] == 0x00 && b[i+1] == 0x00 && b[i+2] == 0x01 && b[i+3]&0x1F == 0x09 {
			if i > from && b[i-1] == 0x00 {
				return i - 1
			}
			return i
		}
	}
	return -1
}
