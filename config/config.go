package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// Bit rate and time limit bounds enforced on the command line.
const (
	MinBitRate      = 100_000     // 0.1 Mbps
	MaxBitRate      = 100_000_000 // 100 Mbps
	MaxTimeLimitSec = 180         // 3 minutes
)

// Fallback video size used when the encoder rejects the display's native
// resolution and no explicit size was requested. Defined for landscape;
// swapped for portrait displays.
const (
	FallbackWidth  = 1280
	FallbackHeight = 720
)

// Audio capture parameters.
const (
	AudioSampleRate      = 22050
	AudioSamplesPerFrame = 2048
	AudioChannels        = 1
)

var v *viper.Viper

func init() {
	v = viper.New()

	v.SetDefault("video.bit_rate", 4_000_000)
	v.SetDefault("video.frame_rate", 30)
	v.SetDefault("video.i_frame_interval_sec", 10)
	v.SetDefault("record.time_limit_sec", MaxTimeLimitSec)
	v.SetDefault("audio.bit_rate", 128_000)
	v.SetDefault("audio.device", "default")
	v.SetDefault("ffmpeg.path", "ffmpeg")
	v.SetDefault("notify.command", "")
	v.SetDefault("vidgrab.home", filepath.Join(xdg.Home, ".vidgrab"))

	v.AutomaticEnv()
	v.BindEnv("video.bit_rate", "VIDGRAB_BIT_RATE")
	v.BindEnv("record.time_limit_sec", "VIDGRAB_TIME_LIMIT")
	v.BindEnv("audio.device", "VIDGRAB_AUDIO_DEVICE")
	v.BindEnv("ffmpeg.path", "VIDGRAB_FFMPEG")
	v.BindEnv("notify.command", "VIDGRAB_NOTIFY_COMMAND")
	v.BindEnv("vidgrab.home", "VIDGRAB_HOME")

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	for _, path := range []string{".", "$HOME/.vidgrab", "/etc/vidgrab"} {
		v.AddConfigPath(os.ExpandEnv(path))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Sprintf("Fatal error reading config file: %s", err))
		}
		// Config file not found; use defaults.
	}
}

// DefaultBitRate returns the configured video bit rate in bps.
func DefaultBitRate() int {
	return v.GetInt("video.bit_rate")
}

// FrameRate returns the capture frame rate.
func FrameRate() int {
	return v.GetInt("video.frame_rate")
}

// IFrameIntervalSec returns the keyframe interval in seconds.
func IFrameIntervalSec() int {
	return v.GetInt("video.i_frame_interval_sec")
}

// DefaultTimeLimitSec returns the configured recording time limit.
func DefaultTimeLimitSec() int {
	return v.GetInt("record.time_limit_sec")
}

// AudioBitRate returns the AAC encoder bit rate in bps.
func AudioBitRate() int {
	return v.GetInt("audio.bit_rate")
}

// AudioDevice returns the capture device passed to the audio grabber.
func AudioDevice() string {
	return v.GetString("audio.device")
}

// FFmpegPath returns the ffmpeg binary used for the encoder subprocesses.
func FFmpegPath() string {
	return v.GetString("ffmpeg.path")
}

// NotifyCommand returns the optional command run with the finished file path,
// e.g. a media indexer hook. Empty disables notification.
func NotifyCommand() string {
	return v.GetString("notify.command")
}

// GetVidgrabHome returns the vidgrab home directory.
func GetVidgrabHome() string {
	return v.GetString("vidgrab.home")
}
