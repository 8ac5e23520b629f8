package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vidgrab/vidgrab/config"
	"github.com/vidgrab/vidgrab/internal/record"
)

// NewRecordCommand creates the record command, the main entry point of the
// tool: vidgrab record [options] <filename>
func NewRecordCommand() *cobra.Command {
	var (
		sizeSpec  string
		bitRate   int
		timeLimit int
		rotate    bool
		audio     bool
	)

	cmd := &cobra.Command{
		Use:   "record [flags] <filename>",
		Short: "Record the display to a container file",
		Long: fmt.Sprintf(`Records the display to a .mp4, .mkv or .webm file.

The video size defaults to the display's native resolution; if the encoder
rejects it and no explicit --size was given, recording retries once at
%dx%d. Recording continues until Ctrl-C is hit or the time limit is
reached.`, config.FallbackWidth, config.FallbackHeight),
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usageErrorf("must specify exactly one output file")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := record.Options{
				OutputPath: args[0],
				BitRate:    bitRate,
				TimeLimit:  timeLimit,
				Rotate:     rotate,
				Audio:      audio,
			}
			opts.Verbose, _ = cmd.Flags().GetBool("verbose")

			if sizeSpec != "" {
				w, h, err := parseWidthHeight(sizeSpec)
				if err != nil {
					return usageErrorf("invalid size %q: %v", sizeSpec, err)
				}
				opts.Width = w
				opts.Height = h
				opts.SizeSpecified = true
			}

			if err := opts.Validate(); err != nil {
				return usageErrorf("%v", err)
			}

			sess, err := record.NewSession(opts)
			if err != nil {
				return err
			}
			return sess.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&sizeSpec, "size", "", `Video size as WIDTHxHEIGHT, e.g. "1280x720" (default: display resolution)`)
	cmd.Flags().IntVar(&bitRate, "bit-rate", config.DefaultBitRate(), "Video bit rate in bits per second")
	cmd.Flags().IntVar(&timeLimit, "time-limit", config.DefaultTimeLimitSec(), "Maximum recording time in seconds")
	cmd.Flags().BoolVar(&rotate, "rotate", false, "Rotate the output 90 degrees")
	cmd.Flags().BoolVar(&audio, "audio", false, "Record audio from the microphone")

	return cmd
}

// parseWidthHeight parses a string of the form "1280x720".
func parseWidthHeight(spec string) (int, int, error) {
	parts := strings.SplitN(spec, "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("must be WIDTHxHEIGHT")
	}
	width, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("bad width %q", parts[0])
	}
	height, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("bad height %q", parts[1])
	}
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("width and height may not be zero")
	}
	return width, height, nil
}
