package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vidgrab/vidgrab/internal/util"
)

// UsageError marks argument validation failures so main can map them to a
// distinct exit code.
type UsageError struct {
	msg string
}

func (e *UsageError) Error() string {
	return e.msg
}

func usageErrorf(format string, args ...any) *UsageError {
	return &UsageError{msg: fmt.Sprintf(format, args...)}
}

var rootCmd = &cobra.Command{
	Use:   "vidgrab",
	Short: "Record the display to a video file",
	Long: `vidgrab records the local display, and optionally the microphone, into a
single container file (.mp4, .mkv or .webm). Recording continues until
Ctrl-C is hit or the time limit is reached.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		util.InitLogger(verbose)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().Bool("verbose", false, "Display interesting information on stdout")

	rootCmd.AddCommand(NewRecordCommand())
	rootCmd.AddCommand(NewVersionCommand())
}
