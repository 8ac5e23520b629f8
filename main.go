package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/vidgrab/vidgrab/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "vidgrab: %v\n", err)

		var usageErr *cmd.UsageError
		if errors.As(err, &usageErr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
