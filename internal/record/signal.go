package record

import (
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// stopFlag is the process-wide stop request, set asynchronously by the
// signal handler and polled cooperatively by the loop.
type stopFlag struct {
	v atomic.Bool
}

func (f *stopFlag) Set()        { f.v.Store(true) }
func (f *stopFlag) IsSet() bool { return f.v.Load() }

// watchSignals flips the flag on the first interrupt and then restores the
// default disposition, so a second interrupt force-kills the process if
// graceful shutdown hangs. The returned function detaches the handler.
func watchSignals(flag *stopFlag, logger *slog.Logger) func() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGHUP)

	go func() {
		sig, ok := <-ch
		if !ok {
			return
		}
		flag.Set()
		signal.Reset(os.Interrupt, syscall.SIGHUP)
		logger.Debug("Stop signal received", "signal", sig.String())
	}()

	return func() {
		signal.Stop(ch)
		close(ch)
	}
}
