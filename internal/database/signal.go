package database

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SetupSignalHandler returns a child of parent that is cancelled on SIGTERM
// or SIGINT. In-flight store I/O observes the cancellation; the returned
// stop function releases the signal registration.
func SetupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	return SetupSignalHandlerWithCallback(parent, nil)
}

// SetupSignalHandlerWithCallback is SetupSignalHandler with a callback run
// before cancellation when a signal arrives.
func SetupSignalHandlerWithCallback(parent context.Context, callback func(os.Signal)) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			if callback != nil {
				callback(sig)
			}
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
