package reflexive

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// handleSignals terminates the owned monitor on SIGINT or SIGTERM and then
// re-delivers the signal with the default disposition, so the application
// exits the way it would have without an instance. The returned func stops
// watching.
func (i *Instance) handleSignals() func() {
	ch := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-ch:
			i.log.Info("Signal received, stopping monitor", "signal", sig.String())
			signal.Stop(ch)
			_ = i.Close()
			reraise(sig)
		case <-done:
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(done)
		})
	}
}

func reraise(sig os.Signal) {
	signal.Reset(sig)
	p, err := os.FindProcess(os.Getpid())
	if err == nil && p.Signal(sig) == nil {
		return
	}
	os.Exit(1)
}
