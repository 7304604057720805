// Package lifecycle drains the session registry exactly once at process
// teardown so no transport handle leaks.
package lifecycle

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/simctl/internal/registry"
)

// Drainer force-disconnects every remaining session. Drain may be called
// from a defer, a signal handler, or both; only the first call acts.
type Drainer struct {
	once sync.Once
	reg  *registry.Registry
}

func NewDrainer(reg *registry.Registry) *Drainer {
	return &Drainer{reg: reg}
}

func (d *Drainer) Drain() {
	d.once.Do(func() {
		n := d.reg.ActiveCount()
		d.reg.ReleaseAll()
		if n > 0 {
			log.Info().Int("released", n).Msg("lifecycle drained sessions")
		}
	})
}

// OnSignal drains when SIGINT or SIGTERM arrives, then invokes done.
// The returned stop function cancels the watch.
func (d *Drainer) OnSignal(done func()) (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if _, ok := <-ch; !ok {
			return
		}
		d.Drain()
		if done != nil {
			done()
		}
	}()
	return func() {
		signal.Stop(ch)
		close(ch)
	}
}
