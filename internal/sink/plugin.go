package sink

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/drishti/internal/log"
	"github.com/ayusman/drishti/internal/plugin"
)

// Runner executes one plugin request. *plugin.Executor satisfies it.
type Runner interface {
	Execute(ctx context.Context, p *plugin.Plugin, req *plugin.Request) (*plugin.Response, error)
}

// PluginSink forwards confident points to a plugin's move action.
//
// At most one plugin call is in flight. Points arriving while a call runs,
// or sooner than the rate interval after the previous call started, are
// dropped rather than queued.
type PluginSink struct {
	runner        Runner
	plugin        *plugin.Plugin
	minConfidence float64
	interval      time.Duration

	busy atomic.Bool
	mu   sync.Mutex
	last time.Time
	wg   sync.WaitGroup
}

// NewPluginSink creates a PluginSink sending at most rateHz calls per second.
func NewPluginSink(r Runner, p *plugin.Plugin, minConfidence, rateHz float64) *PluginSink {
	var interval time.Duration
	if rateHz > 0 {
		interval = time.Duration(float64(time.Second) / rateHz)
	}
	return &PluginSink{
		runner:        r,
		plugin:        p,
		minConfidence: minConfidence,
		interval:      interval,
	}
}

// Accept implements PointSink.
func (s *PluginSink) Accept(x, y, confidence float64) {
	if confidence < s.minConfidence || s.plugin == nil {
		return
	}

	s.mu.Lock()
	now := time.Now()
	if !s.last.IsZero() && now.Sub(s.last) < s.interval {
		s.mu.Unlock()
		return
	}
	if !s.busy.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return
	}
	s.last = now
	s.mu.Unlock()

	req, err := plugin.NewMoveRequest(x, y, confidence)
	if err != nil {
		s.busy.Store(false)
		log.Warn("failed to build move request", "err", err)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.busy.Store(false)

		resp, err := s.runner.Execute(context.Background(), s.plugin, req)
		switch {
		case err != nil:
			log.Warn("plugin call failed", "plugin", s.plugin.Manifest.Name, "err", err)
		case !resp.Success:
			log.Warn("plugin reported failure", "plugin", s.plugin.Manifest.Name, "error", resp.Error)
		}
	}()
}

// Wait blocks until the in-flight plugin call, if any, has returned.
func (s *PluginSink) Wait() {
	s.wg.Wait()
}
