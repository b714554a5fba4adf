package session

import (
	"context"
	"log"
	"time"
)

// LightReader reads the shared visibility signal.
type LightReader interface {
	Read(ctx context.Context) (bool, error)
}

// Poller maintains a best-effort near-real-time view of the light signal
// by periodically re-reading the singleton record. It runs independently
// of the countdown ticker; the session tolerates any interleaving.
type Poller struct {
	reader   LightReader
	interval time.Duration
	publish  func(safe bool)
}

func NewPoller(reader LightReader, interval time.Duration, publish func(bool)) *Poller {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Poller{reader: reader, interval: interval, publish: publish}
}

// Run polls until the context is cancelled, issuing one immediate read so
// the session does not wait a full interval for its first value.
func (p *Poller) Run(ctx context.Context) {
	p.pollOnce(ctx)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

// pollOnce publishes the latest reading. A failed poll publishes nothing,
// so a transient store error keeps the previous value instead of
// flickering the light to unsafe.
func (p *Poller) pollOnce(ctx context.Context) {
	light, err := p.reader.Read(ctx)
	if err != nil {
		log.Printf("light poll failed: %v", err)
		return
	}
	p.publish(light)
}
