package window

import (
	"context"
	"time"

	"desk-overlay/internal/overlay"
)

// PositionReader reports where a window currently sits
type PositionReader interface {
	Position() overlay.Position
}

// PollPosition reads src every interval until ctx is done and calls moved
// whenever the origin differs from the previous reading. The first
// reading only sets the baseline.
func PollPosition(ctx context.Context, interval time.Duration, src PositionReader, moved func(overlay.Position)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := src.Position()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pos := src.Position()
			if pos == last {
				continue
			}
			last = pos
			moved(pos)
		}
	}
}
