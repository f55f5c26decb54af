package pipeline

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// FrameReader yields the most recent frame without blocking. The caller owns
// the returned Mat. *camera.Source and *camera.Still satisfy it.
type FrameReader interface {
	Read() (gocv.Mat, bool)
}

// Consumer receives each reading. The annotated frame is closed once the
// consumer returns, so it must Clone anything it keeps.
type Consumer func(Reading)

// idleDelay paces the loop while the source has no frame at all.
const idleDelay = 5 * time.Millisecond

// Run pulls frames from src and publishes a reading per frame until ctx is
// done. It never waits for a new frame: an unchanged source is simply
// processed again.
func (r *Reader) Run(ctx context.Context, src FrameReader, consume Consumer) error {
	logrus.Info("gauge reader loop started")
	defer logrus.Info("gauge reader loop stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		frame, ok := src.Read()
		if !ok {
			frame.Close()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(idleDelay):
			}
			continue
		}

		reading := r.Process(frame)
		frame.Close()

		if consume != nil {
			consume(reading)
		}
		reading.Close()
	}
}
