package syncer

import (
	"context"
	"time"
)

// StepForTest runs one sync step and returns the scheduled delay before the
// next one.
func (s *Service) StepForTest(ctx context.Context) time.Duration {
	return s.step(ctx)
}
