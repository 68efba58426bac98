// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package zblock

import (
	"context"
	"time"

	"github.com/go-logr/logr"
)

// Shrinker periodically calls ShrinkAll on a Pool under memory pressure.
// The original kernel allocator reclaims synchronously from its own
// pressure callback; this package has no equivalent hook into the Go
// runtime's memory pressure signals, so it offers an explicit, intervally
// driven shrinker instead and leaves wiring it to real pressure signals
// (e.g. cgroup memory.pressure) to the caller.
type Shrinker struct {
	pool     *Pool
	interval time.Duration
	logger   logr.Logger
}

// NewShrinker builds a Shrinker for pool that calls ShrinkAll every
// interval, reclaiming every evictable block it finds on each tick.
func NewShrinker(pool *Pool, interval time.Duration, logger logr.Logger) *Shrinker {
	return &Shrinker{pool: pool, interval: interval, logger: logger.WithName("zblock-shrinker")}
}

// Run blocks, ticking every s.interval until ctx is cancelled.
func (s *Shrinker) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := s.pool.ShrinkAll()
			if n > 0 {
				s.logger.V(1).Info("zblock: shrunk pool", "blocksReclaimed", n)
			}
		}
	}
}
