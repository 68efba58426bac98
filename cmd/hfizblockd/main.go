// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Command hfizblockd wires together the HFI capability-feedback manager
// and a ZBLOCK compressed-page pool against simulated hardware, so both
// subsystems can be exercised and observed end to end without real
// firmware or a kernel build.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"

	"github.com/kernelcap/hfizblock/internal/demohw"
	"github.com/kernelcap/hfizblock/pkg/hfi"
	"github.com/kernelcap/hfizblock/pkg/zblock"
)

var (
	verbose      = flag.Bool("verbose", false, "Enable debug-level logging")
	packages     = flag.Int("packages", 2, "Simulated CPU package count")
	diesPerPkg   = flag.Int("dies-per-package", 1, "Simulated dies per package")
	cpusPerDie   = flag.Int("cpus-per-die", 20, "Simulated logical CPUs per die")
	joltInterval = flag.Duration("jolt-interval", 2*time.Second, "Interval between simulated HFI updates")
	shrinkPeriod = flag.Duration("shrink-interval", 10*time.Second, "Background zblock shrinker interval")
)

func main() {
	flag.Parse()

	var zapLog *zap.Logger
	var err error
	if *verbose {
		zapLog, err = zap.NewDevelopment()
	} else {
		zapLog, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to build logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLog.Sync()
	logger := zapr.NewLogger(zapLog)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mgr, err := startHFI(ctx, logger)
	if err != nil {
		logger.Error(err, "unable to start HFI manager")
		os.Exit(1)
	}

	pool, err := startZBlock(ctx, logger)
	if err != nil {
		logger.Error(err, "unable to start zblock pool")
		os.Exit(1)
	}

	logger.Info("hfizblockd started", "packages", *packages, "diesPerPackage", *diesPerPkg, "cpusPerDie", *cpusPerDie)

	<-ctx.Done()
	logger.Info("shutting down")
	mgr.Stop()
	logger.Info("final pool size", "bytes", pool.TotalSize())
}

func startHFI(ctx context.Context, logger logr.Logger) (*hfi.Manager, error) {
	topo := demohw.Topology{Packages: *packages, DiesPerPkg: *diesPerPkg, CPUsPerDie: *cpusPerDie}
	maxCPUs := *packages * *diesPerPkg * *cpusPerDie

	leaf := hfi.CPUIDLeaf{
		PerformanceCapability: true,
		EnergyEfficiency:      true,
		TablePages:            0,
		ThreadDirector:        true,
		NrClasses:             4,
	}
	regs := demohw.NewRegisters(leaf, 42)

	mgr, err := hfi.NewManager(hfi.ManagerOptions{
		Logger:          logger,
		Registers:       regs,
		Topology:        topo,
		Consumer:        demohw.LoggingConsumer{Logger: logger.WithName("consumer")},
		SchedulerBridge: demohw.SchedulerBridge{Logger: logger.WithName("scheduler")},
		MaxCPUs:         maxCPUs,
	})
	if err != nil {
		return nil, err
	}

	go mgr.Start(ctx)

	for cpu := 0; cpu < maxCPUs; cpu++ {
		mgr.Online(cpu)
	}

	go simulateFirmwareUpdates(ctx, mgr, regs, maxCPUs)
	return mgr, nil
}

// simulateFirmwareUpdates periodically jolts every CPU's pending thermal
// status and feeds the resulting package-status word through ProcessEvent,
// the user-space analogue of the hardware interrupt that would otherwise
// drive this path.
func simulateFirmwareUpdates(ctx context.Context, mgr *hfi.Manager, regs *demohw.Registers, maxCPUs int) {
	ticker := time.NewTicker(*joltInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cpus := make([]int, maxCPUs)
			for i := range cpus {
				cpus[i] = i
			}
			regs.Jolt(cpus)
			for _, cpu := range cpus {
				mgr.ProcessEvent(cpu, regs.PendingStatus(cpu))
			}
		}
	}
}

func startZBlock(ctx context.Context, logger logr.Logger) (*zblock.Pool, error) {
	driver := zblock.NewDriver("zblock", zblock.DefaultSchedule(), zblock.MmapAllocator{})
	zblock.RegisterDriver(driver)

	pool, err := driver.NewPool(zblock.Ops{
		Evict: func(h zblock.Handle) error {
			logger.V(1).Info("zblock: evicting handle under pressure")
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	shrinker := zblock.NewShrinker(pool, *shrinkPeriod, logger)
	go shrinker.Run(ctx)

	go simulateCompressedPageTraffic(ctx, pool, logger)
	return pool, nil
}

// simulateCompressedPageTraffic allocates and frees pages of varying sizes
// at random, exercising Alloc/Map/Unmap/Free the way a swap-compression
// caller would.
func simulateCompressedPageTraffic(ctx context.Context, pool *zblock.Pool, logger logr.Logger) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	rng := rand.New(rand.NewSource(7))
	var live []zblock.Handle

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if len(live) > 0 && rng.Intn(3) == 0 {
				i := rng.Intn(len(live))
				if err := pool.Free(live[i]); err != nil {
					logger.V(1).Info("free failed", "err", err)
				}
				live = append(live[:i], live[i+1:]...)
				continue
			}

			size := 1 + rng.Intn(zblock.PageSize)
			h, err := pool.Alloc(size)
			if err != nil {
				logger.V(1).Info("alloc failed", "size", size, "err", err)
				continue
			}

			if buf, err := pool.Map(h); err == nil {
				for i := range buf[:min(size, len(buf))] {
					buf[i] = byte(rng.Intn(256))
				}
				_ = pool.Unmap(h)
			}
			live = append(live, h)
		}
	}
}
