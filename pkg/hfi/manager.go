// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package hfi

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
)

// DefaultPageSize is used when ManagerOptions.PageSize is left zero. It
// matches the common x86-64 page size; callers on other platforms should
// set PageSize explicitly.
const DefaultPageSize = 4096

// ManagerOptions configures a Manager. Registers, Topology, and Consumer
// are required; SchedulerBridge may be nil if the caller has no scheduler
// to notify (EnableIPCClasses is then simply never called).
type ManagerOptions struct {
	Logger          logr.Logger
	Registers       Registers
	Topology        Topology
	Consumer        Consumer
	SchedulerBridge SchedulerBridge
	PageSize        int
	// MaxCPUs sizes the per-CPU IPC score table; it should be the number
	// of logical CPUs the process expects to see Online calls for.
	MaxCPUs int
}

// Manager is the top-level handle for HFI: it owns the instance registry,
// per-CPU info table, IPC score table, and update worker, and exposes the
// lifecycle and data-path entry points (Online, Offline, ProcessEvent,
// UpdateIPCC, GetIPCCScore) that an external scheduler or hotplug
// subsystem drives.
type Manager struct {
	logger   logr.Logger
	registers Registers
	topology  Topology
	consumer  Consumer
	scheduler SchedulerBridge
	pageSize  int
	maxCPUs   int

	mu           sync.Mutex // hfi_instance_lock equivalent
	features     Features
	featuresOnce sync.Once
	registry     *instanceRegistry
	cpus         *cpuTable
	scores       *ScoreTable
	worker       *worker

	itdWarnOnce sync.Once

	cancel context.CancelFunc
}

// NewManager validates opts and constructs a Manager. It does not parse
// hardware features or allocate any instance yet — that happens lazily,
// instance-by-instance, the first time a CPU on that die calls Online,
// exactly as the original lifecycle defers allocation to first-online.
func NewManager(opts ManagerOptions) (*Manager, error) {
	if opts.Logger.GetSink() == nil {
		return nil, fmt.Errorf("hfi: logger is required")
	}
	if opts.Registers == nil {
		return nil, fmt.Errorf("hfi: registers collaborator is required")
	}
	if opts.Topology == nil {
		return nil, fmt.Errorf("hfi: topology collaborator is required")
	}
	if opts.Consumer == nil {
		return nil, fmt.Errorf("hfi: consumer collaborator is required")
	}
	if opts.MaxCPUs <= 0 {
		return nil, fmt.Errorf("hfi: MaxCPUs must be positive")
	}

	pageSize := opts.PageSize
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}

	logger := opts.Logger.WithName("hfi")
	size := opts.Topology.MaxPackages() * opts.Topology.MaxDiesPerPackage()

	m := &Manager{
		logger:    logger,
		registers: opts.Registers,
		topology:  opts.Topology,
		consumer:  opts.Consumer,
		scheduler: opts.SchedulerBridge,
		pageSize:  pageSize,
		maxCPUs:   opts.MaxCPUs,
		registry:  newInstanceRegistry(logger, size),
		cpus:      newCPUTable(),
	}
	m.worker = newWorker(m, logger)
	return m, nil
}

// Start runs the update worker until ctx is cancelled. Callers should run
// Start in its own goroutine; Online/Offline/ProcessEvent may all be
// called concurrently with it.
func (m *Manager) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.worker.run(ctx)
}

// Stop shuts the update worker down and waits for it to drain.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	<-m.worker.done
}

// GetIPCCScore returns the published capability score for ipcc on cpu,
// substituting UnclassifiedDefault for UnclassifiedClass.
func (m *Manager) GetIPCCScore(ipcc, cpu int) (int32, error) {
	if m.scores == nil {
		return 0, fmt.Errorf("hfi: %w", ErrUnsupported)
	}
	return m.scores.GetIPCCScore(ipcc, cpu)
}
