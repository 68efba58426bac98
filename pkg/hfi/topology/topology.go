// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package topology provides an hfi.Topology implementation backed by
// /sys/devices/system/cpu, in the same sysfs-scanning idiom the corpus
// this module was built from uses for its own hardware-inventory
// collectors: paths are joined from a configurable host-sys root so the
// package works unmodified inside a container with /sys bind-mounted.
package topology

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Sysfs implements hfi.Topology by reading cpuN/topology/* files under a
// configurable root, defaulting to /sys/devices/system/cpu (overridable
// with the WithHostSysPath option for container portability).
type Sysfs struct {
	cpuRoot           string
	maxPackages       int
	maxDiesPerPackage int
}

// Option configures a Sysfs topology reader.
type Option func(*Sysfs)

// WithHostSysPath overrides the /sys root, e.g. "/host/sys".
func WithHostSysPath(path string) Option {
	return func(s *Sysfs) {
		s.cpuRoot = filepath.Join(path, "devices", "system", "cpu")
	}
}

// New builds a Sysfs topology reader and eagerly discovers the package/die
// bounds by scanning every present CPU once.
func New(opts ...Option) (*Sysfs, error) {
	s := &Sysfs{cpuRoot: "/sys/devices/system/cpu"}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.discoverBounds(); err != nil {
		return nil, fmt.Errorf("hfi/topology: %w", err)
	}
	return s, nil
}

func (s *Sysfs) discoverBounds() error {
	entries, err := os.ReadDir(s.cpuRoot)
	if err != nil {
		return fmt.Errorf("reading %s: %w", s.cpuRoot, err)
	}

	maxPkg, maxDie := 0, 0
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "cpu") {
			continue
		}
		cpu, err := strconv.Atoi(strings.TrimPrefix(name, "cpu"))
		if err != nil {
			continue
		}

		if pkg, err := s.readTopologyInt(cpu, "physical_package_id"); err == nil && pkg+1 > maxPkg {
			maxPkg = pkg + 1
		}
		if die, err := s.readTopologyInt(cpu, "die_id"); err == nil && die+1 > maxDie {
			maxDie = die + 1
		}
	}

	if maxPkg == 0 {
		maxPkg = 1
	}
	if maxDie == 0 {
		maxDie = 1
	}
	s.maxPackages = maxPkg
	s.maxDiesPerPackage = maxDie
	return nil
}

func (s *Sysfs) readTopologyInt(cpu int, file string) (int, error) {
	path := filepath.Join(s.cpuRoot, fmt.Sprintf("cpu%d", cpu), "topology", file)
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// MaxPackages reports the largest physical_package_id+1 observed across
// present CPUs.
func (s *Sysfs) MaxPackages() int { return s.maxPackages }

// MaxDiesPerPackage reports the largest die_id+1 observed across present
// CPUs. Most systems without multi-die packages report die_id 0
// everywhere, so this is 1.
func (s *Sysfs) MaxDiesPerPackage() int { return s.maxDiesPerPackage }

// LogicalDieID computes a flat die index from physical_package_id and
// die_id, matching the layout hfi.Manager uses to size its instance array
// (package-major, die-minor).
func (s *Sysfs) LogicalDieID(cpu int) (int, error) {
	pkg, err := s.readTopologyInt(cpu, "physical_package_id")
	if err != nil {
		return 0, fmt.Errorf("hfi/topology: cpu %d physical_package_id: %w", cpu, err)
	}
	die, err := s.readTopologyInt(cpu, "die_id")
	if err != nil {
		die = 0 // not all kernels expose die_id; single-die packages default to 0
	}
	return pkg*s.maxDiesPerPackage + die, nil
}

// SMTSiblingsIdle reports true when no SMT sibling of cpu (the
// comma-separated entries of topology/thread_siblings_list, excluding cpu
// itself) has an online file reading "1". Any online sibling counts as
// not idle; run-queue and idle-time state are not consulted. Range entries
// such as "0-1" in the siblings list are skipped, and a missing or
// unreadable siblings list yields false.
func (s *Sysfs) SMTSiblingsIdle(cpu int) bool {
	siblings, err := s.threadSiblings(cpu)
	if err != nil {
		return false
	}
	for _, sib := range siblings {
		if sib == cpu {
			continue
		}
		online, err := os.ReadFile(filepath.Join(s.cpuRoot, fmt.Sprintf("cpu%d", sib), "online"))
		if err == nil && strings.TrimSpace(string(online)) == "1" {
			return false
		}
	}
	return true
}

func (s *Sysfs) threadSiblings(cpu int) ([]int, error) {
	path := filepath.Join(s.cpuRoot, fmt.Sprintf("cpu%d", cpu), "topology", "thread_siblings_list")
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []int
	scanner := bufio.NewScanner(f)
	if scanner.Scan() {
		for _, field := range strings.Split(strings.TrimSpace(scanner.Text()), ",") {
			if field == "" {
				continue
			}
			if n, err := strconv.Atoi(field); err == nil {
				out = append(out, n)
			}
		}
	}
	return out, scanner.Err()
}
