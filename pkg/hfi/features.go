// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package hfi

import (
	"fmt"

	"github.com/kernelcap/hfizblock/pkg/errors"
)

// ErrUnsupported is returned when the CPU-identification leaf reports no
// performance capability. HFI is unusable on this machine.
var ErrUnsupported = fmt.Errorf("hfi: %w", errors.ErrUnsupported)

// Features holds the process-wide, write-once-at-init layout derived from
// the CPU-identification leaf. It never changes after ParseFeatures
// succeeds.
type Features struct {
	NrClasses      int
	NrCapabilities int
	TablePages     int
	HdrSize        int
	CPUStride      int
	ClassStride    int
	ThreadDirector bool
}

// ParseFeatures derives Features from a decoded CPU-identification leaf.
// It fails if the performance capability bit is absent — HFI requires at
// least that one capability to be meaningful.
func ParseFeatures(leaf CPUIDLeaf) (Features, error) {
	if !leaf.PerformanceCapability {
		return Features{}, ErrUnsupported
	}

	nrCapabilities := 1 // performance
	if leaf.EnergyEfficiency {
		nrCapabilities++
	}

	nrClasses := 1
	if leaf.ThreadDirector && leaf.NrClasses > 1 {
		nrClasses = leaf.NrClasses
	}

	hdrSize := roundUp8(nrCapabilities * nrClasses)

	return Features{
		NrClasses:      nrClasses,
		NrCapabilities: nrCapabilities,
		TablePages:     leaf.TablePages + 1,
		HdrSize:        hdrSize,
		CPUStride:      hdrSize,
		ClassStride:    nrCapabilities,
		ThreadDirector: leaf.ThreadDirector,
	}, nil
}

func roundUp8(n int) int {
	return (n + 7) &^ 7
}
