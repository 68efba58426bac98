// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package hfi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScoreTable_UnclassifiedAliasesDefault verifies the score for the
// unclassified sentinel class equals the score for the default class.
func TestScoreTable_UnclassifiedAliasesDefault(t *testing.T) {
	st := NewScoreTable(4, 3)
	require.NoError(t, st.Set(2, UnclassifiedDefault-1, 77))

	unclassified, err := st.GetIPCCScore(UnclassifiedClass, 2)
	require.NoError(t, err)
	def, err := st.GetIPCCScore(UnclassifiedDefault, 2)
	require.NoError(t, err)
	assert.Equal(t, def, unclassified)
	assert.EqualValues(t, 77, unclassified)
}

func TestScoreTable_OutOfRange(t *testing.T) {
	st := NewScoreTable(2, 2)
	_, err := st.Get(5, 0)
	assert.ErrorIs(t, err, ErrInvalidCPU)
	_, err = st.Get(0, 5)
	assert.ErrorIs(t, err, ErrInvalidClass)
}

func TestScoreTable_SetGetRoundTrip(t *testing.T) {
	st := NewScoreTable(1, 1)
	require.NoError(t, st.Set(0, 0, 512))
	v, err := st.Get(0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 512, v)
}
