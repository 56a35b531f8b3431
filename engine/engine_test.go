/*
 * engine_test.go, part of ligstab
 *
 *
 * Copyright 2024 Raul Mera  <rmeraa{at}academicos(dot)uta(dot)cl>
 *
 *
 *  This program is free software; you can redistribute it and/or modify
 *  it under the terms of the GNU Lesser General Public License as published by
 *  the Free Software Foundation; either version 3 of the License, or
 *  (at your option) any later version.
 *
 *  This program is distributed in the hope that it will be useful,
 *  but WITHOUT ANY WARRANTY; without even the implied warranty of
 *  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 *  GNU General Public License for more details.
 *
 *  You should have received a copy of the GNU General Public License along
 *  with this program; if not, write to the Free Software Foundation, Inc.,
 *  51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 *
 *
 */

package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v3 "github.com/rmera/gochem/v3"
)

func coords(xyz [][3]float64) *v3.Matrix {
	c := v3.Zeros(len(xyz))
	for i, v := range xyz {
		for j := 0; j < 3; j++ {
			c.Set(i, j, v[j])
		}
	}
	return c
}

//a bent heavy-atom frame (C C O N) followed by two hydrogens
var frame = [][3]float64{
	{0, 0, 0},
	{1.52, 0, 0},
	{2.1, 1.3, 0},
	{-0.6, -1.2, 0.4},
	{-0.5, 0.9, 0.3},
	{1.9, -0.6, 0.8},
}

func TestAlignRigidMotion(t *testing.T) {
	ref := coords(frame)
	moved := make([][3]float64, len(frame))
	for i, v := range frame {
		//90 degrees about z, then a translation
		moved[i] = [3]float64{-v[1] + 3, v[0] - 2, v[2] + 1}
	}
	var g Geometry
	rms, err := g.Align(coords(moved), ref, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0, rms, 1e-6)
	//the inputs are not modified
	assert.Equal(t, 3.0, coords(moved).At(0, 0))
	assert.Equal(t, 0.0, ref.At(0, 0))
}

func TestAlignHeavyAtomsIgnoresHydrogens(t *testing.T) {
	ref := coords(frame)
	other := make([][3]float64, len(frame))
	copy(other, frame)
	other[4] = [3]float64{-1.5, 0.2, -0.9}
	other[5] = [3]float64{1.2, -1.0, -0.7}
	var g Geometry
	heavy := []int{0, 1, 2, 3}
	rms, err := g.Align(coords(other), ref, heavy)
	require.NoError(t, err)
	assert.InDelta(t, 0, rms, 1e-6)

	all, err := g.Align(coords(other), ref, nil)
	require.NoError(t, err)
	assert.Greater(t, all, 0.1)
}

func TestAlignErrors(t *testing.T) {
	var g Geometry
	_, err := g.Align(coords(frame), coords(frame[:3]), nil)
	assert.Error(t, err)
	_, err = g.Align(coords(frame), coords(frame), []int{0, 9})
	assert.Error(t, err)
	_, err = g.Align(coords(frame), coords(frame), []int{})
	assert.Error(t, err)
	rms, err := g.Align(coords(frame), coords(frame[1:]), []int{0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, rms)
}

const xtbOut = `
          | TOTAL ENERGY               -1.234567890123 Eh   |
 ...
          :: total energy              -1.2 Eh    ::
          | TOTAL ENERGY               -2.000000000000 Eh   |
`

func TestParseTotalEnergy(t *testing.T) {
	e, err := ParseTotalEnergy(xtbOut)
	require.NoError(t, err)
	assert.InDelta(t, -2.0*H2Kcal, e, 1e-9, "the last reported energy is used")

	_, err = ParseTotalEnergy("normal termination of xtb\n")
	assert.Error(t, err)
}

func TestSolventFor(t *testing.T) {
	s, err := SolventFor(DefaultDielectric)
	require.NoError(t, err)
	assert.Equal(t, "water", s)
	s, err = SolventFor(1)
	require.NoError(t, err)
	assert.Equal(t, "", s)
	_, err = SolventFor(13.3)
	assert.Error(t, err)
}

func TestMDInput(t *testing.T) {
	in := MDInput(400, 100, 50)
	assert.True(t, strings.HasPrefix(in, "$md\n"))
	assert.Contains(t, in, "temp=400.0")
	assert.Contains(t, in, "time=100.000")
	assert.Contains(t, in, "dump=50.0")
	assert.True(t, strings.HasSuffix(in, "$end\n"))
}

func TestDefaults(t *testing.T) {
	ff := DefaultForceField()
	assert.Equal(t, 80.0, ff.Dielectric)
	assert.Equal(t, 1000, ff.MaxIters)
	p := DefaultEmbedParams()
	assert.Equal(t, 1000, p.NumConfs)
	assert.Equal(t, int64(1), p.RandomSeed)
	assert.Equal(t, 0.1, p.PruneRMS)
	assert.Equal(t, ff.Dielectric, p.Dielectric)
}
