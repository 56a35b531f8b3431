/*
 * stability_test.go, part of ligstab
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

package stability

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	v3 "github.com/rmera/gochem/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmera/ligstab/engine"
	"github.com/rmera/ligstab/engine/enginetest"
	"github.com/rmera/ligstab/ensemble"
	"github.com/rmera/ligstab/mol"
	"github.com/rmera/ligstab/molio"
)

//C C O, then three hydrogens
var base = [][3]float64{
	{0, 0, 0},
	{1.52, 0, 0},
	{2.1, 1.3, 0},
	{-0.5, 0.9, 0.1},
	{-0.5, -0.5, 0.8},
	{2.9, 1.5, 0.3},
}

var bent = [][3]float64{
	{0, 0, 0},
	{1.52, 0, 0},
	{2.9, 0.5, 0},
	{-0.5, 0.9, 0.1},
	{-0.5, -0.5, 0.8},
	{3.4, 0.9, 0.3},
}

func newMol(xyz [][3]float64) *mol.Molecule {
	atoms := []*mol.Atom{{Symbol: "C"}, {Symbol: "C"}, {Symbol: "O"}, {Symbol: "H"}, {Symbol: "H"}, {Symbol: "H"}}
	bonds := []mol.Bond{{A: 0, B: 1, Order: 1}, {A: 1, B: 2, Order: 1}, {A: 0, B: 3, Order: 1}, {A: 0, B: 4, Order: 1}, {A: 2, B: 5, Order: 1}}
	m := mol.New("lig", atoms, bonds)
	if xyz != nil {
		m.AddConformer(enginetest.Coords(xyz))
	}
	return m
}

//writeSD writes one structure per geometry, each with the record for the given energy.
func writeSD(t *testing.T, name string, energies []float64, xyz ...[][3]float64) string {
	t.Helper()
	w, err := molio.NewSDWriter(name)
	require.NoError(t, err)
	for i, g := range xyz {
		m := newMol(g)
		var props []molio.Prop
		if energies != nil {
			props = ensemble.Record{Energy: energies[i], SMILES: "CCO", ClusterNo: i + 1, SourceID: "lig"}.Props()
		}
		require.NoError(t, w.Write(m, 0, props))
	}
	require.NoError(t, w.Close())
	return name
}

func coDistance(c *v3.Matrix) float64 {
	var d float64
	for j := 0; j < 3; j++ {
		d += math.Pow(c.At(2, j)-c.At(0, j), 2)
	}
	return -math.Sqrt(d)
}

func newEngine() *enginetest.Engine {
	b := enginetest.Coords(base)
	k := enginetest.Coords(bent)
	return &enginetest.Engine{
		Geometries: []*v3.Matrix{
			b,
			enginetest.Translate(b, [3]float64{5, 0, 0}),
			k,
			enginetest.Translate(k, [3]float64{0, 3, 0}),
		},
		EnergyFunc: coDistance,
		SMILES:     "CCO",
	}
}

func constant(e float64) func(*v3.Matrix) float64 {
	return func(*v3.Matrix) float64 { return e }
}

func TestFeatureRecordString(t *testing.T) {
	f := FeatureRecord{ID: "1abc", EnergyGap: 5, RMSD: 0.25, HasRMSD: true}
	assert.Equal(t, "1abc,5.0,0.25", f.String())
	f.HasRMSD = false
	assert.Equal(t, "1abc,5.0,None", f.String())
	f.EnergyGap = -1.5
	assert.Equal(t, "1abc,-1.5,None", f.String())
}

func TestNativeType(t *testing.T) {
	for _, name := range []string{"a.mol2", "dir/a.sdf", "a.b.pdb"} {
		_, err := NativeType(name)
		assert.NoError(t, err, name)
	}
	for _, name := range []string{"ligand.xyz", "a.smi", "a.SDF", "mol2.txt"} {
		_, err := NativeType(name)
		assert.True(t, errors.Is(err, ErrUnsupportedType), name)
	}
}

func TestEvaluateNative(t *testing.T) {
	dir := t.TempDir()
	native := writeSD(t, filepath.Join(dir, "pose.sdf"), nil, base)
	eng := newEngine()
	eng.MinimizeFunc = func(c *v3.Matrix) { c.Set(2, 0, 2.0) }
	eng.EnergyFunc = constant(-45)
	n, err := EvaluateNative(context.Background(), eng, &molio.Reader{}, native, engine.DefaultForceField(), nil)
	require.NoError(t, err)
	assert.Equal(t, -45.0, n.Energy)
	c, err := n.Mol.Conformer(n.ConfID)
	require.NoError(t, err)
	assert.Equal(t, 2.0, c.Coords.At(2, 0), "the pose is minimized in place")
	assert.True(t, c.HasEnergy)
	assert.Equal(t, []engine.ForceField{{Dielectric: 80, MaxIters: 1000}}, eng.Minimized)

	eng.MinimizeErr = errors.Mark(errors.New("cycles"), engine.ErrNotConverged)
	n, err = EvaluateNative(context.Background(), eng, &molio.Reader{}, native, engine.DefaultForceField(), nil)
	require.NoError(t, err)
	assert.Equal(t, -45.0, n.Energy)

	_, err = EvaluateNative(context.Background(), eng, &molio.Reader{}, filepath.Join(dir, "pose.xyz"), engine.DefaultForceField(), nil)
	assert.True(t, errors.Is(err, ErrUnsupportedType))
}

func TestWriteLocalMin(t *testing.T) {
	dir := t.TempDir()
	native := writeSD(t, filepath.Join(dir, "pose.sdf"), nil, base)
	eng := newEngine()
	eng.EnergyFunc = constant(-12.5)
	n, err := EvaluateNative(context.Background(), eng, &molio.Reader{}, native, engine.DefaultForceField(), nil)
	require.NoError(t, err)
	require.NoError(t, WriteLocalMin(context.Background(), eng, n))
	assert.Equal(t, filepath.Join(dir, "pose_local_min.sdf"), LocalMinPath(native))
	ms, err := molio.ReadSDF(LocalMinPath(native))
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, "-12.5", ms[0].Props["energy_abs"])
	assert.Equal(t, "CCO", ms[0].Props["SMILE"])
}

func nativeWithEnergy(t *testing.T, xyz [][3]float64, e float64) *Native {
	m := newMol(xyz)
	m.Conformers()[0].SetEnergy(e)
	return &Native{Mol: m, ConfID: 0, Energy: e}
}

func TestComputeFeaturesGap(t *testing.T) {
	gm := writeSD(t, filepath.Join(t.TempDir(), "lig_ligand_global_min.sdf"), []float64{-50}, base)
	f, err := ComputeFeatures(context.Background(), newEngine(), "lig", nativeWithEnergy(t, base, -45), gm, nil)
	require.NoError(t, err)
	assert.Equal(t, "lig", f.ID)
	assert.InDelta(t, 5.0, f.EnergyGap, 1e-12)
	assert.True(t, f.HasRMSD)
	assert.InDelta(t, 0, f.RMSD, 1e-6)
}

func TestComputeFeaturesIgnoresHydrogens(t *testing.T) {
	moved := make([][3]float64, len(base))
	copy(moved, base)
	moved[3] = [3]float64{-0.9, -0.2, -0.6}
	moved[5] = [3]float64{1.8, 2.0, -0.7}
	gm := writeSD(t, filepath.Join(t.TempDir(), "gm.sdf"), []float64{-3}, base)
	eng := newEngine()
	f, err := ComputeFeatures(context.Background(), eng, "lig", nativeWithEnergy(t, moved, -3), gm, nil)
	require.NoError(t, err)
	assert.True(t, f.HasRMSD)
	assert.InDelta(t, 0, f.RMSD, 1e-6)

	eng.BestRMSErr = errors.New("did not converge")
	f, err = ComputeFeatures(context.Background(), eng, "lig", nativeWithEnergy(t, moved, -3), gm, nil)
	require.NoError(t, err)
	assert.True(t, f.HasRMSD, "the index-matched alignment is used instead")
	assert.InDelta(t, 0, f.RMSD, 1e-6)
}

func TestComputeFeaturesNoRMSD(t *testing.T) {
	gm := writeSD(t, filepath.Join(t.TempDir(), "gm.sdf"), []float64{-50}, bent)
	eng := newEngine()
	eng.BestRMSErr = errors.New("did not converge")
	eng.AlignErr = errors.New("failed too")
	f, err := ComputeFeatures(context.Background(), eng, "lig", nativeWithEnergy(t, base, -45), gm, nil)
	require.NoError(t, err)
	assert.False(t, f.HasRMSD)
	assert.True(t, strings.HasSuffix(f.String(), ",None"))
	assert.InDelta(t, 5.0, f.EnergyGap, 1e-12)
}

func TestComputeFeaturesBadFile(t *testing.T) {
	gm := writeSD(t, filepath.Join(t.TempDir(), "gm.sdf"), nil, base)
	_, err := ComputeFeatures(context.Background(), newEngine(), "lig", nativeWithEnergy(t, base, -45), gm, nil)
	assert.True(t, errors.Is(err, molio.ErrParse))
}

func TestCountStates(t *testing.T) {
	ens := writeSD(t, filepath.Join(t.TempDir(), "ens.sdf"), []float64{-48, -50, -49.5, -45}, base, base, base, base)
	s, err := CountStates(ens, -48.5, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, -50.0, s.Lowest)
	assert.Equal(t, 2, s.NearMinimum)
	assert.Equal(t, 2, s.BelowNative)

	s, err = CountStates(ens, -60, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, s.NearMinimum)
	assert.Equal(t, 0, s.BelowNative)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("compute")
	require.NoError(t, err)
	assert.Equal(t, ModeCompute, m)
	_, err = ParseMode("GenConfs")
	assert.Error(t, err)
}

//setup returns a data directory with the native pose native.sdf, and a pipeline on it.
func setup(t *testing.T) (string, *enginetest.Engine, *Pipeline) {
	dir := t.TempDir()
	writeSD(t, filepath.Join(dir, "native.sdf"), nil, base)
	eng := newEngine()
	opts := DefaultOptions()
	opts.DataDir = dir
	//base and bent are 0.32 A apart (heavy atoms), so they must not share a cluster
	opts.Threshold = 0.1
	return dir, eng, New(eng, nil, opts, nil)
}

func TestRun(t *testing.T) {
	dir, eng, p := setup(t)
	var out bytes.Buffer
	rec, err := p.Run(context.Background(), Request{ID: "lig", Native: "native.sdf"}, &out)
	require.NoError(t, err)
	assert.Equal(t, 1, eng.EmbedCalls)
	assert.Equal(t, rec.String()+"\n", out.String())
	lowest := coDistance(enginetest.Coords(bent))
	native := coDistance(enginetest.Coords(base))
	assert.InDelta(t, native-lowest, rec.EnergyGap, 1e-9)
	assert.Greater(t, rec.EnergyGap, 0.0)
	assert.True(t, rec.HasRMSD)
	assert.Greater(t, rec.RMSD, 0.1)

	ens, err := os.ReadFile(EnsemblePath(dir, "lig"))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(ens), "$$$$"), "one representative per cluster")
	gm, err := os.ReadFile(GlobalMinPath(dir, "lig"))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(gm), "$$$$"))
	assert.FileExists(t, filepath.Join(dir, "native_local_min.sdf"))

	//the ensemble is reused as it is
	out.Reset()
	again, err := p.Run(context.Background(), Request{ID: "lig", Native: filepath.Join(dir, "native.sdf")}, &out)
	require.NoError(t, err)
	assert.Equal(t, 1, eng.EmbedCalls)
	assert.Equal(t, rec, again)
	ens2, err := os.ReadFile(EnsemblePath(dir, "lig"))
	require.NoError(t, err)
	gm2, err := os.ReadFile(GlobalMinPath(dir, "lig"))
	require.NoError(t, err)
	assert.Equal(t, ens, ens2)
	assert.Equal(t, gm, gm2)

	p.Options.Force = true
	_, err = p.Run(context.Background(), Request{ID: "lig", Native: "native.sdf"}, &out)
	require.NoError(t, err)
	assert.Equal(t, 2, eng.EmbedCalls)
}

func TestRunUnsupportedNative(t *testing.T) {
	dir := t.TempDir()
	eng := newEngine()
	opts := DefaultOptions()
	opts.DataDir = dir
	var out bytes.Buffer
	_, err := New(eng, nil, opts, nil).Run(context.Background(), Request{ID: "lig", Native: "ligand.xyz"}, &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedType))
	assert.True(t, IsInputError(err))
	assert.Zero(t, out.Len())
	assert.Zero(t, eng.EmbedCalls)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunComputeOnly(t *testing.T) {
	dir, eng, p := setup(t)
	p.Options.Mode = ModeCompute
	var out bytes.Buffer
	_, err := p.Run(context.Background(), Request{ID: "lig", Native: "native.sdf"}, &out)
	assert.True(t, errors.Is(err, ErrMissingEnsemble))
	assert.Zero(t, eng.EmbedCalls)
	assert.Zero(t, eng.MinimizeCalls)

	writeSD(t, GlobalMinPath(dir, "lig"), []float64{-50}, base)
	eng.EnergyFunc = constant(-45)
	rec, err := p.Run(context.Background(), Request{ID: "lig", Native: "native.sdf"}, &out)
	require.NoError(t, err)
	assert.Zero(t, eng.EmbedCalls)
	assert.InDelta(t, 5.0, rec.EnergyGap, 1e-12)
	assert.True(t, strings.HasPrefix(out.String(), "lig,5.0,"))
}

func TestRunValidateCache(t *testing.T) {
	dir, eng, p := setup(t)
	require.NoError(t, os.WriteFile(EnsemblePath(dir, "lig"), []byte("garbage\n"), 0o644))
	require.NoError(t, os.WriteFile(GlobalMinPath(dir, "lig"), []byte("garbage\n"), 0o644))
	var out bytes.Buffer
	_, err := p.Run(context.Background(), Request{ID: "lig", Native: "native.sdf"}, &out)
	assert.Error(t, err, "existing files are trusted by default")
	assert.Zero(t, eng.EmbedCalls)

	p.Options.ValidateCache = true
	_, err = p.Run(context.Background(), Request{ID: "lig", Native: "native.sdf"}, &out)
	require.NoError(t, err)
	assert.Equal(t, 1, eng.EmbedCalls)
}

func TestRunRecoversPanics(t *testing.T) {
	_, eng, p := setup(t)
	eng.EnergyFunc = func(*v3.Matrix) float64 { panic("boom") }
	var out bytes.Buffer
	assert.NotPanics(t, func() {
		_, err := p.Run(context.Background(), Request{ID: "lig", Native: "native.sdf"}, &out)
		assert.Error(t, err)
	})
	assert.Zero(t, out.Len())
}

func TestStats(t *testing.T) {
	dir, eng, p := setup(t)
	_, err := p.Stats(context.Background(), Request{ID: "lig", Native: "native.sdf"}, DefaultWindow)
	assert.True(t, errors.Is(err, ErrMissingEnsemble))

	writeSD(t, EnsemblePath(dir, "lig"), []float64{-50, -49.5, -40}, base, base, bent)
	eng.EnergyFunc = constant(-45)
	s, err := p.Stats(context.Background(), Request{ID: "lig", Native: "native.sdf"}, DefaultWindow)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.NearMinimum)
	assert.Equal(t, 2, s.BelowNative)
	assert.Equal(t, -45.0, s.NativeEnergy)
}
