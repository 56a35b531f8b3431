/*
 * fake.go, part of ligstab
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

//Package enginetest provides a deterministic, in-memory engine.Engine for tests.
package enginetest

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	v3 "github.com/rmera/gochem/v3"

	"github.com/rmera/ligstab/engine"
	"github.com/rmera/ligstab/mol"
)

//Engine is a fake engine. Embed returns copies of the Geometries (at most NumConfs),
//Minimize leaves coordinates alone and Energy returns the value EnergyFunc computes
//for the coordinates. Alignment is the real goChem one.
type Engine struct {
	engine.Geometry
	Geometries []*v3.Matrix
	EnergyFunc func(c *v3.Matrix) float64
	SMILES     string
	BestRMSErr error //if set, BestRMS fails with this error
	AlignErr   error //if set, Align fails with this error
	//MinimizeFunc, if set, replaces the coordinates during minimization.
	MinimizeFunc func(c *v3.Matrix)
	//MinimizeErr, if set, is returned by Minimize together with the energy.
	MinimizeErr error

	mu            sync.Mutex
	EmbedCalls    int
	MinimizeCalls int
	EnergyCalls   int
	Embedded      []engine.EmbedParams
	Minimized     []engine.ForceField
}

func (E *Engine) Embed(ctx context.Context, m *mol.Molecule, p engine.EmbedParams) ([]int, error) {
	E.mu.Lock()
	E.EmbedCalls++
	E.Embedded = append(E.Embedded, p)
	E.mu.Unlock()
	m.ClearConformers()
	ids := make([]int, 0, len(E.Geometries))
	for i, g := range E.Geometries {
		if i >= p.NumConfs {
			break
		}
		id, err := m.AddConformer(mol.CopyCoords(g))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (E *Engine) Minimize(ctx context.Context, m *mol.Molecule, confID int, ff engine.ForceField) (float64, error) {
	E.mu.Lock()
	E.MinimizeCalls++
	E.Minimized = append(E.Minimized, ff)
	E.mu.Unlock()
	c, err := m.Conformer(confID)
	if err != nil {
		return 0, err
	}
	if E.MinimizeFunc != nil {
		E.MinimizeFunc(c.Coords)
	}
	return E.energy(c.Coords), E.MinimizeErr
}

func (E *Engine) Energy(ctx context.Context, m *mol.Molecule, confID int, ff engine.ForceField) (float64, error) {
	E.mu.Lock()
	E.EnergyCalls++
	E.mu.Unlock()
	c, err := m.Conformer(confID)
	if err != nil {
		return 0, err
	}
	return E.energy(c.Coords), nil
}

func (E *Engine) energy(c *v3.Matrix) float64 {
	if E.EnergyFunc == nil {
		return 0
	}
	return E.EnergyFunc(c)
}

func (E *Engine) Align(probe, ref *v3.Matrix, atoms []int) (float64, error) {
	if E.AlignErr != nil {
		return 0, E.AlignErr
	}
	return E.Geometry.Align(probe, ref, atoms)
}

func (E *Engine) BestRMS(ctx context.Context, probe, ref *mol.Molecule) (float64, error) {
	if E.BestRMSErr != nil {
		return 0, E.BestRMSErr
	}
	if probe.Len() != ref.Len() {
		return 0, errors.Newf("different number of atoms: %d and %d", probe.Len(), ref.Len())
	}
	return E.Geometry.Align(probe.Conformers()[0].Coords, ref.Conformers()[0].Coords, nil)
}

func (E *Engine) CanonicalSMILES(ctx context.Context, m *mol.Molecule) (string, error) {
	return E.SMILES, nil
}

//Coords builds a coordinate matrix from a slice of positions.
func Coords(xyz [][3]float64) *v3.Matrix {
	c := v3.Zeros(len(xyz))
	for i, v := range xyz {
		for j := 0; j < 3; j++ {
			c.Set(i, j, v[j])
		}
	}
	return c
}

//Translate returns a copy of c displaced by d.
func Translate(c *v3.Matrix, d [3]float64) *v3.Matrix {
	r := mol.CopyCoords(c)
	for i := 0; i < r.NVecs(); i++ {
		for j := 0; j < 3; j++ {
			r.Set(i, j, r.At(i, j)+d[j])
		}
	}
	return r
}
