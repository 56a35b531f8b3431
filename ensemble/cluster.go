/*
 * cluster.go, part of ligstab
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

package ensemble

import (
	"github.com/cockroachdb/errors"
	v3 "github.com/rmera/gochem/v3"
	"github.com/samber/lo"

	"github.com/rmera/ligstab/butina"
	"github.com/rmera/ligstab/engine"
	"github.com/rmera/ligstab/mol"
)

//DistanceMatrix returns the heavy-atom RMSD, after superposition, between each pair
//of conformers of m, as a lower triangle (see butina.TriangleIndex) in the order
//of m.Conformers(). A molecule without heavy atoms is compared using all atoms.
func DistanceMatrix(m *mol.Molecule, al Aligner) ([]float64, error) {
	heavy := m.HeavyAtoms()
	if len(heavy) == 0 {
		heavy = nil
	}
	confs := m.Conformers()
	n := len(confs)
	dmat := make([]float64, 0, butina.TriangleLen(n))
	for i := 0; i < n; i++ {
		for j := 0; j < i; j++ {
			rms, err := al.Align(confs[i].Coords, confs[j].Coords, heavy)
			if err != nil {
				return nil, errors.Wrapf(err, "aligning conformers %d and %d of %s", confs[i].ID, confs[j].ID, m.ID)
			}
			dmat = append(dmat, rms)
		}
	}
	return dmat, nil
}

//Aligner is the part of engine.Engine needed to build distance matrices.
type Aligner interface {
	Align(probe, ref *v3.Matrix, atoms []int) (float64, error)
}

//Cluster groups the conformers of m by heavy-atom RMSD with the Butina algorithm
//(threshold in A, neighbor counts updated after each cluster).
//Each cluster is a list of conformer IDs, the first one being the centroid.
func Cluster(m *mol.Molecule, al Aligner, threshold float64) ([][]int, error) {
	dmat, err := DistanceMatrix(m, al)
	if err != nil {
		return nil, err
	}
	ids := m.ConformerIDs()
	idx, err := butina.Cluster(dmat, len(ids), threshold, true)
	if err != nil {
		return nil, errors.Wrapf(err, "clustering conformers of %s", m.ID)
	}
	return lo.Map(idx, func(c []int, _ int) []int {
		return lo.Map(c, func(i int, _ int) int { return ids[i] })
	}), nil
}

var _ Aligner = engine.Engine(nil)
