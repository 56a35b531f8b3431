/*
 * align.go, part of ligstab
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
	"github.com/cockroachdb/errors"
	chem "github.com/rmera/gochem"
	v3 "github.com/rmera/gochem/v3"
)

//Geometry implements the alignment part of Engine with goChem.
//It can be embedded by engines that don't have an alignment routine of their own.
type Geometry struct{}

//Align superimposes the atoms of probe listed in atoms onto the same atoms of ref
//and returns the RMSD over those atoms. If atoms is nil, all atoms are used.
func (Geometry) Align(probe, ref *v3.Matrix, atoms []int) (float64, error) {
	if atoms == nil {
		if probe.NVecs() != ref.NVecs() {
			return 0, errors.Newf("can't align all atoms of structures with %d and %d atoms", probe.NVecs(), ref.NVecs())
		}
		atoms = make([]int, probe.NVecs())
		for i := range atoms {
			atoms[i] = i
		}
	}
	if len(atoms) == 0 {
		return 0, errors.New("no atoms to align")
	}
	for _, i := range atoms {
		if i < 0 || i >= probe.NVecs() || i >= ref.NVecs() {
			return 0, errors.Newf("atom index %d out of range (%d, %d atoms)", i, probe.NVecs(), ref.NVecs())
		}
	}
	if len(atoms) == 1 {
		return 0, nil //any two points superimpose exactly
	}
	p := v3.Zeros(len(atoms))
	p.SomeVecs(probe, atoms)
	r := v3.Zeros(len(atoms))
	r.SomeVecs(ref, atoms)
	//Super works in place on p, which is our own copy.
	sup, err := chem.Super(p, r)
	if err != nil {
		return 0, errors.Wrap(err, "superposition failed")
	}
	rmsd, err := chem.RMSD(sup, r)
	if err != nil {
		return 0, errors.Wrap(err, "RMSD calculation failed")
	}
	return rmsd, nil
}
