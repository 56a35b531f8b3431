/*
 * bonds.go, part of ligstab
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

package mol

import (
	"math"
	"strings"
)

//constants from DOI:10.1186/1758-2946-3-33, as used by goChem
const (
	tooclose = 0.63
	bondtol  = 0.045
)

//Covalent radii (Cordero et al., Dalton Trans. 2008) for the
//elements one expects in a drug-like ligand. sp3 carbon is used for C.
var covalentRadii = map[string]float64{
	"H":  0.31,
	"D":  0.31,
	"T":  0.31,
	"B":  0.84,
	"C":  0.76,
	"N":  0.71,
	"O":  0.66,
	"F":  0.57,
	"Si": 1.11,
	"P":  1.07,
	"S":  1.05,
	"Cl": 1.02,
	"Se": 1.20,
	"Br": 1.20,
	"I":  1.39,
}

const defaultRadius = 1.5

func radius(symbol string) float64 {
	s := strings.TrimSpace(symbol)
	if len(s) > 1 {
		s = s[:1] + strings.ToLower(s[1:])
	}
	if r, ok := covalentRadii[s]; ok {
		return r
	}
	return defaultRadius
}

//PerceiveBonds replaces the bonds of the molecule with single bonds assigned
//from the interatomic distances in the conformer with ID confID.
//It's meant for formats that carry no connectivity, such as PDB files without CONECT
//records. Bond orders are not perceived.
func (M *Molecule) PerceiveBonds(confID int) error {
	c, err := M.Conformer(confID)
	if err != nil {
		return err
	}
	bonds := make([]Bond, 0, M.Len())
	for i := 0; i < M.Len(); i++ {
		ri := radius(M.Atoms[i].Symbol)
		for j := i + 1; j < M.Len(); j++ {
			d := distance(c.Coords.At(i, 0)-c.Coords.At(j, 0), c.Coords.At(i, 1)-c.Coords.At(j, 1), c.Coords.At(i, 2)-c.Coords.At(j, 2))
			if d < tooclose {
				continue
			}
			if d <= (ri+radius(M.Atoms[j].Symbol))*(1+bondtol) {
				bonds = append(bonds, Bond{A: i, B: j, Order: 1})
			}
		}
	}
	M.Bonds = bonds
	return nil
}

func distance(dx, dy, dz float64) float64 {
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
