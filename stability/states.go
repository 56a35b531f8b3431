/*
 * states.go, part of ligstab
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
	"gonum.org/v1/gonum/floats"
)

//DefaultWindow is the energy window, in kcal/mol, above the global minimum within
//which ensemble conformers are taken to be accessible.
const DefaultWindow = 1.0

//States counts the conformers of an ensemble relative to two energy references.
type States struct {
	Total        int //representatives in the ensemble
	NearMinimum  int //below the lowest energy plus the window
	BelowNative  int //below the native local minimum energy
	Lowest       float64
	NativeEnergy float64
}

//CountStates reads the ensemble file name and counts its conformers with
//an energy below lowest+window, and those with an energy below nativeEnergy.
//A non-positive window means DefaultWindow.
func CountStates(name string, nativeEnergy, window float64) (States, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	s := States{NativeEnergy: nativeEnergy}
	_, recs, err := ReadEnsemble(name)
	if err != nil {
		return s, err
	}
	e := energies(recs)
	s.Total = len(e)
	s.Lowest = floats.Min(e)
	for _, v := range e {
		if v < s.Lowest+window {
			s.NearMinimum++
		}
		if v < nativeEnergy {
			s.BelowNative++
		}
	}
	return s, nil
}
