/*
 * mol2.go, part of ligstab
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

package molio

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	v3 "github.com/rmera/gochem/v3"

	"github.com/rmera/ligstab/mol"
)

var mol2BondOrders = map[string]int{
	"1":  1,
	"2":  2,
	"3":  3,
	"ar": 4,
	"am": 1,
	"du": 1,
	"un": 1,
}

//mol2Element gets the element from a Tripos atom type, such as C.ar or Cl.
func mol2Element(atype string) string {
	return strings.SplitN(atype, ".", 2)[0]
}

//ReadMol2 reads the first molecule in a Tripos mol2 file. Partial charges
//are ignored, and all formal charges are set to zero.
func ReadMol2(name string) (*mol.Molecule, error) {
	lines, err := readLines(name)
	if err != nil {
		return nil, err
	}
	section := ""
	molecules := 0
	var title string
	var atoms []*mol.Atom
	var xyz [][3]float64
	var bonds []mol.Bond
	ids := make(map[int]int) //mol2 atom ids to 0-based indexes
	molline := 0
	for linenu, line := range lines {
		t := strings.TrimSpace(line)
		if t == "" || strings.HasPrefix(t, "#") {
			continue
		}
		if strings.HasPrefix(t, "@<TRIPOS>") {
			section = strings.TrimPrefix(t, "@<TRIPOS>")
			if section == "MOLECULE" {
				molecules++
				molline = 0
			}
			continue
		}
		if molecules > 1 {
			break //only the first molecule is read.
		}
		f := strings.Fields(t)
		switch section {
		case "MOLECULE":
			if molline == 0 {
				title = t
			}
			molline++
		case "ATOM":
			if len(f) < 6 {
				return nil, parseErr(name, linenu, "malformed atom line %q", line)
			}
			id, err := strconv.Atoi(f[0])
			if err != nil {
				return nil, parseErr(name, linenu, "malformed atom id in %q", line)
			}
			var c [3]float64
			for i := 0; i < 3; i++ {
				c[i], err = strconv.ParseFloat(f[2+i], 64)
				if err != nil {
					return nil, parseErr(name, linenu, "malformed coordinates in %q", line)
				}
			}
			ids[id] = len(atoms)
			atoms = append(atoms, &mol.Atom{Symbol: mol2Element(f[5]), Name: f[1]})
			xyz = append(xyz, c)
		case "BOND":
			if len(f) < 4 {
				return nil, parseErr(name, linenu, "malformed bond line %q", line)
			}
			a, err1 := strconv.Atoi(f[1])
			b, err2 := strconv.Atoi(f[2])
			ia, oka := ids[a]
			ib, okb := ids[b]
			if err1 != nil || err2 != nil || !oka || !okb {
				return nil, parseErr(name, linenu, "bond between unknown atoms in %q", line)
			}
			order, ok := mol2BondOrders[f[3]]
			if !ok {
				continue //"nc", not connected.
			}
			bonds = append(bonds, mol.Bond{A: ia, B: ib, Order: order})
		}
	}
	if len(atoms) == 0 {
		return nil, errors.Mark(errors.Newf("%s contains no atoms", name), ErrParse)
	}
	coords := v3.Zeros(len(atoms))
	for i, v := range xyz {
		coords.Set(i, 0, v[0])
		coords.Set(i, 1, v[1])
		coords.Set(i, 2, v[2])
	}
	m := mol.New(filepath.Base(TrimExtension(name)), atoms, bonds)
	m.Name = title
	if _, err := m.AddConformer(coords); err != nil {
		return nil, errors.Mark(err, ErrParse)
	}
	return m, nil
}
