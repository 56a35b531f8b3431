/*
 * pdb.go, part of ligstab
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
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	chem "github.com/rmera/gochem"
	v3 "github.com/rmera/gochem/v3"

	"github.com/rmera/ligstab/mol"
)

var symbolre = regexp.MustCompile("[a-zA-Z]+")

//ReadPDB reads the first model of a ligand PDB file. Reasonable PDBs are read with goChem;
//the "PDBs" made by LigParGen, which don't respect the column format, are
//detected and read by splitting the fields on spaces.
//PDB files carry no reliable connectivity, so single bonds are assigned from the
//interatomic distances.
func ReadPDB(name string) (*mol.Molecule, error) {
	lines, err := readLines(name)
	if err != nil {
		return nil, err
	}
	var m *mol.Molecule
	if len(lines) > 0 && strings.Contains(lines[0], "REMARK LIGPARGEN GENERATED PDB") {
		m, err = ligParGenPDB(name, lines)
	} else {
		m, err = gochemPDB(name)
	}
	if err != nil {
		return nil, err
	}
	m.ID = filepath.Base(TrimExtension(name))
	if err := m.PerceiveBonds(m.ConformerIDs()[0]); err != nil {
		return nil, err
	}
	return m, nil
}

func gochemPDB(name string) (*mol.Molecule, error) {
	cmol, err := chem.PDBFileRead(name)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "reading %s", name), ErrParse)
	}
	if cmol.Len() == 0 || len(cmol.Coords) == 0 {
		return nil, errors.Mark(errors.Newf("%s contains no atoms", name), ErrParse)
	}
	atoms := make([]*mol.Atom, 0, cmol.Len())
	for i := 0; i < cmol.Len(); i++ {
		at := cmol.Atom(i)
		sym := at.Symbol
		if sym == "" {
			sym = symbolre.FindString(at.Name)
		}
		atoms = append(atoms, &mol.Atom{Symbol: sym, Name: at.Name})
	}
	m := mol.New("", atoms, nil)
	if _, err := m.AddConformer(mol.CopyCoords(cmol.Coords[0])); err != nil {
		return nil, errors.Mark(err, ErrParse)
	}
	return m, nil
}

//LigParGen "PDBs" are so wrong they don't actually classify as PDB at all.
//This relies on the fields being separated by spaces.
func ligParGenPDB(name string, lines []string) (*mol.Molecule, error) {
	atoms := make([]*mol.Atom, 0, 10)
	tmpcoord := make([][3]float64, 0, 10)
	for linenu, l := range lines[1:] {
		if !strings.HasPrefix(l, "ATOM") && !strings.HasPrefix(l, "HETATM") {
			continue
		}
		chunks := strings.Fields(l)
		if len(chunks) < 8 {
			return nil, parseErr(name, linenu+1, "malformed LigParGen atom line %q", l)
		}
		sym := symbolre.FindString(chunks[2])
		atoms = append(atoms, &mol.Atom{Symbol: sym, Name: chunks[2]})
		var coord [3]float64
		for i, c := range chunks[5:8] {
			var err error
			coord[i], err = strconv.ParseFloat(c, 64)
			if err != nil {
				return nil, parseErr(name, linenu+1, "malformed coordinates in %q", l)
			}
		}
		tmpcoord = append(tmpcoord, coord)
	}
	if len(atoms) == 0 {
		return nil, errors.Mark(errors.Newf("%s contains no atoms", name), ErrParse)
	}
	coord := v3.Zeros(len(tmpcoord))
	for i, v := range tmpcoord {
		coord.Set(i, 0, v[0])
		coord.Set(i, 1, v[1])
		coord.Set(i, 2, v[2])
	}
	m := mol.New("", atoms, nil)
	if _, err := m.AddConformer(coord); err != nil {
		return nil, errors.Mark(err, ErrParse)
	}
	return m, nil
}
