/*
 * mol.go, part of ligstab
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

//Package mol contains the molecule model used by ligstab: a fixed topology
//(atoms and bonds) plus an ordered set of conformers, each with its own
//coordinates and, once evaluated, its energy.
package mol

import (
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	chem "github.com/rmera/gochem"
	v3 "github.com/rmera/gochem/v3"
	"github.com/samber/lo"
)

type Atom struct {
	Symbol string
	Name   string
	Charge int //formal charge
}

//Heavy returns true if the atom is not a hydrogen isotope.
func (a *Atom) Heavy() bool {
	return !isHydrogen(a.Symbol)
}

func isHydrogen(symbol string) bool {
	switch strings.TrimSpace(symbol) {
	case "H", "D", "T":
		return true
	}
	return false
}

//Bond joins atoms A and B (0-based). Order follows the MDL convention:
//1, 2, 3 and 4 for aromatic.
type Bond struct {
	A, B  int
	Order int
}

//Conformer is one 3D arrangement of the atoms of its parent molecule.
type Conformer struct {
	ID        int
	Coords    *v3.Matrix
	Energy    float64 //kcal/mol, only meaningful if HasEnergy
	HasEnergy bool
}

//SetEnergy stores e as the conformer's energy.
func (c *Conformer) SetEnergy(e float64) {
	c.Energy = e
	c.HasEnergy = true
}

//Molecule is a topology plus an ordered list of conformers.
//Conformer IDs are assigned on insertion and never reused.
type Molecule struct {
	ID    string //the source id (the ligand/PDB id)
	Name  string
	Atoms []*Atom
	Bonds []Bond
	Props map[string]string //annotations read from, or to be written to, a file.

	confs  []*Conformer
	nextID int

	heavyOnce sync.Once
	heavy     []int
}

//New returns a molecule with the given atoms and bonds, and no conformers.
func New(id string, atoms []*Atom, bonds []Bond) *Molecule {
	return &Molecule{ID: id, Atoms: atoms, Bonds: bonds, Props: make(map[string]string)}
}

func (M *Molecule) Len() int {
	return len(M.Atoms)
}

func (M *Molecule) NumConformers() int {
	return len(M.confs)
}

//AddConformer appends a conformer with the given coordinates and returns its ID.
//The coordinates are not copied.
func (M *Molecule) AddConformer(coords *v3.Matrix) (int, error) {
	if coords == nil || coords.NVecs() != M.Len() {
		n := -1
		if coords != nil {
			n = coords.NVecs()
		}
		return -1, errors.Newf("conformer has %d positions, molecule %s has %d atoms", n, M.ID, M.Len())
	}
	id := M.nextID
	M.nextID++
	M.confs = append(M.confs, &Conformer{ID: id, Coords: coords})
	return id, nil
}

//Conformer returns the conformer with the given ID, or an error if there is none.
func (M *Molecule) Conformer(id int) (*Conformer, error) {
	for _, c := range M.confs {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, errors.Newf("molecule %s has no conformer with ID %d", M.ID, id)
}

//Conformers returns the conformers in insertion order. The slice
//should not be modified.
func (M *Molecule) Conformers() []*Conformer {
	return M.confs
}

//ConformerIDs returns the IDs of all conformers, in order.
func (M *Molecule) ConformerIDs() []int {
	return lo.Map(M.confs, func(c *Conformer, _ int) int { return c.ID })
}

//ClearConformers drops all conformers. IDs keep growing from where they were.
func (M *Molecule) ClearConformers() {
	M.confs = nil
}

//HeavyAtoms returns the indexes of all non-hydrogen atoms. The set is
//computed only once per molecule, the topology being immutable.
func (M *Molecule) HeavyAtoms() []int {
	M.heavyOnce.Do(func() {
		M.heavy = lo.FilterMap(M.Atoms, func(a *Atom, i int) (int, bool) {
			return i, a.Heavy()
		})
	})
	return M.heavy
}

//WithConformer returns a new molecule sharing the receiver's topology, with a copy of
//only the conformer with the given ID (which keeps its ID and energy).
func (M *Molecule) WithConformer(id int) (*Molecule, error) {
	c, err := M.Conformer(id)
	if err != nil {
		return nil, err
	}
	r := M.emptyCopy()
	nc := &Conformer{ID: c.ID, Coords: CopyCoords(c.Coords), Energy: c.Energy, HasEnergy: c.HasEnergy}
	r.confs = []*Conformer{nc}
	r.nextID = c.ID + 1
	return r, nil
}

func (M *Molecule) emptyCopy() *Molecule {
	r := New(M.ID, M.Atoms, M.Bonds)
	r.Name = M.Name
	for k, v := range M.Props {
		r.Props[k] = v
	}
	return r
}

//StripHydrogens returns a copy of the molecule without hydrogen atoms, with
//all conformers (and their IDs) preserved. Bonds involving hydrogens are removed
//and the rest are re-indexed.
func (M *Molecule) StripHydrogens() *Molecule {
	heavy := M.HeavyAtoms()
	newindex := make(map[int]int, len(heavy))
	atoms := make([]*Atom, 0, len(heavy))
	for n, i := range heavy {
		newindex[i] = n
		a := *M.Atoms[i]
		atoms = append(atoms, &a)
	}
	bonds := make([]Bond, 0, len(M.Bonds))
	for _, b := range M.Bonds {
		a, oka := newindex[b.A]
		c, okc := newindex[b.B]
		if oka && okc {
			bonds = append(bonds, Bond{A: a, B: c, Order: b.Order})
		}
	}
	r := New(M.ID, atoms, bonds)
	r.Name = M.Name
	for k, v := range M.Props {
		r.Props[k] = v
	}
	for _, c := range M.confs {
		coords := v3.Zeros(len(heavy))
		coords.SomeVecs(c.Coords, heavy)
		r.confs = append(r.confs, &Conformer{ID: c.ID, Coords: coords, Energy: c.Energy, HasEnergy: c.HasEnergy})
	}
	r.nextID = M.nextID
	return r
}

//Topology returns a goChem topology with the molecule's atoms, so goChem
//readers and writers can be used on the molecule.
func (M *Molecule) Topology() *chem.Topology {
	ats := make([]*chem.Atom, 0, M.Len())
	for i, a := range M.Atoms {
		at := new(chem.Atom)
		at.Symbol = a.Symbol
		at.Name = a.Name
		if at.Name == "" {
			at.Name = a.Symbol
		}
		at.ID = i + 1
		at.MolName = "LIG"
		at.MolID = 1
		at.Charge = float64(a.Charge)
		ats = append(ats, at)
	}
	return chem.NewTopology(M.TotalCharge(), 1, ats)
}

//TotalCharge is the sum of the formal charges of the atoms.
func (M *Molecule) TotalCharge() int {
	return lo.SumBy(M.Atoms, func(a *Atom) int { return a.Charge })
}

//CopyCoords returns a deep copy of c.
func CopyCoords(c *v3.Matrix) *v3.Matrix {
	n := c.NVecs()
	r := v3.Zeros(n)
	for i := 0; i < n; i++ {
		for j := 0; j < 3; j++ {
			r.Set(i, j, c.At(i, j))
		}
	}
	return r
}
