/*
 * engine.go, part of ligstab
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

//Package engine defines the molecular mechanics capabilities ligstab needs
//(conformer embedding, force field minimization and evaluation, alignment)
//and provides implementations for them.
package engine

import (
	"context"

	"github.com/cockroachdb/errors"
	v3 "github.com/rmera/gochem/v3"

	"github.com/rmera/ligstab/mol"
)

//ErrNotConverged is returned, together with a usable energy, when a minimization
//reached its iteration limit. Callers are expected to accept the energy.
var ErrNotConverged = errors.New("minimization did not converge")

//Water
const DefaultDielectric = 80.0

const (
	DefaultMaxIters   = 1000
	DefaultNumConfs   = 1000
	DefaultRandomSeed = 1
	DefaultPruneRMS   = 0.1
)

//EmbedParams controls the generation of conformers.
type EmbedParams struct {
	NumConfs   int
	RandomSeed int64
	PruneRMS   float64 //conformers closer than this (heavy atom RMSD, A) to an accepted one are discarded.
	NumThreads int     //0 means let the engine decide.
	Dielectric float64 //of the medium in which conformers are sampled.
}

func DefaultEmbedParams() EmbedParams {
	return EmbedParams{NumConfs: DefaultNumConfs, RandomSeed: DefaultRandomSeed, PruneRMS: DefaultPruneRMS, Dielectric: DefaultDielectric}
}

//ForceField contains the force field settings for minimizations and energy evaluations.
type ForceField struct {
	Dielectric float64
	MaxIters   int
}

func DefaultForceField() ForceField {
	return ForceField{Dielectric: DefaultDielectric, MaxIters: DefaultMaxIters}
}

//Engine is a molecular mechanics backend. Energies are in kcal/mol, distances in A.
//An Engine is not required to be safe for concurrent use; use one per goroutine.
type Engine interface {
	//Embed adds up to p.NumConfs new conformers to m, built from its topology and
	//its current conformers, and returns their IDs. Fewer conformers than requested
	//is not an error.
	Embed(ctx context.Context, m *mol.Molecule, p EmbedParams) ([]int, error)
	//Minimize optimizes the geometry of the conformer in place and returns its final
	//energy. If the iteration limit is hit, it returns the last energy and an error
	//marked with ErrNotConverged.
	Minimize(ctx context.Context, m *mol.Molecule, confID int, ff ForceField) (float64, error)
	//Energy evaluates the energy of the conformer without changing it.
	Energy(ctx context.Context, m *mol.Molecule, confID int, ff ForceField) (float64, error)
	//Align returns the RMSD between probe and ref after optimal superposition of the
	//atoms in atoms, which are taken to correspond one to one. Neither matrix is modified.
	Align(probe, ref *v3.Matrix, atoms []int) (float64, error)
	//BestRMS returns the symmetry-corrected RMSD between the first conformers of
	//probe and ref, after optimal superposition.
	BestRMS(ctx context.Context, probe, ref *mol.Molecule) (float64, error)
	//CanonicalSMILES returns a canonical SMILES for the molecule.
	CanonicalSMILES(ctx context.Context, m *mol.Molecule) (string, error)
}

//HydrogenAdder is implemented by engines able to complete a molecule with
//explicit hydrogens.
type HydrogenAdder interface {
	AddHydrogens(ctx context.Context, m *mol.Molecule) (*mol.Molecule, error)
}
