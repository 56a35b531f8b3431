/*
 * native.go, part of ligstab
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

//Package stability computes the ligand stability features of a native pose: the
//energy gap between the local minimum of the pose and the global minimum of the
//ligand's conformer ensemble, and the heavy-atom RMSD between both structures.
package stability

import (
	"context"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/rmera/ligstab/engine"
	"github.com/rmera/ligstab/ensemble"
	"github.com/rmera/ligstab/mol"
	"github.com/rmera/ligstab/molio"
)

//ErrUnsupportedType is returned when the native pose is not in one of the
//formats it can be read from (mol2, sdf and pdb).
var ErrUnsupportedType = errors.New("unsupported native pose file type")

//Native is a native pose after local minimization.
type Native struct {
	Mol    *mol.Molecule
	ConfID int
	Energy float64 //kcal/mol
	Path   string  //the file the pose was read from
}

//NativeType checks that the file name has an extension that can be read as a
//native pose and returns its type.
func NativeType(name string) (molio.FileType, error) {
	switch t := molio.Type(name); t {
	case molio.MOL2, molio.SDF, molio.PDB:
		return t, nil
	}
	return molio.Unknown, errors.Mark(errors.Newf("%s: extension %q", filepath.Base(name), molio.Extension(name)), ErrUnsupportedType)
}

//EvaluateNative reads the first structure in the file name and minimizes it in place,
//returning the minimized pose and its energy. A minimization that doesn't converge
//is accepted with its last energy.
func EvaluateNative(ctx context.Context, eng engine.Engine, r *molio.Reader, name string, ff engine.ForceField, log *zap.Logger) (*Native, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if _, err := NativeType(name); err != nil {
		return nil, err
	}
	m, err := r.Read(ctx, name)
	if err != nil {
		return nil, errors.Wrap(err, "reading native pose")
	}
	if m.NumConformers() == 0 {
		return nil, errors.Mark(errors.Newf("%s has no coordinates", name), molio.ErrParse)
	}
	id := m.Conformers()[0].ID
	e, err := eng.Minimize(ctx, m, id, ff)
	if errors.Is(err, engine.ErrNotConverged) {
		log.Warn("native pose minimization did not converge", zap.String("file", name), zap.Float64("energy", e))
	} else if err != nil {
		return nil, errors.Wrapf(err, "minimizing native pose %s", name)
	}
	c, _ := m.Conformer(id)
	c.SetEnergy(e)
	return &Native{Mol: m, ConfID: id, Energy: e, Path: name}, nil
}

//LocalMinPath returns the name of the file for the minimized native pose name:
//the same directory and base name, with the suffix _local_min.sdf
func LocalMinPath(name string) string {
	return molio.TrimExtension(name) + "_local_min.sdf"
}

//WriteLocalMin writes the minimized native pose, with its energy and SMILES,
//to LocalMinPath(n.Path).
func WriteLocalMin(ctx context.Context, eng engine.Engine, n *Native) error {
	one, err := n.Mol.WithConformer(n.ConfID)
	if err != nil {
		return err
	}
	smiles, err := eng.CanonicalSMILES(ctx, one)
	if err != nil {
		return errors.Wrap(err, "obtaining SMILES for the native pose")
	}
	w, err := molio.NewSDWriter(LocalMinPath(n.Path))
	if err != nil {
		return err
	}
	props := []molio.Prop{
		{Key: ensemble.KeyEnergy, Value: molio.FormatFloat(n.Energy)},
		{Key: ensemble.KeySMILES, Value: smiles},
	}
	if err := w.Write(n.Mol, n.ConfID, props); err != nil {
		w.Abort()
		return err
	}
	return w.Close()
}
