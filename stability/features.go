/*
 * features.go, part of ligstab
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
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/rmera/ligstab/engine"
	"github.com/rmera/ligstab/ensemble"
	"github.com/rmera/ligstab/mol"
	"github.com/rmera/ligstab/molio"
)

//NoRMSD is written in place of the RMSD when it could not be obtained.
const NoRMSD = "None"

//FeatureRecord holds the stability features of one ligand.
type FeatureRecord struct {
	ID        string
	EnergyGap float64 //kcal/mol, native local minimum minus global minimum
	RMSD      float64 //A, only meaningful if HasRMSD
	HasRMSD   bool
}

//String returns the record as an "id,gap,rmsd" line, without the newline.
func (f FeatureRecord) String() string {
	rmsd := NoRMSD
	if f.HasRMSD {
		rmsd = molio.FormatFloat(f.RMSD)
	}
	return fmt.Sprintf("%s,%s,%s", f.ID, molio.FormatFloat(f.EnergyGap), rmsd)
}

//ReadEnsemble reads an ensemble (or global minimum) SD file and the
//annotation record of each of its structures.
func ReadEnsemble(name string) ([]*mol.Molecule, []ensemble.Record, error) {
	ms, err := molio.ReadSDF(name)
	if err != nil {
		return nil, nil, err
	}
	recs := make([]ensemble.Record, 0, len(ms))
	for i, m := range ms {
		r, err := ensemble.ParseRecord(m.Props)
		if err != nil {
			return nil, nil, errors.Mark(errors.Wrapf(err, "%s, record %d", name, i+1), molio.ErrParse)
		}
		recs = append(recs, r)
	}
	return ms, recs, nil
}

func energies(recs []ensemble.Record) []float64 {
	return lo.Map(recs, func(r ensemble.Record, _ int) float64 { return r.Energy })
}

//ComputeFeatures compares the minimized native pose n with the global minimum
//stored in the file globalMin, and returns the features for the ligand id.
//The RMSD is obtained, hydrogens excluded, with the symmetry-aware engine routine,
//falling back to a direct superposition of the heavy atoms in file order. If both
//fail, the record has no RMSD.
func ComputeFeatures(ctx context.Context, eng engine.Engine, id string, n *Native, globalMin string, log *zap.Logger) (FeatureRecord, error) {
	if log == nil {
		log = zap.NewNop()
	}
	f := FeatureRecord{ID: id}
	ms, recs, err := ReadEnsemble(globalMin)
	if err != nil {
		return f, errors.Wrap(err, "reading global minimum")
	}
	lowest := floats.Min(energies(recs))
	f.EnergyGap = n.Energy - lowest

	local, err := n.Mol.WithConformer(n.ConfID)
	if err != nil {
		return f, err
	}
	probe := local.StripHydrogens()
	ref := ms[0].StripHydrogens()
	rmsd, err := eng.BestRMS(ctx, probe, ref)
	if err == nil {
		f.RMSD, f.HasRMSD = rmsd, true
		return f, nil
	}
	log.Debug("symmetry-corrected RMSD failed, aligning heavy atoms by index", zap.String("ligand", id), zap.Error(err))
	if probe.NumConformers() > 0 && ref.NumConformers() > 0 {
		rmsd, err = eng.Align(probe.Conformers()[0].Coords, ref.Conformers()[0].Coords, nil)
		if err == nil {
			f.RMSD, f.HasRMSD = rmsd, true
			return f, nil
		}
	}
	log.Warn("no RMSD could be obtained", zap.String("ligand", id), zap.Error(err))
	return f, nil
}
