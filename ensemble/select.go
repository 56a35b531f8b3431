/*
 * select.go, part of ligstab
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
	"context"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/rmera/ligstab/engine"
	"github.com/rmera/ligstab/mol"
	"github.com/rmera/ligstab/molio"
)

//SD data item names for the records of an ensemble file.
const (
	KeyEnergy    = "energy_abs"
	KeySMILES    = "SMILE"
	KeyCluster   = "cluster_no"
	KeySource    = "pdb_id"
	KeyInitialID = "initial_id"
)

//Record is the annotation of each conformer written to an ensemble file.
type Record struct {
	Energy    float64 //kcal/mol
	SMILES    string
	ClusterNo int //1-based
	SourceID  string
	InitialID int //conformer ID in the generated ensemble
}

//Props returns the record as SD data items, in the order they are written.
func (r Record) Props() []molio.Prop {
	return []molio.Prop{
		{Key: KeyEnergy, Value: molio.FormatFloat(r.Energy)},
		{Key: KeySMILES, Value: r.SMILES},
		{Key: KeyCluster, Value: cast.ToString(r.ClusterNo)},
		{Key: KeySource, Value: r.SourceID},
		{Key: KeyInitialID, Value: cast.ToString(r.InitialID)},
	}
}

//ParseRecord reads a record back from SD data items. Only the energy is
//required; the rest are filled if present.
func ParseRecord(props map[string]string) (Record, error) {
	var r Record
	e, ok := props[KeyEnergy]
	if !ok {
		return r, errors.Newf("no %s data item", KeyEnergy)
	}
	var err error
	if r.Energy, err = cast.ToFloat64E(e); err != nil {
		return r, errors.Wrapf(err, "bad %s value", KeyEnergy)
	}
	r.SMILES = props[KeySMILES]
	r.SourceID = props[KeySource]
	if v, ok := props[KeyCluster]; ok {
		if r.ClusterNo, err = cast.ToIntE(v); err != nil {
			return r, errors.Wrapf(err, "bad %s value", KeyCluster)
		}
	}
	if v, ok := props[KeyInitialID]; ok {
		if r.InitialID, err = cast.ToIntE(v); err != nil {
			return r, errors.Wrapf(err, "bad %s value", KeyInitialID)
		}
	}
	return r, nil
}

//Selection is the outcome of Selector.Write.
type Selection struct {
	ConfIDs   []int //the representative of each cluster, in cluster order
	Records   []Record
	GlobalMin int //index in ConfIDs/Records of the lowest-energy representative
}

//Selector picks one representative per cluster and writes them out.
type Selector struct {
	Engine     engine.Engine
	ForceField engine.ForceField
	Log        *zap.Logger
}

//NewSelector returns a selector using the default force field. log can be nil.
func NewSelector(eng engine.Engine, log *zap.Logger) *Selector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Selector{Engine: eng, ForceField: engine.DefaultForceField(), Log: log}
}

//Select returns the centroid of each cluster and its record. Energies are
//evaluated for the representatives that don't have one yet.
func (S *Selector) Select(ctx context.Context, m *mol.Molecule, clusters [][]int) (Selection, error) {
	var sel Selection
	if len(clusters) == 0 || len(clusters[0]) == 0 {
		return sel, errors.Wrapf(ErrNoConformers, "ligand %s", m.ID)
	}
	first, err := m.WithConformer(clusters[0][0])
	if err != nil {
		return sel, err
	}
	smiles, err := S.Engine.CanonicalSMILES(ctx, first)
	if err != nil {
		return sel, errors.Wrapf(err, "obtaining SMILES for %s", m.ID)
	}
	for n, cl := range clusters {
		if len(cl) == 0 {
			return sel, errors.Newf("cluster %d of %s is empty", n+1, m.ID)
		}
		c, err := m.Conformer(cl[0])
		if err != nil {
			return sel, err
		}
		if !c.HasEnergy {
			e, err := S.Engine.Energy(ctx, m, c.ID, S.ForceField)
			if err != nil {
				return sel, errors.Wrapf(err, "energy of conformer %d of %s", c.ID, m.ID)
			}
			c.SetEnergy(e)
		}
		sel.ConfIDs = append(sel.ConfIDs, c.ID)
		sel.Records = append(sel.Records, Record{
			Energy:    c.Energy,
			SMILES:    smiles,
			ClusterNo: n + 1,
			SourceID:  m.ID,
			InitialID: c.ID,
		})
	}
	energies := lo.Map(sel.Records, func(r Record, _ int) float64 { return r.Energy })
	sel.GlobalMin = floats.MinIdx(energies) //the first of equal minima
	return sel, nil
}

//Write selects the representatives of the clusters and writes them all to the
//ensemble SD file, and the lowest-energy one to the global minimum file. Either
//both files are written, or neither is touched.
func (S *Selector) Write(ctx context.Context, m *mol.Molecule, clusters [][]int, ensemblePath, globalMinPath string) (Selection, error) {
	sel, err := S.Select(ctx, m, clusters)
	if err != nil {
		return sel, err
	}
	ens, err := molio.NewSDWriter(ensemblePath)
	if err != nil {
		return sel, err
	}
	gm, err := molio.NewSDWriter(globalMinPath)
	if err != nil {
		ens.Abort()
		return sel, err
	}
	fail := func(err error) (Selection, error) {
		ens.Abort()
		gm.Abort()
		return sel, err
	}
	for i, id := range sel.ConfIDs {
		if err := ens.Write(m, id, sel.Records[i].Props()); err != nil {
			return fail(err)
		}
	}
	if err := gm.Write(m, sel.ConfIDs[sel.GlobalMin], sel.Records[sel.GlobalMin].Props()); err != nil {
		return fail(err)
	}
	if err := ens.Close(); err != nil {
		gm.Abort()
		return sel, errors.Wrapf(err, "closing %s", ensemblePath)
	}
	if err := gm.Close(); err != nil {
		//the new ensemble must not be paired with an older global minimum file
		os.Remove(ens.Path())
		return sel, errors.Wrapf(err, "closing %s", globalMinPath)
	}
	S.Log.Info("ensemble written",
		zap.String("ligand", m.ID),
		zap.Int("representatives", len(sel.ConfIDs)),
		zap.Float64("lowest", sel.Records[sel.GlobalMin].Energy),
		zap.String("file", ens.Path()))
	return sel, nil
}
