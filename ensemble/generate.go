/*
 * generate.go, part of ligstab
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

//Package ensemble builds the conformer ensemble of a ligand: it generates and
//minimizes conformers, clusters them by heavy-atom RMSD, and writes one
//representative per cluster, plus the global minimum, to SD files.
package ensemble

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/rmera/ligstab/engine"
	"github.com/rmera/ligstab/mol"
)

//ErrNoConformers is returned when no conformer could be generated for a molecule.
var ErrNoConformers = errors.New("no conformers generated")

//Generator produces minimized conformers for a molecule.
type Generator struct {
	Engine     engine.Engine
	Embed      engine.EmbedParams
	ForceField engine.ForceField
	//If true, and the engine can do it, explicit hydrogens are added
	//by Prepare.
	AddHydrogens bool
	Log          *zap.Logger
}

//NewGenerator returns a generator with the default embedding and force field
//parameters. log can be nil.
func NewGenerator(eng engine.Engine, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{
		Engine:     eng,
		Embed:      engine.DefaultEmbedParams(),
		ForceField: engine.DefaultForceField(),
		Log:        log,
	}
}

//Prepare returns the molecule that should be used to generate conformers.
//It is m itself unless hydrogens are to be added.
func (G *Generator) Prepare(ctx context.Context, m *mol.Molecule) (*mol.Molecule, error) {
	if !G.AddHydrogens {
		return m, nil
	}
	adder, ok := G.Engine.(engine.HydrogenAdder)
	if !ok {
		G.Log.Warn("engine can't add hydrogens, using the molecule as given", zap.String("ligand", m.ID))
		return m, nil
	}
	h, err := adder.AddHydrogens(ctx, m)
	if err != nil {
		return nil, errors.Wrapf(err, "adding hydrogens to %s", m.ID)
	}
	G.Log.Debug("hydrogens added", zap.String("ligand", m.ID), zap.Int("before", m.Len()), zap.Int("after", h.Len()))
	return h, nil
}

//Generate replaces the conformers of m with up to k new ones (the default number
//if k<1), and minimizes each of them. It returns the IDs of the new conformers.
//Conformers are sampled in the same medium they are minimized in.
//Minimizations that don't converge are accepted.
func (G *Generator) Generate(ctx context.Context, m *mol.Molecule, k int) ([]int, error) {
	p := G.Embed
	p.Dielectric = G.ForceField.Dielectric
	if k > 0 {
		p.NumConfs = k
	}
	if p.NumConfs < 1 {
		p.NumConfs = engine.DefaultNumConfs
	}
	ids, err := G.Engine.Embed(ctx, m, p)
	if err != nil {
		return nil, errors.Wrapf(err, "embedding conformers for %s", m.ID)
	}
	if len(ids) == 0 {
		return nil, errors.Wrapf(ErrNoConformers, "ligand %s", m.ID)
	}
	G.Log.Info("conformers embedded", zap.String("ligand", m.ID), zap.Int("requested", p.NumConfs), zap.Int("embedded", len(ids)))
	notconv := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_, err := G.Engine.Minimize(ctx, m, id, G.ForceField)
		if errors.Is(err, engine.ErrNotConverged) {
			notconv++
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "minimizing conformer %d of %s", id, m.ID)
		}
	}
	if notconv > 0 {
		G.Log.Debug("some minimizations did not converge", zap.String("ligand", m.ID), zap.Int("conformers", notconv))
	}
	return ids, nil
}
