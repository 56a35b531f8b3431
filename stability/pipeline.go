/*
 * pipeline.go, part of ligstab
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
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/rmera/ligstab/engine"
	"github.com/rmera/ligstab/ensemble"
	"github.com/rmera/ligstab/logutil"
	"github.com/rmera/ligstab/metrics"
	"github.com/rmera/ligstab/molio"
)

//ErrMissingEnsemble is returned when the features are to be computed from a
//previously generated ensemble that is not there.
var ErrMissingEnsemble = errors.New("no previously generated ensemble")

//Mode selects whether the pipeline may generate ensembles.
type Mode string

const (
	//ModeGenerate generates the ensemble, unless a previous one can be used,
	//then computes the features.
	ModeGenerate Mode = "generate"
	//ModeCompute only computes the features, from a previously generated ensemble.
	ModeCompute Mode = "compute"
)

//ParseMode returns the mode named s.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeGenerate, ModeCompute:
		return Mode(s), nil
	}
	return "", errors.Newf("unknown mode %q, use %q or %q", s, ModeGenerate, ModeCompute)
}

//Clustering threshold for the ensemble, in A.
const DefaultThreshold = 0.5

//Options controls a Pipeline.
type Options struct {
	DataDir    string //relative file names are taken from here
	Mode       Mode
	Force      bool //regenerate ensembles even if they exist
	NumConfs   int
	Threshold  float64
	Seed       int64
	PruneRMS   float64
	ForceField engine.ForceField
	//Also write the minimized native pose next to the native pose file.
	WriteLocalMin bool
	AddHydrogens  bool
	//Regenerate previous ensembles that can't be read back. Otherwise
	//their existence is enough to use them.
	ValidateCache bool
}

//DefaultOptions returns the options used unless told otherwise.
func DefaultOptions() Options {
	ep := engine.DefaultEmbedParams()
	return Options{
		DataDir:       ".",
		Mode:          ModeGenerate,
		NumConfs:      ep.NumConfs,
		Threshold:     DefaultThreshold,
		Seed:          ep.RandomSeed,
		PruneRMS:      ep.PruneRMS,
		ForceField:    engine.DefaultForceField(),
		WriteLocalMin: true,
	}
}

//Request is one ligand to be processed.
type Request struct {
	ID     string
	Native string //the native pose
	//The structure to build the ensemble from. If empty, the native pose is used.
	Source  string
	DataDir string //overrides Options.DataDir if not empty
}

//EnsemblePath is the file for the ensemble of the ligand id.
func EnsemblePath(dir, id string) string {
	return filepath.Join(dir, id+"_ligand_confs.sdf")
}

//GlobalMinPath is the file for the global minimum of the ligand id.
func GlobalMinPath(dir, id string) string {
	return filepath.Join(dir, id+"_ligand_global_min.sdf")
}

//Pipeline computes the stability features of ligands. It is not safe for
//concurrent use, as its engine might not be.
type Pipeline struct {
	Engine  engine.Engine
	Reader  *molio.Reader
	Options Options
	Log     *zap.Logger
}

//New returns a pipeline. log can be nil.
func New(eng engine.Engine, r *molio.Reader, opts Options, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	if r == nil {
		r = &molio.Reader{}
	}
	return &Pipeline{Engine: eng, Reader: r, Options: opts, Log: log.With(logutil.Component("pipeline"))}
}

func (P *Pipeline) dataDir(req Request) (string, error) {
	dir := req.DataDir
	if dir == "" {
		dir = P.Options.DataDir
	}
	if dir == "" {
		dir = "."
	}
	return filepath.Abs(dir)
}

func resolve(dir, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

func exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

//IsInputError returns true if err is due to the files given, rather than
//to a failure in the calculations.
func IsInputError(err error) bool {
	return errors.IsAny(err, ErrUnsupportedType, ErrMissingEnsemble, molio.ErrUnknownType, molio.ErrParse)
}

//Run computes the features for the ligand in req, and writes them as one line to out,
//which is not closed. The ensemble is generated first if needed and allowed.
//An unsupported native pose is detected before any file is written.
func (P *Pipeline) Run(ctx context.Context, req Request, out io.Writer) (rec FeatureRecord, err error) {
	log := P.Log.With(logutil.Ligand(req.ID))
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("ligand %s: unexpected failure: %v", req.ID, r)
		}
		switch {
		case err == nil:
			metrics.LigandsTotal.WithLabelValues(metrics.SuccessLabel).Inc()
		case IsInputError(err):
			metrics.LigandsTotal.WithLabelValues(metrics.InputLabel).Inc()
		default:
			metrics.LigandsTotal.WithLabelValues(metrics.FailLabel).Inc()
		}
	}()
	dir, err := P.dataDir(req)
	if err != nil {
		return rec, err
	}
	native := resolve(dir, req.Native)
	if _, err := NativeType(native); err != nil {
		return rec, err
	}
	if err := P.ensure(ctx, req, dir, native, log); err != nil {
		return rec, err
	}
	t := metrics.Stage(metrics.NativeStage)
	n, err := EvaluateNative(ctx, P.Engine, P.Reader, native, P.Options.ForceField, log)
	t.ObserveDuration()
	if err != nil {
		return rec, err
	}
	log.Info("native pose minimized", zap.Float64("energy", n.Energy))
	if P.Options.WriteLocalMin {
		if err := WriteLocalMin(ctx, P.Engine, n); err != nil {
			log.Warn("could not write the minimized native pose", zap.Error(err))
		}
	}
	t = metrics.Stage(metrics.FeatureStage)
	rec, err = ComputeFeatures(ctx, P.Engine, req.ID, n, GlobalMinPath(dir, req.ID), log)
	t.ObserveDuration()
	if err != nil {
		return rec, err
	}
	if _, err := fmt.Fprintln(out, rec.String()); err != nil {
		return rec, errors.Wrapf(err, "writing features for %s", req.ID)
	}
	log.Info("features computed", zap.Float64("gap", rec.EnergyGap), zap.Bool("rmsd", rec.HasRMSD), zap.Float64("value", rec.RMSD))
	return rec, nil
}

//ensure makes sure the ensemble files for req exist, generating them if the mode allows it.
func (P *Pipeline) ensure(ctx context.Context, req Request, dir, native string, log *zap.Logger) error {
	ens, gm := EnsemblePath(dir, req.ID), GlobalMinPath(dir, req.ID)
	if P.Options.Mode == ModeCompute {
		if !exists(gm) {
			return errors.Wrapf(ErrMissingEnsemble, "%s", gm)
		}
		return nil
	}
	if !P.Options.Force && exists(ens) && exists(gm) {
		if !P.Options.ValidateCache || P.valid(ens, gm, log) {
			metrics.CacheHits.Inc()
			log.Info("using previously generated ensemble", zap.String("file", ens))
			return nil
		}
	}
	source := native
	if req.Source != "" {
		source = resolve(dir, req.Source)
	}
	return P.Generate(ctx, req.ID, source, ens, gm, log)
}

//valid returns true if both ensemble files can be read back, with their annotations.
func (P *Pipeline) valid(ens, gm string, log *zap.Logger) bool {
	for _, name := range []string{ens, gm} {
		if _, _, err := ReadEnsemble(name); err != nil {
			log.Warn("previously generated file is not valid, regenerating", zap.String("file", name), zap.Error(err))
			return false
		}
	}
	return true
}

//Generate builds the ensemble for the ligand id from the structure in source, and
//writes it to the ens and gm files. log can be nil.
func (P *Pipeline) Generate(ctx context.Context, id, source, ens, gm string, log *zap.Logger) error {
	if log == nil {
		log = P.Log.With(logutil.Ligand(id))
	}
	m, err := P.Reader.Read(ctx, source)
	if err != nil {
		return errors.Wrap(err, "reading ensemble source structure")
	}
	m.ID = id
	gen := ensemble.NewGenerator(P.Engine, log)
	gen.Embed.RandomSeed = P.Options.Seed
	gen.Embed.PruneRMS = P.Options.PruneRMS
	gen.ForceField = P.Options.ForceField
	gen.AddHydrogens = P.Options.AddHydrogens
	if m, err = gen.Prepare(ctx, m); err != nil {
		return err
	}
	t := metrics.Stage(metrics.GenerateStage)
	ids, err := gen.Generate(ctx, m, P.Options.NumConfs)
	t.ObserveDuration()
	if err != nil {
		return err
	}
	metrics.Conformers.Observe(float64(len(ids)))

	t = metrics.Stage(metrics.ClusterStage)
	clusters, err := ensemble.Cluster(m, P.Engine, P.Options.Threshold)
	t.ObserveDuration()
	if err != nil {
		return err
	}
	metrics.Clusters.Observe(float64(len(clusters)))
	log.Info("conformers clustered", zap.Int("conformers", len(ids)), zap.Int("clusters", len(clusters)))

	sel := ensemble.NewSelector(P.Engine, log)
	sel.ForceField = P.Options.ForceField
	t = metrics.Stage(metrics.SelectStage)
	_, err = sel.Write(ctx, m, clusters, ens, gm)
	t.ObserveDuration()
	return err
}

//Stats minimizes the native pose in req and counts the conformers of its
//previously generated ensemble that are accessible, and those below the native
//local minimum.
func (P *Pipeline) Stats(ctx context.Context, req Request, window float64) (States, error) {
	dir, err := P.dataDir(req)
	if err != nil {
		return States{}, err
	}
	native := resolve(dir, req.Native)
	if _, err := NativeType(native); err != nil {
		return States{}, err
	}
	ens := EnsemblePath(dir, req.ID)
	if !exists(ens) {
		return States{}, errors.Wrapf(ErrMissingEnsemble, "%s", ens)
	}
	n, err := EvaluateNative(ctx, P.Engine, P.Reader, native, P.Options.ForceField, P.Log.With(logutil.Ligand(req.ID)))
	if err != nil {
		return States{}, err
	}
	return CountStates(ens, n.Energy, window)
}
