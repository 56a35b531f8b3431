/*
 * config.go, part of ligstab
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

package main

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rmera/ligstab/engine"
	"github.com/rmera/ligstab/stability"
)

const envPrefix = "LIGSTAB"

//settings is everything that can be given in the config file, the environment
//or the command line.
type settings struct {
	Options     stability.Options
	XTB         string
	Obabel      string
	Obrms       string
	Workers     int
	Verbose     int
	MetricsAddr string
}

//addConfigFlags adds the flags shared by all commands.
func addConfigFlags(cmd *cobra.Command) {
	def := stability.DefaultOptions()
	f := cmd.PersistentFlags()
	f.String("config", "", "YAML configuration file (default: ligstab.yaml in the working directory, if present)")
	f.IntP("verbose", "v", 1, "Level of verbosity")
	f.String("data-dir", def.DataDir, "Directory for the ensemble files, and for relative input paths")
	f.String("mode", string(def.Mode), "'generate' to build missing ensembles, 'compute' to only use existing ones")
	f.Bool("force", false, "Regenerate ensembles even if they exist")
	f.Int("num-confs", def.NumConfs, "Number of conformers to generate")
	f.Float64("threshold", def.Threshold, "RMSD threshold (A) for clustering conformers")
	f.Int64("seed", def.Seed, "Random seed for conformer generation")
	f.Float64("prune-rms", def.PruneRMS, "Conformers closer than this heavy-atom RMSD (A) to a kept one are discarded")
	f.Float64("dielectric", def.ForceField.Dielectric, "Dielectric constant for minimizations")
	f.Int("max-iters", def.ForceField.MaxIters, "Maximum minimization iterations")
	f.String("xtb", "xtb", "xtb executable")
	f.String("obabel", "obabel", "Open Babel executable")
	f.String("obrms", "obrms", "Open Babel obrms executable")
	f.Bool("local-min", def.WriteLocalMin, "Write the minimized native pose next to the native pose file")
	f.Bool("validate-cache", false, "Regenerate existing ensemble files that can't be read back")
	f.Bool("add-hydrogens", false, "Add explicit hydrogens before generating conformers")
}

//configKeys are the viper keys set from the shared flags, named as the flags,
//with underscores.
var configKeys = []string{
	"verbose", "data_dir", "mode", "force", "num_confs", "threshold", "seed", "prune_rms",
	"dielectric", "max_iters", "xtb", "obabel", "obrms", "local_min", "validate_cache", "add_hydrogens",
}

func flagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

//newViper returns a viper instance with the flags of cmd bound, the environment
//variables read and the config file, if any, loaded.
func newViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for _, key := range append(configKeys, "workers", "metrics_addr") {
		fl := cmd.Flags().Lookup(flagName(key))
		if fl == nil {
			continue //not a flag of this command
		}
		if err := v.BindPFlag(key, fl); err != nil {
			return nil, errors.Wrapf(err, "binding flag %s", fl.Name)
		}
	}
	cfgfile, _ := cmd.Flags().GetString("config")
	if cfgfile != "" {
		v.SetConfigFile(cfgfile)
	} else {
		v.SetConfigName("ligstab")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notfound viper.ConfigFileNotFoundError
		if cfgfile != "" || !errors.As(err, &notfound) {
			return nil, errors.Wrap(err, "reading configuration")
		}
	}
	return v, nil
}

//loadSettings reads the settings from v, with the defaults for what is not set.
func loadSettings(v *viper.Viper) (settings, error) {
	def := stability.DefaultOptions()
	v.SetDefault("verbose", 1)
	v.SetDefault("data_dir", def.DataDir)
	v.SetDefault("mode", string(def.Mode))
	v.SetDefault("num_confs", def.NumConfs)
	v.SetDefault("threshold", def.Threshold)
	v.SetDefault("seed", def.Seed)
	v.SetDefault("prune_rms", def.PruneRMS)
	v.SetDefault("dielectric", def.ForceField.Dielectric)
	v.SetDefault("max_iters", def.ForceField.MaxIters)
	v.SetDefault("xtb", "xtb")
	v.SetDefault("obabel", "obabel")
	v.SetDefault("obrms", "obrms")
	v.SetDefault("local_min", def.WriteLocalMin)
	v.SetDefault("workers", 1)

	var s settings
	mode, err := stability.ParseMode(v.GetString("mode"))
	if err != nil {
		return s, err
	}
	s.Options = stability.Options{
		DataDir:   v.GetString("data_dir"),
		Mode:      mode,
		Force:     v.GetBool("force"),
		NumConfs:  v.GetInt("num_confs"),
		Threshold: v.GetFloat64("threshold"),
		Seed:      v.GetInt64("seed"),
		PruneRMS:  v.GetFloat64("prune_rms"),
		ForceField: engine.ForceField{
			Dielectric: v.GetFloat64("dielectric"),
			MaxIters:   v.GetInt("max_iters"),
		},
		WriteLocalMin: v.GetBool("local_min"),
		AddHydrogens:  v.GetBool("add_hydrogens"),
		ValidateCache: v.GetBool("validate_cache"),
	}
	s.XTB = v.GetString("xtb")
	s.Obabel = v.GetString("obabel")
	s.Obrms = v.GetString("obrms")
	s.Workers = v.GetInt("workers")
	s.Verbose = v.GetInt("verbose")
	s.MetricsAddr = v.GetString("metrics_addr")
	switch {
	case s.Options.NumConfs < 1:
		return s, errors.Newf("num_confs must be positive, got %d", s.Options.NumConfs)
	case s.Options.Threshold < 0:
		return s, errors.Newf("threshold can't be negative, got %g", s.Options.Threshold)
	case s.Options.ForceField.MaxIters < 1:
		return s, errors.Newf("max_iters must be positive, got %d", s.Options.ForceField.MaxIters)
	case s.Workers < 1:
		return s, errors.Newf("workers must be positive, got %d", s.Workers)
	}
	return s, nil
}
