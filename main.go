/*
 * main.go, part of ligstab
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

/*To the long life of the Ven. Khenpo Phuntzok Tenzin Rinpoche*/

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rmera/ligstab/babel"
	"github.com/rmera/ligstab/engine"
	"github.com/rmera/ligstab/logutil"
	"github.com/rmera/ligstab/molio"
	"github.com/rmera/ligstab/stability"
)

//counts the warnings and errors logged, which are summarized at the end.
var warnings = atomic.NewInt64(0)

func countWarnings(e zapcore.Entry) error {
	if e.Level >= zapcore.WarnLevel {
		warnings.Inc()
	}
	return nil
}

//app is what the commands need to process ligands.
type app struct {
	settings settings
	log      *zap.Logger
	//newEngine builds the engine for one pipeline.
	newEngine func() engine.Engine
	reader    *molio.Reader
}

//newPipeline returns a pipeline with its own engine.
func (a *app) newPipeline() *stability.Pipeline {
	return stability.New(a.newEngine(), a.reader, a.settings.Options, a.log)
}

//setup reads the configuration for cmd and builds the logger and engines from it.
func setup(cmd *cobra.Command) (*app, error) {
	v, err := newViper(cmd)
	if err != nil {
		return nil, err
	}
	s, err := loadSettings(v)
	if err != nil {
		return nil, err
	}
	log, err := logutil.New(s.Verbose, zap.Hooks(countWarnings))
	if err != nil {
		return nil, err
	}
	b := babel.New(s.Obabel, s.Obrms)
	return &app{
		settings: s,
		log:      log,
		reader:   &molio.Reader{Babel: b},
		newEngine: func() engine.Engine {
			return engine.NewXTB(s.XTB, b, log.With(logutil.Component("xtb")))
		},
	}, nil
}

//output returns the writer for the features: stdout for "-" or "", otherwise
//the file name, opened for appending.
func output(name string) (io.WriteCloser, error) {
	if name == "" || name == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "opening output file")
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func newRunCmd() *cobra.Command {
	var id, native, source, out string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compute the stability features of one ligand",
		Long: `Compute the energy gap between the local minimum of the native pose and the
global minimum of the ligand's conformer ensemble, and the heavy-atom RMSD between
them. The ensemble is generated, unless it was before. Writes "id,gap,rmsd".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.log.Sync()
			w, err := output(out)
			if err != nil {
				return err
			}
			defer w.Close()
			req := stability.Request{ID: id, Native: native, Source: source}
			_, err = a.newPipeline().Run(cmd.Context(), req, w)
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&id, "id", "", "ID of the ligand, used to name the ensemble files")
	f.StringVar(&native, "native", "", "Native (crystal or docked) pose: mol2, sdf or pdb")
	f.StringVar(&source, "source", "", "Structure to generate the ensemble from, if not the native pose (mol2, sdf, pdb or smi)")
	f.StringVarP(&out, "out", "o", "-", "File to append the features to")
	cmd.MarkFlagRequired("id")
	cmd.MarkFlagRequired("native")
	return cmd
}

func newBatchCmd() *cobra.Command {
	var list, out string
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Compute the stability features of all the ligands in a list",
		Long: `Compute the stability features for each ligand in a list file, in parallel.
Each line of the list has the ligand ID, its native pose and, optionally, its data
directory. Blank lines and lines starting with # are ignored. A failed ligand
doesn't stop the others.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.log.Sync()
			reqs, err := ParseLigandList(list)
			if err != nil {
				return err
			}
			if a.settings.MetricsAddr != "" {
				stop := serveMetrics(a.settings.MetricsAddr, a.log)
				defer stop()
			}
			w, err := output(out)
			if err != nil {
				return err
			}
			defer w.Close()
			return runBatch(cmd.Context(), reqs, a.newPipeline, w, a.settings.Workers, a.log)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&list, "list", "l", "", "Ligand list file")
	f.StringVarP(&out, "out", "o", "-", "File to append the features to")
	f.IntP("workers", "j", 1, "Ligands processed in parallel")
	f.String("metrics-addr", "", "Serve prometheus metrics at this address (e.g. :9090) while running")
	cmd.MarkFlagRequired("list")
	return cmd
}

func newStatsCmd() *cobra.Command {
	var id, native string
	var window float64
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Count the ensemble conformers near the global minimum and below the native pose",
		Long: `Minimize the native pose and count, in the previously generated ensemble, the
conformers within the window of the lowest energy, and those lower in energy than the
minimized native pose. Writes "id,total,near_minimum,below_native".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			defer a.log.Sync()
			s, err := a.newPipeline().Stats(cmd.Context(), stability.Request{ID: id, Native: native}, window)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s,%d,%d,%d\n", id, s.Total, s.NearMinimum, s.BelowNative)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&id, "id", "", "ID of the ligand")
	f.StringVar(&native, "native", "", "Native pose: mol2, sdf or pdb")
	f.Float64Var(&window, "window", stability.DefaultWindow, "Energy window (kcal/mol) above the global minimum")
	cmd.MarkFlagRequired("id")
	cmd.MarkFlagRequired("native")
	return cmd
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ligstab",
		Short: "Ligand stability features from conformer ensembles",
		Long: `ligstab estimates how favorable a native ligand pose is, compared with the
conformers the ligand can adopt. It generates and clusters a conformer ensemble,
finds its global minimum, minimizes the native pose, and reports the energy gap
and the heavy-atom RMSD between both minima.`,
		SilenceUsage: true,
	}
	addConfigFlags(root)
	root.AddCommand(newRunCmd(), newBatchCmd(), newStatsCmd())
	return root
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	err := newRootCmd().ExecuteContext(ctx)
	if n := warnings.Load(); n > 0 {
		fmt.Fprintf(os.Stderr, "%d warnings or errors were logged\n", n)
	}
	if err != nil {
		cancel()
		os.Exit(1)
	}
}
