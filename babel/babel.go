/*
 * babel.go, part of ligstab
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

//Package babel runs the Open Babel command line programs used by ligstab
//(obabel and obrms). Every call is given absolute paths and a working
//directory of its own, so concurrent calls never share state.
package babel

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

var ErrNotFound = errors.New("open babel executable not found")

//Babel knows where the Open Babel executables are.
type Babel struct {
	Obabel string
	Obrms  string
}

//New returns a Babel with the given executables. Empty names
//default to "obabel" and "obrms", looked up in the PATH.
func New(obabel, obrms string) *Babel {
	if obabel == "" {
		obabel = "obabel"
	}
	if obrms == "" {
		obrms = "obrms"
	}
	return &Babel{Obabel: obabel, Obrms: obrms}
}

func run(ctx context.Context, dir, exe string, args ...string) (string, error) {
	path, err := exec.LookPath(exe)
	if err != nil {
		return "", errors.Mark(errors.Wrapf(err, "looking for %s", exe), ErrNotFound)
	}
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", errors.Wrapf(err, "%s %s: %s", exe, strings.Join(args, " "), strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

//Convert converts the file in, of format informat, to the file out, of format outformat.
//Extra obabel options (such as "--gen3d" or "-h") can be given.
func (B *Babel) Convert(ctx context.Context, dir, in, informat, out, outformat string, options ...string) error {
	args := append([]string{"-i" + informat, in, "-o" + outformat, "-O", out}, options...)
	_, err := run(ctx, dir, B.Obabel, args...)
	return err
}

//CanonicalSMILES returns the Open Babel canonical SMILES for the first molecule in the
//file in, of format informat.
func (B *Babel) CanonicalSMILES(ctx context.Context, dir, in, informat string) (string, error) {
	out, err := run(ctx, dir, B.Obabel, "-i"+informat, in, "-ocan", "-l", "1")
	if err != nil {
		return "", err
	}
	return ParseSMILES(out)
}

//ParseSMILES extracts the SMILES string from the output of obabel -ocan (the SMILES is
//followed, tab-separated, by the title of the molecule).
func ParseSMILES(out string) (string, error) {
	for _, line := range strings.Split(out, "\n") {
		f := strings.Fields(line)
		if len(f) > 0 {
			return f[0], nil
		}
	}
	return "", errors.New("obabel produced no SMILES")
}

//BestRMS returns the symmetry-corrected, minimized RMSD between the first structures in the
//files ref and test, as computed by obrms. Hydrogens present in the files are
//considered by obrms, so callers wanting heavy-atom RMSDs should give it files without them.
func (B *Babel) BestRMS(ctx context.Context, dir, ref, test string) (float64, error) {
	out, err := run(ctx, dir, B.Obrms, "-m", "-f", ref, test)
	if err != nil {
		return 0, err
	}
	return ParseRMS(out)
}

//ParseRMS reads obrms output, with lines like "RMSD ref:test 0.123". Only the first
//line is considered.
func ParseRMS(out string) (float64, error) {
	for _, line := range strings.Split(out, "\n") {
		f := strings.Fields(line)
		if len(f) < 2 || f[0] != "RMSD" {
			continue
		}
		rms, err := strconv.ParseFloat(f[len(f)-1], 64)
		if err != nil {
			return 0, errors.Wrapf(err, "malformed obrms line %q", line)
		}
		return rms, nil
	}
	return 0, errors.Newf("no RMSD in obrms output: %q", strings.TrimSpace(out))
}
