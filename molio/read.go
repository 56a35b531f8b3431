/*
 * read.go, part of ligstab
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

package molio

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/rmera/ligstab/babel"
	"github.com/rmera/ligstab/mol"
)

//Reader reads a molecule from any of the supported formats. SMILES files
//need Open Babel to obtain a 3D structure; the other formats are read natively.
type Reader struct {
	Babel *babel.Babel
}

//Read returns the first molecule in the file name, with exactly one conformer.
//The molecule ID is the base name of the file, without extension.
func (R *Reader) Read(ctx context.Context, name string) (*mol.Molecule, error) {
	var m *mol.Molecule
	var err error
	switch Type(name) {
	case SDF:
		var ms []*mol.Molecule
		ms, err = ReadSDF(name)
		if err == nil {
			m = ms[0]
		}
	case MOL2:
		m, err = ReadMol2(name)
	case PDB:
		m, err = ReadPDB(name)
	case SMILES:
		m, err = R.ReadSMILES(ctx, name)
	default:
		return nil, errors.Mark(errors.Newf("%s: extension %q", name, Extension(name)), ErrUnknownType)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

//ReadSMILES builds a 3D structure, with hydrogens, for the first SMILES in the file name.
func (R *Reader) ReadSMILES(ctx context.Context, name string) (*mol.Molecule, error) {
	if R.Babel == nil {
		return nil, errors.New("reading SMILES requires Open Babel")
	}
	abs, err := filepath.Abs(name)
	if err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp("", "ligstab-smi-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)
	out := filepath.Join(dir, "gen3d.sdf")
	if err := R.Babel.Convert(ctx, dir, abs, "smi", out, "sdf", "--gen3d", "-h", "-l", "1"); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "building 3D structure for %s", name), ErrParse)
	}
	ms, err := ReadSDF(out)
	if err != nil {
		return nil, err
	}
	m := ms[0]
	m.ID = filepath.Base(TrimExtension(name))
	return m, nil
}
