/*
 * type.go, part of ligstab
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

//Package molio reads and writes the molecular file formats ligstab deals with:
//SDF (with data items), Tripos mol2, PDB and SMILES.
package molio

import (
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	//ErrUnknownType is returned for files whose extension is not a supported format.
	ErrUnknownType = errors.New("unrecognized file type")
	//ErrParse marks errors that come from malformed files.
	ErrParse = errors.New("could not parse structure")
)

type FileType int

const (
	Unknown FileType = iota
	MOL2
	SDF
	PDB
	SMILES
)

func (t FileType) String() string {
	switch t {
	case MOL2:
		return "mol2"
	case SDF:
		return "sdf"
	case PDB:
		return "pdb"
	case SMILES:
		return "smile"
	}
	return "Wrong Type"
}

//Extension returns whatever is written after the last dot in the base name
//of the file, or "" if there is no dot.
func Extension(name string) string {
	base := filepath.Base(name)
	i := strings.LastIndex(base, ".")
	if i < 0 {
		return ""
	}
	return base[i+1:]
}

//Type returns the type of the file from its extension. The match is exact and
//case-sensitive, so "lig.SDF" is Unknown.
func Type(name string) FileType {
	switch Extension(name) {
	case "mol2":
		return MOL2
	case "sdf":
		return SDF
	case "pdb":
		return PDB
	case "smi", "smiles":
		return SMILES
	}
	return Unknown
}

//TrimExtension returns name without its extension (the final dot included).
func TrimExtension(name string) string {
	dir, base := filepath.Split(name)
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	return dir + base
}
