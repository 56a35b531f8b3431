/*
 * molio_test.go, part of ligstab
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
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmera/ligstab/mol"
)

const ethanolSDF = `ethanol
  RDKit          3D

  9  8  0  0  0  0  0  0  0  0999 V2000
   -0.8883    0.1670   -0.0273 C   0  0  0  0  0  0  0  0  0  0  0  0
    0.4658   -0.4994   -0.0091 C   0  0  0  0  0  0  0  0  0  0  0  0
    1.4479    0.5061    0.0112 O   0  0  0  0  0  0  0  0  0  0  0  0
   -0.9431    0.8520   -0.8948 H   0  0  0  0  0  0  0  0  0  0  0  0
   -1.0469    0.7491    0.9031 H   0  0  0  0  0  0  0  0  0  0  0  0
   -1.6887   -0.5816   -0.0785 H   0  0  0  0  0  0  0  0  0  0  0  0
    0.5752   -1.1501    0.8768 H   0  0  0  0  0  0  0  0  0  0  0  0
    0.5978   -1.1106   -0.9106 H   0  0  0  0  0  0  0  0  0  0  0  0
    2.3098    0.0426    0.0220 H   0  0  0  0  0  0  0  0  0  0  0  0
  1  2  1  0
  2  3  1  0
  1  4  1  0
  1  5  1  0
  1  6  1  0
  2  7  1  0
  2  8  1  0
  3  9  1  0
M  END
> <energy_abs>
-3.25

> <note>
first line
second line

$$$$

  RDKit          3D

  1  0  0  0  0  0  0  0  0  0999 V2000
    0.0000    0.0000    0.0000 N   0  0  0  0  0  0  0  0  0  0  0  0
M  CHG  1   1   1
M  END
$$$$
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestType(t *testing.T) {
	cases := map[string]FileType{
		"lig.mol2":           MOL2,
		"/a/b.c/lig.sdf":     SDF,
		"x.pdb":              PDB,
		"x.smi":              SMILES,
		"ligand.xyz":         Unknown,
		"lig.SDF":            Unknown,
		"/data/v1.2/ligand":  Unknown,
		"1abc_ligand.mol2.x": Unknown,
		"/data/sdf":          Unknown,
		"pdb":                Unknown,
	}
	for name, want := range cases {
		assert.Equal(t, want, Type(name), name)
	}
	assert.Equal(t, "/a/b.c/lig", TrimExtension("/a/b.c/lig.sdf"))
	assert.Equal(t, "/a/b.c/lig", TrimExtension("/a/b.c/lig"))
	assert.Equal(t, "", Extension("/data/v1.2/sdf"))
	assert.Equal(t, "gz", Extension("lig.sdf.gz"))
}

func TestDataKey(t *testing.T) {
	assert.Equal(t, "energy_abs", dataKey("> <energy_abs> (1)"))
	assert.Equal(t, "SMILE", dataKey(">  <SMILE>"))
	assert.Equal(t, "", dataKey("> energy_abs"))
	assert.Equal(t, "", dataKey("> <energy_abs"))
	assert.Equal(t, "", dataKey(">"))
}

func TestReadSDF(t *testing.T) {
	p := writeFile(t, "1abc_ligand.sdf", ethanolSDF)
	ms, err := ReadSDF(p)
	require.NoError(t, err)
	require.Len(t, ms, 2)

	e := ms[0]
	assert.Equal(t, "1abc_ligand", e.ID)
	assert.Equal(t, "ethanol", e.Name)
	assert.Equal(t, 9, e.Len())
	assert.Len(t, e.Bonds, 8)
	assert.Equal(t, []int{0, 1, 2}, e.HeavyAtoms())
	assert.Equal(t, "-3.25", e.Props["energy_abs"])
	assert.Equal(t, "first line\nsecond line", e.Props["note"])
	assert.InDelta(t, 2.3098, e.Conformers()[0].Coords.At(8, 0), 1e-9)

	n := ms[1]
	assert.Equal(t, "", n.Name)
	assert.Equal(t, 1, n.Atoms[0].Charge)
}

func TestSDRoundTrip(t *testing.T) {
	p := writeFile(t, "in.sdf", ethanolSDF)
	ms, err := ReadSDF(p)
	require.NoError(t, err)
	ms[0].Atoms[2].Charge = -1

	out := filepath.Join(t.TempDir(), "out.sdf")
	w, err := NewSDWriter(out)
	require.NoError(t, err)
	props := []Prop{{"energy_abs", "-1.5"}, {"SMILE", "CC[O-]"}, {"cluster_no", "1"}}
	require.NoError(t, w.Write(ms[0], 0, props))
	require.NoError(t, w.Write(ms[1], 0, nil))
	assert.Equal(t, 2, w.Count())
	_, err = os.Stat(out)
	assert.True(t, os.IsNotExist(err), "nothing is visible before Close")
	require.NoError(t, w.Close())

	back, err := ReadSDF(out)
	require.NoError(t, err)
	require.Len(t, back, 2)
	assert.Equal(t, ms[0].Bonds, back[0].Bonds)
	assert.Equal(t, -1, back[0].Atoms[2].Charge)
	assert.Equal(t, "CC[O-]", back[0].Props["SMILE"])
	assert.Equal(t, "1", back[0].Props["cluster_no"])
	assert.InDelta(t, -1.6887, back[0].Conformers()[0].Coords.At(5, 0), 1e-4)
	assert.Equal(t, 1, back[1].Atoms[0].Charge)

	entries, err := os.ReadDir(filepath.Dir(out))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestSDWriterAbort(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "aborted.sdf")
	ms, err := ReadSDF(writeFile(t, "in.sdf", ethanolSDF))
	require.NoError(t, err)
	w, err := NewSDWriter(out)
	require.NoError(t, err)
	require.NoError(t, w.Write(ms[0], 0, nil))
	w.Abort()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReadSDFErrors(t *testing.T) {
	_, err := ReadSDF(writeFile(t, "bad.sdf", "title\n\n\n  x  y\n"))
	assert.True(t, errors.Is(err, ErrParse))

	_, err = ReadSDF(writeFile(t, "empty.sdf", "\n\n"))
	assert.True(t, errors.Is(err, ErrParse))

	_, err = ReadSDF(filepath.Join(t.TempDir(), "missing.sdf"))
	assert.Error(t, err)

	_, err = parseSDBond("  1  5  1  0", 3)
	assert.ErrorContains(t, err, "non-existent atom")
	_, _, err = parseSDAtom("    0.0000    x.0000    0.0000 C   0  0")
	assert.ErrorContains(t, err, "malformed coordinate")
}

const benzeneMol2 = `@<TRIPOS>MOLECULE
benzene
 6 6 0 0 0
SMALL
GASTEIGER

@<TRIPOS>ATOM
      1 C1          1.3915    0.0000    0.0000 C.ar    1  LIG1       -0.0618
      2 C2          0.6958    1.2051    0.0000 C.ar    1  LIG1       -0.0618
      3 C3         -0.6958    1.2051    0.0000 C.ar    1  LIG1       -0.0618
      4 C4         -1.3915    0.0000    0.0000 C.ar    1  LIG1       -0.0618
      5 C5         -0.6958   -1.2051    0.0000 C.ar    1  LIG1       -0.0618
      6 Cl6         0.6958   -1.2051    0.0000 Cl      1  LIG1       -0.0618
@<TRIPOS>BOND
     1     1     2   ar
     2     2     3   ar
     3     3     4   ar
     4     4     5   ar
     5     5     6   1
     6     6     1   nc
`

func TestReadMol2(t *testing.T) {
	m, err := ReadMol2(writeFile(t, "3xyz_ligand.mol2", benzeneMol2))
	require.NoError(t, err)
	assert.Equal(t, "3xyz_ligand", m.ID)
	assert.Equal(t, "benzene", m.Name)
	assert.Equal(t, 6, m.Len())
	assert.Equal(t, "Cl", m.Atoms[5].Symbol)
	assert.Equal(t, "C", m.Atoms[0].Symbol)
	assert.Equal(t, []mol.Bond{{A: 0, B: 1, Order: 4}, {A: 1, B: 2, Order: 4}, {A: 2, B: 3, Order: 4}, {A: 3, B: 4, Order: 4}, {A: 4, B: 5, Order: 1}}, m.Bonds)
	assert.InDelta(t, -1.2051, m.Conformers()[0].Coords.At(4, 1), 1e-9)
}

func TestReadLigParGenPDB(t *testing.T) {
	pdb := `REMARK LIGPARGEN GENERATED PDB FILE
ATOM      1  C00 UNK     1      -0.7560   0.0000   0.0000
ATOM      2  O01 UNK     1       0.6660   0.0000   0.0000
ATOM      3  H02 UNK     1       1.0000   0.9000   0.0000
END
`
	m, err := ReadPDB(writeFile(t, "lpg.pdb", pdb))
	require.NoError(t, err)
	assert.Equal(t, 3, m.Len())
	assert.Equal(t, []int{0, 1}, m.HeavyAtoms())
	assert.ElementsMatch(t, []mol.Bond{{A: 0, B: 1, Order: 1}, {A: 1, B: 2, Order: 1}}, m.Bonds)
}

func TestReaderUnknownType(t *testing.T) {
	r := &Reader{}
	p := writeFile(t, "ligand.xyz", "1\n\nC 0 0 0\n")
	_, err := r.Read(context.Background(), p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownType))

	_, err = r.Read(context.Background(), writeFile(t, "lig.smi", "CCO\n"))
	assert.Error(t, err, "SMILES need Open Babel")
}

func TestFormatFloat(t *testing.T) {
	for f, want := range map[float64]string{
		5:         "5.0",
		-50:       "-50.0",
		0:         "0.0",
		-12.5:     "-12.5",
		0.1:       "0.1",
		1.0 / 3.0: "0.3333333333333333",
		1e-5:      "1e-05",
		1e16:      "1e+16",
	} {
		assert.Equal(t, want, FormatFloat(f), "%v", f)
	}
}
