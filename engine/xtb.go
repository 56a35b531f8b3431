/*
 * xtb.go, part of ligstab
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

package engine

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	chem "github.com/rmera/gochem"
	v3 "github.com/rmera/gochem/v3"
	"go.uber.org/zap"

	"github.com/rmera/ligstab/babel"
	"github.com/rmera/ligstab/mol"
	"github.com/rmera/ligstab/molio"
)

//Hartree to kcal/mol
const H2Kcal = 627.509474

const (
	defMDTemp     = 400.0 //K
	defMDDump     = 50.0  //fs
	defOversample = 2
	defJitter     = 0.05 //A
)

//Dielectric constants for which xtb has an ALPB parametrization.
var alpbSolvents = []struct {
	eps  float64
	name string
}{
	{80.0, "water"},
	{78.4, "water"},
	{46.7, "dmso"},
	{37.5, "acetonitrile"},
	{32.7, "methanol"},
	{24.5, "ethanol"},
	{20.7, "acetone"},
	{8.9, "ch2cl2"},
	{7.5, "thf"},
	{4.8, "chcl3"},
	{2.4, "toluene"},
	{2.0, "hexane"},
}

//SolventFor returns the name of the xtb implicit solvent matching the dielectric constant.
//An empty string means gas phase (dielectric 0 or 1).
func SolventFor(dielectric float64) (string, error) {
	if dielectric == 0 || dielectric == 1 {
		return "", nil
	}
	for _, s := range alpbSolvents {
		if math.Abs(s.eps-dielectric) < 0.05 {
			return s.name, nil
		}
	}
	return "", errors.Newf("no implicit solvent available for dielectric %.2f", dielectric)
}

var (
	energyre      = regexp.MustCompile(`TOTAL ENERGY\s+(-?[0-9]+\.[0-9]+)\s+Eh`)
	cycleEnergyre = regexp.MustCompile(`total energy\s*:\s*(-?[0-9]+\.[0-9]+)\s+Eh`)
)

//notConverged is printed by xtb when an optimization runs out of cycles.
const notConverged = "FAILED TO CONVERGE"

//ParseTotalEnergy returns the last total energy, in kcal/mol, reported in xtb's output.
func ParseTotalEnergy(out string) (float64, error) {
	m := energyre.FindAllStringSubmatch(out, -1)
	if len(m) == 0 {
		return 0, errors.New("no total energy in xtb output")
	}
	e, err := strconv.ParseFloat(m[len(m)-1][1], 64)
	if err != nil {
		return 0, errors.Wrap(err, "malformed total energy in xtb output")
	}
	return e * H2Kcal, nil
}

//parseCycleEnergy returns the energy, in kcal/mol, of the last optimization cycle
//reported in xtb's output. A failed optimization has no final summary.
func parseCycleEnergy(out string) (float64, error) {
	m := cycleEnergyre.FindAllStringSubmatch(out, -1)
	if len(m) == 0 {
		return 0, errors.New("no optimization cycle energy in xtb output")
	}
	e, err := strconv.ParseFloat(m[len(m)-1][1], 64)
	if err != nil {
		return 0, errors.Wrap(err, "malformed cycle energy in xtb output")
	}
	return e * H2Kcal, nil
}

//MDInput returns an xtb detailed input for a molecular dynamics of length time (ps)
//at temp (K), dumping a frame every dump fs.
func MDInput(temp, time, dump float64) string {
	return fmt.Sprintf("$md\n   temp=%.1f\n   time=%.3f\n   dump=%.1f\n   step=1.0\n   hmass=4\n   shake=0\n$end\n", temp, time, dump)
}

//XTB is an Engine that uses the GFN-FF force field, as implemented in the xtb program
//from Prof. Stefan Grimme's group, for minimizations, energies and conformer sampling.
//Conformers are embedded by sampling a high-temperature MD trajectory.
//SMILES and symmetry-corrected RMSDs are obtained from Open Babel.
//Every call runs in a fresh temporary directory, so the process working
//directory is never used.
type XTB struct {
	Geometry
	Exe        string
	Babel      *babel.Babel
	TmpDir     string  //parent for the temporary directories. "" is the system default.
	MDTemp     float64 //K
	MDDump     float64 //fs between sampled frames
	Oversample int     //frames sampled per requested conformer
	Log        *zap.Logger
}

//NewXTB returns an XTB engine. If exe is empty, "xtb" is looked up in the PATH.
func NewXTB(exe string, b *babel.Babel, log *zap.Logger) *XTB {
	if exe == "" {
		exe = "xtb"
	}
	if b == nil {
		b = babel.New("", "")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &XTB{Exe: exe, Babel: b, MDTemp: defMDTemp, MDDump: defMDDump, Oversample: defOversample, Log: log}
}

var (
	_ Engine        = (*XTB)(nil)
	_ HydrogenAdder = (*XTB)(nil)
)

func (X *XTB) workdir() (string, error) {
	return os.MkdirTemp(X.TmpDir, "ligstab-xtb-")
}

//run executes xtb in dir. The output is returned even if xtb fails.
func (X *XTB) run(ctx context.Context, dir string, threads int, args ...string) (string, error) {
	path, err := exec.LookPath(X.Exe)
	if err != nil {
		return "", errors.Wrapf(err, "looking for %s", X.Exe)
	}
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = dir
	if threads > 0 {
		cmd.Env = append(os.Environ(), fmt.Sprintf("OMP_NUM_THREADS=%d", threads))
	}
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	err = cmd.Run()
	if err != nil {
		err = errors.Wrapf(err, "xtb %s: %s", strings.Join(args, " "), lastLine(stderr.String()))
	}
	return out.String(), err
}

func lastLine(s string) string {
	l := strings.Split(strings.TrimSpace(s), "\n")
	return l[len(l)-1]
}

func (X *XTB) commonArgs(m *mol.Molecule, dielectric float64) ([]string, error) {
	args := []string{"--gfnff", "--chrg", strconv.Itoa(m.TotalCharge())}
	solv, err := SolventFor(dielectric)
	if err != nil {
		return nil, err
	}
	if solv != "" {
		args = append(args, "--alpb", solv)
	}
	return args, nil
}

func writeXYZ(name string, coords *v3.Matrix, m *mol.Molecule) error {
	return chem.XYZFileWrite(name, coords, m.Topology())
}

func readXYZ(name string, natoms int) (*v3.Matrix, error) {
	cmol, err := chem.XYZFileRead(name)
	if err != nil {
		return nil, err
	}
	if len(cmol.Coords) == 0 || cmol.Coords[0].NVecs() != natoms {
		return nil, errors.Newf("%s doesn't contain a structure with %d atoms", name, natoms)
	}
	return cmol.Coords[0], nil
}

func setCoords(dst, src *v3.Matrix) {
	for i := 0; i < dst.NVecs(); i++ {
		for j := 0; j < 3; j++ {
			dst.Set(i, j, src.At(i, j))
		}
	}
}

//Minimize optimizes the conformer with GFN-FF, for at most ff.MaxIters cycles.
func (X *XTB) Minimize(ctx context.Context, m *mol.Molecule, confID int, ff ForceField) (float64, error) {
	c, err := m.Conformer(confID)
	if err != nil {
		return 0, err
	}
	dir, err := X.workdir()
	if err != nil {
		return 0, err
	}
	defer os.RemoveAll(dir)
	if err := writeXYZ(filepath.Join(dir, "in.xyz"), c.Coords, m); err != nil {
		return 0, err
	}
	args, err := X.commonArgs(m, ff.Dielectric)
	if err != nil {
		return 0, err
	}
	args = append([]string{"in.xyz", "--opt"}, args...)
	if ff.MaxIters > 0 {
		args = append(args, "--cycles", strconv.Itoa(ff.MaxIters))
	}
	out, runerr := X.run(ctx, dir, 1, args...)
	if err := ctx.Err(); err != nil {
		return 0, errors.Wrapf(err, "minimizing conformer %d of %s", confID, m.ID)
	}
	notconv := strings.Contains(out, notConverged)
	if runerr != nil && !notconv {
		return 0, runerr
	}
	geo := filepath.Join(dir, "xtbopt.xyz")
	if notconv {
		//xtb leaves the last geometry of a failed optimization here.
		geo = filepath.Join(dir, "xtblast.xyz")
	}
	opt, err := readXYZ(geo, m.Len())
	if err != nil {
		return 0, err
	}
	e, err := ParseTotalEnergy(out)
	if err != nil && notconv {
		e, err = parseCycleEnergy(out)
	}
	if err != nil {
		return 0, err
	}
	setCoords(c.Coords, opt)
	if notconv {
		X.Log.Debug("xtb optimization did not converge", zap.String("molecule", m.ID), zap.Int("conformer", confID))
		return e, errors.Mark(errors.Newf("conformer %d of %s", confID, m.ID), ErrNotConverged)
	}
	return e, nil
}

//Energy returns the GFN-FF single point energy of the conformer.
func (X *XTB) Energy(ctx context.Context, m *mol.Molecule, confID int, ff ForceField) (float64, error) {
	c, err := m.Conformer(confID)
	if err != nil {
		return 0, err
	}
	dir, err := X.workdir()
	if err != nil {
		return 0, err
	}
	defer os.RemoveAll(dir)
	if err := writeXYZ(filepath.Join(dir, "in.xyz"), c.Coords, m); err != nil {
		return 0, err
	}
	args, err := X.commonArgs(m, ff.Dielectric)
	if err != nil {
		return 0, err
	}
	out, err := X.run(ctx, dir, 1, append([]string{"in.xyz", "--sp"}, args...)...)
	if err != nil {
		return 0, err
	}
	return ParseTotalEnergy(out)
}

//Embed replaces the conformers of m with up to p.NumConfs structures sampled from a
//GFN-FF molecular dynamics started from the first conformer of m. The starting structure
//is randomly displaced, with the random seed p.RandomSeed. Frames closer than p.PruneRMS
//(heavy atoms) to an already accepted frame are discarded.
func (X *XTB) Embed(ctx context.Context, m *mol.Molecule, p EmbedParams) ([]int, error) {
	if m.NumConformers() == 0 {
		return nil, errors.Newf("molecule %s has no starting structure", m.ID)
	}
	if p.NumConfs <= 0 {
		return nil, nil
	}
	dir, err := X.workdir()
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)
	start := mol.CopyCoords(m.Conformers()[0].Coords)
	rng := rand.New(rand.NewPCG(uint64(p.RandomSeed), uint64(p.RandomSeed)))
	for i := 0; i < start.NVecs(); i++ {
		for j := 0; j < 3; j++ {
			start.Set(i, j, start.At(i, j)+(rng.Float64()*2-1)*defJitter)
		}
	}
	if err := writeXYZ(filepath.Join(dir, "start.xyz"), start, m); err != nil {
		return nil, err
	}
	oversample := max(X.Oversample, 1)
	mdtime := float64(p.NumConfs*oversample) * X.MDDump / 1000.0
	if err := os.WriteFile(filepath.Join(dir, "md.inp"), []byte(MDInput(X.MDTemp, mdtime, X.MDDump)), 0o644); err != nil {
		return nil, err
	}
	args, err := X.commonArgs(m, p.Dielectric)
	if err != nil {
		return nil, err
	}
	if _, err := X.run(ctx, dir, p.NumThreads, append([]string{"start.xyz", "--md", "--input", "md.inp"}, args...)...); err != nil {
		return nil, err
	}
	_, traj, err := chem.XYZFileAsTraj(filepath.Join(dir, "xtb.trj"))
	if err != nil {
		return nil, errors.Wrap(err, "opening xtb trajectory")
	}
	//the trajectory file is only closed once it has been read to the end.
	defer func() {
		for traj.Readable() && traj.Next(nil) == nil {
		}
	}()
	if traj.Len() != m.Len() {
		return nil, errors.Newf("xtb trajectory has %d atoms, molecule %s has %d", traj.Len(), m.ID, m.Len())
	}
	heavy := m.HeavyAtoms()
	accepted := make([]*v3.Matrix, 0, p.NumConfs)
	coord := v3.Zeros(m.Len())
	for frame := 0; len(accepted) < p.NumConfs; frame++ {
		err = traj.Next(coord)
		if err != nil {
			if _, ok := err.(chem.LastFrameError); ok {
				break
			}
			return nil, errors.Wrapf(err, "reading frame %d of the xtb trajectory", frame)
		}
		keep, err := X.distinct(coord, accepted, heavy, p.PruneRMS)
		if err != nil {
			return nil, err
		}
		if keep {
			accepted = append(accepted, mol.CopyCoords(coord))
		}
	}
	m.ClearConformers()
	ids := make([]int, 0, len(accepted))
	for _, c := range accepted {
		id, err := m.AddConformer(c)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	X.Log.Debug("embedded conformers from MD", zap.String("molecule", m.ID), zap.Int("requested", p.NumConfs), zap.Int("obtained", len(ids)))
	return ids, nil
}

func (X *XTB) distinct(c *v3.Matrix, accepted []*v3.Matrix, heavy []int, thres float64) (bool, error) {
	if thres <= 0 {
		return true, nil
	}
	for _, a := range accepted {
		rms, err := X.Align(c, a, heavy)
		if err != nil {
			return false, err
		}
		if rms < thres {
			return false, nil
		}
	}
	return true, nil
}

//writeSD writes the first conformer of m to an SD file in dir.
func writeSD(dir, name string, m *mol.Molecule) (string, error) {
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if m.NumConformers() == 0 {
		return "", errors.Newf("molecule %s has no conformers", m.ID)
	}
	if err := molio.WriteSD(f, m, m.ConformerIDs()[0], nil); err != nil {
		return "", err
	}
	return p, nil
}

//CanonicalSMILES returns the Open Babel canonical SMILES of m.
func (X *XTB) CanonicalSMILES(ctx context.Context, m *mol.Molecule) (string, error) {
	dir, err := X.workdir()
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)
	p, err := writeSD(dir, "smiles.sdf", m)
	if err != nil {
		return "", err
	}
	return X.Babel.CanonicalSMILES(ctx, dir, p, "sdf")
}

//BestRMS uses obrms to obtain the symmetry-corrected RMSD between the
//first conformers of probe and ref.
func (X *XTB) BestRMS(ctx context.Context, probe, ref *mol.Molecule) (float64, error) {
	dir, err := X.workdir()
	if err != nil {
		return 0, err
	}
	defer os.RemoveAll(dir)
	pp, err := writeSD(dir, "probe.sdf", probe)
	if err != nil {
		return 0, err
	}
	rp, err := writeSD(dir, "ref.sdf", ref)
	if err != nil {
		return 0, err
	}
	return X.Babel.BestRMS(ctx, dir, rp, pp)
}

//AddHydrogens returns a copy of m, with its first conformer, completed with
//explicit hydrogens by Open Babel.
func (X *XTB) AddHydrogens(ctx context.Context, m *mol.Molecule) (*mol.Molecule, error) {
	dir, err := X.workdir()
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)
	in, err := writeSD(dir, "noh.sdf", m)
	if err != nil {
		return nil, err
	}
	out := filepath.Join(dir, "h.sdf")
	if err := X.Babel.Convert(ctx, dir, in, "sdf", out, "sdf", "-h"); err != nil {
		return nil, err
	}
	ms, err := molio.ReadSDF(out)
	if err != nil {
		return nil, err
	}
	r := ms[0]
	r.ID = m.ID
	r.Name = m.Name
	return r, nil
}
