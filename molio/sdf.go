/*
 * sdf.go, part of ligstab
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
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	v3 "github.com/rmera/gochem/v3"
	"github.com/rmera/scu"

	"github.com/rmera/ligstab/mol"
)

//Prop is one SD data item. Props are kept as an ordered slice, since the
//order in which they are written is part of the output format.
type Prop struct {
	Key   string
	Value string
}

//readLines returns all the lines of the file, without line terminators.
func readLines(name string) (lines []string, err error) {
	fin, err := scu.NewMustReadFile(name)
	if err != nil {
		return nil, err
	}
	defer fin.Close()
	//MustReadFile panics on read errors other than EOF.
	defer func() {
		if r := recover(); r != nil {
			err = errors.Mark(errors.Newf("reading %s: %v", name, r), ErrParse)
		}
	}()
	for line := fin.Next(); line != "EOF"; line = fin.Next() {
		lines = append(lines, strings.TrimRight(line, "\r\n"))
	}
	return lines, nil
}

func parseErr(name string, linenu int, format string, a ...interface{}) error {
	return errors.Mark(errors.Newf("%s, line %d: %s", name, linenu+1, fmt.Sprintf(format, a...)), ErrParse)
}

//MDL charge codes in the atom block.
var chargeCodes = map[int]int{1: 3, 2: 2, 3: 1, 5: -1, 6: -2, 7: -3}

//ReadSDF reads all the records in an SD file. Each record becomes a molecule with
//one conformer, and its data items become the molecule's Props. Only V2000
//records are supported.
func ReadSDF(name string) ([]*mol.Molecule, error) {
	lines, err := readLines(name)
	if err != nil {
		return nil, err
	}
	id := filepath.Base(TrimExtension(name))
	mols := make([]*mol.Molecule, 0, 1)
	for i := 0; i < len(lines); {
		if onlyBlanks(lines[i:]) {
			break
		}
		m, next, err := parseSDRecord(name, lines, i)
		if err != nil {
			return nil, err
		}
		m.ID = id
		mols = append(mols, m)
		i = next
	}
	if len(mols) == 0 {
		return nil, errors.Mark(errors.Newf("%s contains no molecules", name), ErrParse)
	}
	return mols, nil
}

func onlyBlanks(lines []string) bool {
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			return false
		}
	}
	return true
}

//parseSDRecord parses the record starting at lines[start] and returns the
//molecule and the index of the first line after the record.
func parseSDRecord(name string, lines []string, start int) (*mol.Molecule, int, error) {
	if start+3 >= len(lines) {
		return nil, 0, parseErr(name, start, "truncated header")
	}
	title := strings.TrimSpace(lines[start])
	cl := start + 3
	counts := lines[cl]
	if strings.Contains(counts, "V3000") {
		return nil, 0, parseErr(name, cl, "V3000 records are not supported")
	}
	if len(counts) < 6 {
		return nil, 0, parseErr(name, cl, "malformed counts line %q", counts)
	}
	natoms, err1 := strconv.Atoi(strings.TrimSpace(counts[0:3]))
	nbonds, err2 := strconv.Atoi(strings.TrimSpace(counts[3:6]))
	if err1 != nil || err2 != nil || natoms <= 0 {
		return nil, 0, parseErr(name, cl, "malformed counts line %q", counts)
	}
	if cl+natoms+nbonds >= len(lines) {
		return nil, 0, parseErr(name, cl, "record ends before its atom and bond blocks")
	}
	atoms := make([]*mol.Atom, natoms)
	coords := v3.Zeros(natoms)
	for i := 0; i < natoms; i++ {
		ln := cl + 1 + i
		at, xyz, err := parseSDAtom(lines[ln])
		if err != nil {
			return nil, 0, parseErr(name, ln, "%v", err)
		}
		atoms[i] = at
		for j, v := range xyz {
			coords.Set(i, j, v)
		}
	}
	bonds := make([]mol.Bond, nbonds)
	for i := 0; i < nbonds; i++ {
		ln := cl + 1 + natoms + i
		b, err := parseSDBond(lines[ln], natoms)
		if err != nil {
			return nil, 0, parseErr(name, ln, "%v", err)
		}
		bonds[i] = b
	}
	m := mol.New("", atoms, bonds)
	m.Name = title
	if _, err := m.AddConformer(coords); err != nil {
		return nil, 0, errors.Mark(err, ErrParse)
	}
	i := cl + 1 + natoms + nbonds
	chgreset := false
	//properties block, until M  END
	for ; i < len(lines); i++ {
		l := lines[i]
		if strings.HasPrefix(l, "M  END") {
			i++
			break
		}
		if strings.HasPrefix(l, "M  CHG") {
			//M  CHG lines supersede the charges in the atom block
			if !chgreset {
				for _, a := range atoms {
					a.Charge = 0
				}
				chgreset = true
			}
			f := strings.Fields(l)
			for k := 3; k+1 < len(f); k += 2 {
				idx, err1 := strconv.Atoi(f[k])
				c, err2 := strconv.Atoi(f[k+1])
				if err1 != nil || err2 != nil || idx < 1 || idx > natoms {
					return nil, 0, parseErr(name, i, "malformed charge line %q", l)
				}
				atoms[idx-1].Charge = c
			}
		}
		if l == "$$$$" {
			return m, i + 1, nil
		}
	}
	//data items, until $$$$
	for i < len(lines) {
		l := lines[i]
		if l == "$$$$" {
			return m, i + 1, nil
		}
		if !strings.HasPrefix(l, ">") {
			i++
			continue
		}
		key := dataKey(l)
		i++
		vals := make([]string, 0, 1)
		for ; i < len(lines) && strings.TrimSpace(lines[i]) != "" && lines[i] != "$$$$"; i++ {
			vals = append(vals, lines[i])
		}
		if key != "" {
			m.Props[key] = strings.Join(vals, "\n")
		}
	}
	//a final record without $$$$ is tolerated.
	return m, i, nil
}

//dataKey extracts the field name from a data header like "> <energy_abs> (1)".
func dataKey(header string) string {
	a := strings.Index(header, "<")
	if a < 0 {
		return ""
	}
	b := strings.Index(header[a+1:], ">")
	if b < 0 {
		return ""
	}
	b += a + 1
	return header[a+1 : b]
}

func parseSDAtom(line string) (*mol.Atom, [3]float64, error) {
	var xyz [3]float64
	var fields []string
	var symbol string
	ccode := 0
	if len(line) >= 34 {
		fields = []string{line[0:10], line[10:20], line[20:30]}
		symbol = strings.TrimSpace(line[31:34])
		if len(line) >= 39 {
			ccode, _ = strconv.Atoi(strings.TrimSpace(line[36:39]))
		}
	} else {
		//some programs don't respect the column widths.
		f := strings.Fields(line)
		if len(f) < 4 {
			return nil, xyz, errors.Newf("malformed atom line %q", line)
		}
		fields = f[:3]
		symbol = f[3]
	}
	for i, v := range fields {
		var err error
		xyz[i], err = strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, xyz, errors.Newf("malformed coordinate in atom line %q", line)
		}
	}
	if symbol == "" {
		return nil, xyz, errors.Newf("no element in atom line %q", line)
	}
	return &mol.Atom{Symbol: symbol, Name: symbol, Charge: chargeCodes[ccode]}, xyz, nil
}

func parseSDBond(line string, natoms int) (mol.Bond, error) {
	var f []string
	if len(line) >= 9 {
		f = []string{line[0:3], line[3:6], line[6:9]}
	} else {
		f = strings.Fields(line)
	}
	if len(f) < 3 {
		return mol.Bond{}, errors.Newf("malformed bond line %q", line)
	}
	v := make([]int, 3)
	for i := range v {
		var err error
		v[i], err = strconv.Atoi(strings.TrimSpace(f[i]))
		if err != nil {
			return mol.Bond{}, errors.Newf("malformed bond line %q", line)
		}
	}
	if v[0] < 1 || v[0] > natoms || v[1] < 1 || v[1] > natoms {
		return mol.Bond{}, errors.Newf("bond to non-existent atom in %q", line)
	}
	return mol.Bond{A: v[0] - 1, B: v[1] - 1, Order: v[2]}, nil
}

func chargeCode(c int) int {
	for k, v := range chargeCodes {
		if v == c {
			return k
		}
	}
	return 0
}

//WriteSD writes the conformer confID of m as one V2000 SD record, followed by the
//data items in props, in the given order.
func WriteSD(out io.Writer, m *mol.Molecule, confID int, props []Prop) error {
	c, err := m.Conformer(confID)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(out)
	title := m.Name
	if title == "" {
		title = m.ID
	}
	fmt.Fprintf(w, "%s\n  ligstab          3D\n\n", title)
	fmt.Fprintf(w, "%3d%3d  0  0  0  0  0  0  0  0999 V2000\n", m.Len(), len(m.Bonds))
	charged := make([]int, 0)
	for i, a := range m.Atoms {
		if a.Charge != 0 {
			charged = append(charged, i)
		}
		fmt.Fprintf(w, "%10.4f%10.4f%10.4f %-3s 0%3d  0  0  0  0  0  0  0  0  0  0\n",
			c.Coords.At(i, 0), c.Coords.At(i, 1), c.Coords.At(i, 2), a.Symbol, chargeCode(a.Charge))
	}
	for _, b := range m.Bonds {
		fmt.Fprintf(w, "%3d%3d%3d  0\n", b.A+1, b.B+1, b.Order)
	}
	for len(charged) > 0 {
		n := min(len(charged), 8)
		fmt.Fprintf(w, "M  CHG%3d", n)
		for _, i := range charged[:n] {
			fmt.Fprintf(w, " %3d %3d", i+1, m.Atoms[i].Charge)
		}
		fmt.Fprintln(w)
		charged = charged[n:]
	}
	fmt.Fprintln(w, "M  END")
	for _, p := range props {
		fmt.Fprintf(w, "> <%s>\n%s\n\n", p.Key, p.Value)
	}
	fmt.Fprintln(w, "$$$$")
	return w.Flush()
}

//SDWriter writes SD records to a temporary file next to its destination, and
//only moves the file to its final name on Close, so readers never see a
//partially written file.
type SDWriter struct {
	final string
	tmp   *os.File
	w     *bufio.Writer
	n     int
}

//NewSDWriter opens a writer that will produce the SD file name.
func NewSDWriter(name string) (*SDWriter, error) {
	name, err := filepath.Abs(name)
	if err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(name), "."+filepath.Base(name)+".*.tmp")
	if err != nil {
		return nil, errors.Wrapf(err, "opening SD writer for %s", name)
	}
	return &SDWriter{final: name, tmp: tmp, w: bufio.NewWriter(tmp)}, nil
}

//Write adds the conformer confID of m, with the props, to the file.
func (S *SDWriter) Write(m *mol.Molecule, confID int, props []Prop) error {
	if err := WriteSD(S.w, m, confID, props); err != nil {
		return errors.Wrapf(err, "writing conformer %d to %s", confID, S.final)
	}
	S.n++
	return nil
}

//Count returns how many records have been written so far.
func (S *SDWriter) Count() int {
	return S.n
}

//Path returns the final name of the file.
func (S *SDWriter) Path() string {
	return S.final
}

//Close flushes the records and moves the file to its final name.
func (S *SDWriter) Close() error {
	if err := S.w.Flush(); err != nil {
		S.Abort()
		return err
	}
	if err := S.tmp.Sync(); err != nil {
		S.Abort()
		return err
	}
	if err := S.tmp.Close(); err != nil {
		os.Remove(S.tmp.Name())
		return err
	}
	return os.Rename(S.tmp.Name(), S.final)
}

//Abort discards everything written. The destination file is not touched.
func (S *SDWriter) Abort() {
	S.tmp.Close()
	os.Remove(S.tmp.Name())
}
