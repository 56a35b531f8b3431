/*
 * files.go, part of ligstab
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
	"github.com/rmera/scu"

	"github.com/rmera/ligstab/stability"
)

//commonchecks decides what to do with a line of a ligand list:
//"continue" for blank and comment lines, "read" otherwise.
func commonchecks(line string) string {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "continue"
	}
	return "read"
}

//parseLigandLine reads a line with the fields: id native [datadir]
func parseLigandLine(line string, linenu int) (stability.Request, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 || len(fields) > 3 {
		return stability.Request{}, errors.Newf("line %d: expected 'id native [datadir]', got %d fields", linenu, len(fields))
	}
	r := stability.Request{ID: fields[0], Native: fields[1]}
	if len(fields) == 3 {
		r.DataDir = fields[2]
	}
	return r, nil
}

//ParseLigandList reads a ligand list file. Each line that is not blank or
//a comment (starting with #) has the ID of a ligand, its native pose and,
//optionally, the data directory for that ligand.
func ParseLigandList(inpname string) (reqs []stability.Request, err error) {
	fin, err := scu.NewMustReadFile(inpname)
	if err != nil {
		return nil, errors.Wrap(err, "opening ligand list")
	}
	defer fin.Close()
	//NewMustReadFile panics on read errors
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("reading ligand list %s: %v", inpname, r)
		}
	}()
	seen := make(map[string]int)
	linenu := 0
	for line := fin.Next(); line != "EOF"; line = fin.Next() {
		linenu++
		if commonchecks(line) == "continue" {
			continue
		}
		r, err := parseLigandLine(line, linenu)
		if err != nil {
			return nil, errors.Wrap(err, inpname)
		}
		if prev, ok := seen[r.ID+"\x00"+r.DataDir]; ok {
			//both would write the same ensemble files
			return nil, errors.Newf("%s: ligand %s in line %d already given in line %d", inpname, r.ID, linenu, prev)
		}
		seen[r.ID+"\x00"+r.DataDir] = linenu
		reqs = append(reqs, r)
	}
	if len(reqs) == 0 {
		return nil, errors.Newf("no ligands in %s", inpname)
	}
	return reqs, nil
}
