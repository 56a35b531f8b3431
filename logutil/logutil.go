/*
 * logutil.go, part of ligstab
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

//Package logutil builds the zap loggers used by ligstab from a verbosity level,
//the way the command line -v flag is given.
package logutil

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	FieldNameComponent = "component"
	FieldNameLigand    = "ligand"
	FieldNameRun       = "run"
)

//Level maps a verbosity to a zap level: 0 or less only shows warnings and errors,
//1 adds the progress messages and 2 or more, the debug output.
func Level(verbosity int) zapcore.Level {
	switch {
	case verbosity <= 0:
		return zapcore.WarnLevel
	case verbosity == 1:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

//New returns a console logger writing to stderr at the level for the verbosity.
func New(verbosity int, opts ...zap.Option) (*zap.Logger, error) {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(Level(verbosity)),
		Development:       verbosity > 1,
		DisableStacktrace: verbosity < 3,
		Encoding:          "console",
		EncoderConfig:     enc,
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
	}
	l, err := cfg.Build(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "building logger")
	}
	return l, nil
}

//Component returns a zap field with the component name.
func Component(name string) zap.Field {
	return zap.String(FieldNameComponent, name)
}

//Ligand returns a zap field with the ligand ID.
func Ligand(id string) zap.Field {
	return zap.String(FieldNameLigand, id)
}

//Run returns a zap field with the ID of a batch run.
func Run(id string) zap.Field {
	return zap.String(FieldNameRun, id)
}
