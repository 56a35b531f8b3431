/*
 * batch.go, part of ligstab
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
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rmera/ligstab/logutil"
	"github.com/rmera/ligstab/metrics"
	"github.com/rmera/ligstab/stability"
)

//syncWriter serializes the writes of several pipelines, so their lines don't mix.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (S *syncWriter) Write(p []byte) (int, error) {
	S.mu.Lock()
	defer S.mu.Unlock()
	return S.w.Write(p)
}

//runBatch processes the requests with up to workers pipelines at the same time, each
//obtained from newPipeline. Failures of single ligands are logged and returned
//together, after all the ligands have been processed.
func runBatch(ctx context.Context, reqs []stability.Request, newPipeline func() *stability.Pipeline, out io.Writer, workers int, log *zap.Logger) error {
	if workers < 1 {
		workers = 1
	}
	log = log.With(logutil.Run(uuid.NewString()))
	log.Info("starting batch", zap.Int("ligands", len(reqs)), zap.Int("workers", workers))
	w := &syncWriter{w: out}
	done := atomic.NewInt64(0)
	failed := atomic.NewInt64(0)
	var mu sync.Mutex
	var errs error
	var g errgroup.Group
	g.SetLimit(workers)
	for _, r := range reqs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			_, err := newPipeline().Run(ctx, r, w)
			if err != nil {
				failed.Inc()
				log.Error("ligand failed", logutil.Ligand(r.ID), zap.Error(err))
				mu.Lock()
				errs = multierr.Append(errs, errors.Wrapf(err, "ligand %s", r.ID))
				mu.Unlock()
			}
			n := done.Inc()
			log.Debug("progress", zap.Int64("done", n), zap.Int("total", len(reqs)))
			return nil
		})
	}
	g.Wait()
	log.Info("batch finished", zap.Int64("done", done.Load()), zap.Int64("failed", failed.Load()))
	if err := ctx.Err(); err != nil {
		errs = multierr.Append(errs, err)
	}
	return errs
}

//serveMetrics serves the ligstab metrics at addr until the returned function is called.
func serveMetrics(addr string, log *zap.Logger) (stop func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", addr))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}
