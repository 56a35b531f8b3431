/*
 * metrics.go, part of ligstab
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

//Package metrics holds the prometheus collectors for the ligstab pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "ligstab"

	statusLabelName = "status"
	stageLabelName  = "stage"

	//ligand status label
	SuccessLabel = "success"
	FailLabel    = "fail"
	InputLabel   = "input_error"

	//stage label
	GenerateStage = "generate"
	ClusterStage  = "cluster"
	SelectStage   = "select"
	NativeStage   = "native"
	FeatureStage  = "features"
)

var (
	registry = prometheus.NewRegistry()

	LigandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ligands_total",
			Help:      "ligands processed, by outcome",
		}, []string{statusLabelName})

	CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ensemble_cache_hits_total",
			Help:      "ligands for which previously generated ensemble files were used",
		})

	Conformers = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conformers",
			Help:      "conformers embedded per ligand",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		})

	Clusters = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "clusters",
			Help:      "conformer clusters per ligand",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		})

	StageSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_seconds",
			Help:      "time spent in each stage of the pipeline",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{stageLabelName})
)

func init() {
	registry.MustRegister(LigandsTotal)
	registry.MustRegister(CacheHits)
	registry.MustRegister(Conformers)
	registry.MustRegister(Clusters)
	registry.MustRegister(StageSeconds)
}

//Registry returns the registry holding all the ligstab collectors.
func Registry() *prometheus.Registry {
	return registry
}

//Handler serves the ligstab metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

//Stage returns a timer for the given stage. Call ObserveDuration on it when the stage ends.
func Stage(stage string) *prometheus.Timer {
	return prometheus.NewTimer(StageSeconds.WithLabelValues(stage))
}
