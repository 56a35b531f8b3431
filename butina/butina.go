/*
 * butina.go, part of ligstab
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

//Package butina implements the Butina (Taylor-Butina) greedy clustering of a set
//of points for which only the pairwise distances are known.
//
//Reference: D. Butina, J. Chem. Inf. Comput. Sci. 39, 747 (1999).
package butina

import (
	"sort"

	"github.com/cockroachdb/errors"
)

const DefaultThreshold = 0.2

//TriangleIndex returns the position of the distance between points i and j
//(i != j) in a lower-triangle distance matrix stored row by row:
//d(1,0), d(2,0), d(2,1), d(3,0)...
func TriangleIndex(i, j int) int {
	if i < j {
		i, j = j, i
	}
	return i*(i-1)/2 + j
}

//TriangleLen is the number of distances in the lower triangle for n points.
func TriangleLen(n int) int {
	return n * (n - 1) / 2
}

//Cluster groups the n points whose pairwise distances are in dmat (see TriangleIndex)
//in clusters of points within threshold (inclusive) of a centroid.
//
//The unassigned point with the most unassigned neighbors is repeatedly taken as centroid,
//and forms a new cluster together with all its unassigned neighbors.
//Ties are broken by taking the lowest index.
//If reorder is true, neighbor counts are recomputed against the remaining
//points after each cluster is formed; otherwise the initial counts define
//the order in which centroids are tried.
//
//Each cluster lists the centroid first, then the other members by ascending index.
//Clusters are returned in the order in which they were formed. Every point
//belongs to exactly one cluster.
func Cluster(dmat []float64, n int, threshold float64, reorder bool) ([][]int, error) {
	if n < 0 {
		return nil, errors.Newf("negative number of points: %d", n)
	}
	if len(dmat) != TriangleLen(n) {
		return nil, errors.Newf("distance matrix for %d points should have %d elements, got %d", n, TriangleLen(n), len(dmat))
	}
	nbrs := neighbors(dmat, n, threshold)
	counts := make([]int, n)
	for i, v := range nbrs {
		counts[i] = len(v)
	}
	seen := make([]bool, n)
	clusters := make([][]int, 0)
	var order []int
	if !reorder {
		order = byCount(counts)
	}
	for next := 0; ; {
		var centroid int
		if reorder {
			centroid = best(counts, seen)
			if centroid < 0 {
				break
			}
		} else {
			for next < n && seen[order[next]] {
				next++
			}
			if next == n {
				break
			}
			centroid = order[next]
		}
		seen[centroid] = true
		c := []int{centroid}
		for _, nb := range nbrs[centroid] {
			if !seen[nb] {
				seen[nb] = true
				c = append(c, nb)
			}
		}
		if reorder {
			//assigned points no longer count as neighbors
			for _, member := range c {
				for _, nb := range nbrs[member] {
					counts[nb]--
				}
			}
		}
		clusters = append(clusters, c)
	}
	return clusters, nil
}

//neighbors returns, for each point, the points within threshold of it, in ascending order.
func neighbors(dmat []float64, n int, threshold float64) [][]int {
	nbrs := make([][]int, n)
	k := 0
	for i := 0; i < n; i++ {
		for j := 0; j < i; j++ {
			if dmat[k] <= threshold {
				nbrs[i] = append(nbrs[i], j)
				nbrs[j] = append(nbrs[j], i)
			}
			k++
		}
	}
	return nbrs
}

//best returns the unassigned point with the largest count, the lowest index winning ties,
//or -1 if all points are assigned.
func best(counts []int, seen []bool) int {
	b := -1
	for i, c := range counts {
		if seen[i] {
			continue
		}
		if b < 0 || c > counts[b] {
			b = i
		}
	}
	return b
}

//byCount returns the point indexes sorted by decreasing count, then increasing index.
func byCount(counts []int) []int {
	order := make([]int, len(counts))
	for i := range order {
		order[i] = i
	}
	//stable, so equal counts keep their index order
	sort.SliceStable(order, func(a, b int) bool { return counts[order[a]] > counts[order[b]] })
	return order
}
