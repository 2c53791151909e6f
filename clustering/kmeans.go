// Copyright 2025 MLPlane
// SPDX-License-Identifier: Apache-2.0
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package clustering implements the k-means trainer and predictor used by
// the local algorithm surface.
package clustering

import (
	"fmt"
	"math"
	"math/rand"

	"mlplane/platform/shared/mlerror"
)

// DistanceType selects the metric k-means clusters under.
type DistanceType string

const (
	DistanceEuclidean DistanceType = "EUCLIDEAN"
	DistanceCosine    DistanceType = "COSINE"
	DistanceL1        DistanceType = "L1"
)

const (
	defaultCentroids  = 2
	defaultIterations = 10
	defaultSeed       = 42
)

// Params configures a KMeans run. Zero values fall back to defaults; negative
// values are rejected.
type Params struct {
	Centroids    int          `json:"centroids,omitempty"`
	Iterations   int          `json:"iterations,omitempty"`
	DistanceType DistanceType `json:"distance_type,omitempty"`
	Seed         int64        `json:"seed,omitempty"`
}

// Model holds trained cluster centroids.
type Model struct {
	Centroids    [][]float64  `json:"centroids"`
	DistanceType DistanceType `json:"distance_type"`
}

// KMeans trains and applies k-means cluster models.
type KMeans struct {
	k          int
	iterations int
	distance   DistanceType
	seed       int64
}

// NewKMeans validates params and builds a trainer.
func NewKMeans(params Params) (*KMeans, error) {
	k := params.Centroids
	if k == 0 {
		k = defaultCentroids
	}
	if k < 0 {
		return nil, mlerror.New(mlerror.StatusInvalidInput, "K should be positive")
	}
	iterations := params.Iterations
	if iterations == 0 {
		iterations = defaultIterations
	}
	if iterations < 0 {
		return nil, mlerror.New(mlerror.StatusInvalidInput, "Iterations should be positive")
	}
	distance := params.DistanceType
	if distance == "" {
		distance = DistanceEuclidean
	}
	switch distance {
	case DistanceEuclidean, DistanceCosine, DistanceL1:
	default:
		return nil, mlerror.New(mlerror.StatusInvalidInput, "unsupported distance type: %s", distance)
	}
	seed := params.Seed
	if seed == 0 {
		seed = defaultSeed
	}
	return &KMeans{k: k, iterations: iterations, distance: distance, seed: seed}, nil
}

// Train runs Lloyd iterations over the data and returns the fitted model.
func (km *KMeans) Train(data [][]float64) (*Model, error) {
	if len(data) == 0 {
		return nil, mlerror.New(mlerror.StatusInvalidInput, "no training data provided for KMeans")
	}
	if len(data) < km.k {
		return nil, mlerror.New(mlerror.StatusInvalidInput,
			"K is %d but only %d data points provided", km.k, len(data))
	}

	dim := len(data[0])
	for i, row := range data {
		if len(row) != dim {
			return nil, mlerror.New(mlerror.StatusInvalidInput,
				"data point %d has dimension %d, expected %d", i, len(row), dim)
		}
	}

	rng := rand.New(rand.NewSource(km.seed))
	centroids := initialCentroids(rng, data, km.k)

	assignments := make([]int, len(data))
	for iter := 0; iter < km.iterations; iter++ {
		changed := false
		for i, point := range data {
			c := km.nearest(point, centroids)
			if c != assignments[i] {
				assignments[i] = c
				changed = true
			}
		}
		if iter > 0 && !changed {
			break
		}
		recomputeCentroids(data, assignments, centroids, rng)
	}

	return &Model{Centroids: centroids, DistanceType: km.distance}, nil
}

// Predict labels every data point with the index of its nearest centroid.
// Labels lie in [0, k).
func (km *KMeans) Predict(data [][]float64, model *Model) ([]int, error) {
	if model == nil {
		return nil, mlerror.New(mlerror.StatusInvalidInput, "No model found for KMeans prediction")
	}
	if len(model.Centroids) == 0 {
		return nil, mlerror.New(mlerror.StatusInvalidInput, "KMeans model has no centroids")
	}

	labels := make([]int, len(data))
	for i, point := range data {
		labels[i] = km.nearest(point, model.Centroids)
	}
	return labels, nil
}

// TrainAndPredict fits a model on the data and labels the same data.
func (km *KMeans) TrainAndPredict(data [][]float64) ([]int, error) {
	model, err := km.Train(data)
	if err != nil {
		return nil, err
	}
	return km.Predict(data, model)
}

func (km *KMeans) nearest(point []float64, centroids [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		d := km.dist(point, centroid)
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func (km *KMeans) dist(a, b []float64) float64 {
	switch km.distance {
	case DistanceCosine:
		return cosineDistance(a, b)
	case DistanceL1:
		return l1Distance(a, b)
	default:
		return euclideanDistance(a, b)
	}
}

// initialCentroids picks k distinct starting points.
func initialCentroids(rng *rand.Rand, data [][]float64, k int) [][]float64 {
	perm := rng.Perm(len(data))
	centroids := make([][]float64, k)
	for i := 0; i < k; i++ {
		centroids[i] = append([]float64(nil), data[perm[i]]...)
	}
	return centroids
}

// recomputeCentroids replaces each centroid with the mean of its members. An
// emptied cluster is re-seeded from a random point so every label in [0, k)
// stays reachable.
func recomputeCentroids(data [][]float64, assignments []int, centroids [][]float64, rng *rand.Rand) {
	dim := len(data[0])
	sums := make([][]float64, len(centroids))
	counts := make([]int, len(centroids))
	for i := range sums {
		sums[i] = make([]float64, dim)
	}
	for i, point := range data {
		c := assignments[i]
		counts[c]++
		for j, v := range point {
			sums[c][j] += v
		}
	}
	for c := range centroids {
		if counts[c] == 0 {
			centroids[c] = append([]float64(nil), data[rng.Intn(len(data))]...)
			continue
		}
		for j := range centroids[c] {
			centroids[c][j] = sums[c][j] / float64(counts[c])
		}
	}
}

func euclideanDistance(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func l1Distance(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += math.Abs(a[i] - b[i])
	}
	return sum
}

func cosineDistance(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

// String implements fmt.Stringer for diagnostics.
func (km *KMeans) String() string {
	return fmt.Sprintf("KMeans(k=%d, iterations=%d, distance=%s)", km.k, km.iterations, km.distance)
}
