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

package anomaly

import (
	"math"
	"sort"
)

// InvEpsilon is the inverse of the sketch error fraction: estimation error
// stays below total_mass / InvEpsilon.
const InvEpsilon = 1e4

const (
	numHashes   = 5
	sketchWidth = 1 << 18
)

// rowIndex places a key in row i by double hashing.
func rowIndex(h1, h2 uint64, i int) int {
	return int((h1 + uint64(i)*h2) % sketchWidth)
}

// CountMinSketch estimates non-negative accumulated values. Estimates never
// undercount: estimate >= truth, and estimate < truth + total/InvEpsilon.
type CountMinSketch struct {
	rows [numHashes][]float64
}

var _ Counter = (*CountMinSketch)(nil)

// NewCountMinSketch builds an empty count-min sketch.
func NewCountMinSketch() *CountMinSketch {
	s := &CountMinSketch{}
	for i := range s.rows {
		s.rows[i] = make([]float64, sketchWidth)
	}
	return s
}

func (s *CountMinSketch) Increment(key []string, value float64) {
	h1, h2 := keyHashes(key)
	s.incrementHashed(h1, h2, value)
}

func (s *CountMinSketch) incrementHashed(h1, h2 uint64, value float64) {
	for i := range s.rows {
		s.rows[i][rowIndex(h1, h2, i)] += value
	}
}

func (s *CountMinSketch) Estimate(key []string) float64 {
	h1, h2 := keyHashes(key)
	min := math.Inf(1)
	for i := range s.rows {
		if v := s.rows[i][rowIndex(h1, h2, i)]; v < min {
			min = v
		}
	}
	return min
}

// CountSketch estimates signed accumulated values by the median of signed
// row estimates: |estimate - truth| < |total| / InvEpsilon.
type CountSketch struct {
	rows [numHashes][]float64
}

var _ Counter = (*CountSketch)(nil)

// NewCountSketch builds an empty count sketch.
func NewCountSketch() *CountSketch {
	s := &CountSketch{}
	for i := range s.rows {
		s.rows[i] = make([]float64, sketchWidth)
	}
	return s
}

// rowSign derives the +-1 multiplier for row i from the second hash.
func rowSign(h2 uint64, i int) float64 {
	if (h2>>(uint(i)+32))&1 == 1 {
		return -1
	}
	return 1
}

func (s *CountSketch) Increment(key []string, value float64) {
	h1, h2 := keyHashes(key)
	s.incrementHashed(h1, h2, value)
}

func (s *CountSketch) incrementHashed(h1, h2 uint64, value float64) {
	for i := range s.rows {
		s.rows[i][rowIndex(h1, h2, i)] += rowSign(h2, i) * value
	}
}

func (s *CountSketch) Estimate(key []string) float64 {
	h1, h2 := keyHashes(key)
	estimates := make([]float64, numHashes)
	for i := range s.rows {
		estimates[i] = rowSign(h2, i) * s.rows[i][rowIndex(h1, h2, i)]
	}
	sort.Float64s(estimates)
	return estimates[numHashes/2]
}
