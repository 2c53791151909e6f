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
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashMapCounterExact(t *testing.T) {
	c := NewHashMapCounter()
	c.Increment([]string{"a", "b"}, 1.5)
	c.Increment([]string{"a", "b"}, 2.5)
	c.Increment([]string{"ab"}, 7)

	assert.InDelta(t, 4.0, c.Estimate([]string{"a", "b"}), 1e-9)
	assert.InDelta(t, 7.0, c.Estimate([]string{"ab"}), 1e-9)
	assert.Zero(t, c.Estimate([]string{"missing"}))
	assert.Equal(t, 2, c.Distinct())
}

func TestCompositeKeysDoNotCollapse(t *testing.T) {
	c := NewHashMapCounter()
	c.Increment([]string{"a", "bc"}, 1)
	c.Increment([]string{"ab", "c"}, 2)
	assert.InDelta(t, 1.0, c.Estimate([]string{"a", "bc"}), 1e-9)
	assert.InDelta(t, 2.0, c.Estimate([]string{"ab", "c"}), 1e-9)
}

func TestHybridCounterExactBelowThreshold(t *testing.T) {
	hybrid := NewHybridCounter()
	exact := NewHashMapCounter()

	rng := rand.New(rand.NewSource(7))
	keys := []string{"a", "b", "c"}
	for i := 0; i < 5000; i++ {
		key := []string{keys[rng.Intn(len(keys))]}
		value := rng.Float64()
		hybrid.Increment(key, value)
		exact.Increment(key, value)
		assert.InDelta(t, exact.Estimate(key), hybrid.Estimate(key), 1e-3)
	}
}

func TestHybridCounterCountMinRegime(t *testing.T) {
	hybrid := NewHybridCounter()
	exact := NewHashMapCounter()

	total := 0.0
	n := SketchThreshold + 5000
	for i := 0; i < n; i++ {
		key := []string{fmt.Sprintf("key-%d", i)}
		value := 1.0
		total += value
		hybrid.Increment(key, value)
		exact.Increment(key, value)
	}

	// switched regimes, prior mass retained within the sketch bound
	_, stillExact := hybrid.counter.(*HashMapCounter)
	require.False(t, stillExact)
	_, isCMS := hybrid.counter.(*CountMinSketch)
	require.True(t, isCMS)

	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 200; i++ {
		key := []string{fmt.Sprintf("key-%d", rng.Intn(n))}
		truth := exact.Estimate(key)
		estimate := hybrid.Estimate(key)
		assert.GreaterOrEqual(t, estimate, truth)
		assert.Less(t, estimate, truth+total/InvEpsilon)
	}
}

func TestHybridCounterCountSketchRegime(t *testing.T) {
	hybrid := NewHybridCounter()
	exact := NewHashMapCounter()

	total := 0.0
	n := SketchThreshold + 5000
	rng := rand.New(rand.NewSource(13))
	for i := 0; i < n; i++ {
		key := []string{fmt.Sprintf("key-%d", i)}
		value := -rng.Float64()
		total += value
		hybrid.Increment(key, value)
		exact.Increment(key, value)
	}

	_, isCS := hybrid.counter.(*CountSketch)
	require.True(t, isCS)

	for i := 0; i < 200; i++ {
		key := []string{fmt.Sprintf("key-%d", rng.Intn(n))}
		truth := exact.Estimate(key)
		estimate := hybrid.Estimate(key)
		assert.Less(t, math.Abs(estimate-truth), math.Abs(total)/InvEpsilon)
	}
}

func TestCountMinSketchNeverUndercounts(t *testing.T) {
	s := NewCountMinSketch()
	exact := NewHashMapCounter()

	rng := rand.New(rand.NewSource(17))
	for i := 0; i < 50000; i++ {
		key := []string{fmt.Sprintf("k%d", rng.Intn(20000))}
		value := rng.Float64()
		s.Increment(key, value)
		exact.Increment(key, value)
	}
	for i := 0; i < 500; i++ {
		key := []string{fmt.Sprintf("k%d", rng.Intn(20000))}
		assert.GreaterOrEqual(t, s.Estimate(key), exact.Estimate(key)-1e-9)
	}
}
