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

// SketchThreshold is the number of distinct keys after which the hybrid
// counter trades exactness for bounded memory.
const SketchThreshold = 10000

// HybridCounter counts exactly until SketchThreshold distinct keys, then
// switches to a sketch and replays the accumulated mass into it. The sketch
// family depends on what was seen so far: count-min when every accumulated
// value is non-negative, count sketch otherwise.
type HybridCounter struct {
	counter Counter
}

var _ Counter = (*HybridCounter)(nil)

// NewHybridCounter builds a hybrid counter in the exact regime.
func NewHybridCounter() *HybridCounter {
	return &HybridCounter{counter: NewHashMapCounter()}
}

func (c *HybridCounter) Increment(key []string, value float64) {
	c.counter.Increment(key, value)
	c.maybeSwitch()
}

func (c *HybridCounter) Estimate(key []string) float64 {
	return c.counter.Estimate(key)
}

func (c *HybridCounter) maybeSwitch() {
	exact, ok := c.counter.(*HashMapCounter)
	if !ok || exact.Distinct() < SketchThreshold {
		return
	}

	if exact.hasNegative() {
		sketch := NewCountSketch()
		exact.drainInto(sketch)
		c.counter = sketch
		return
	}
	sketch := NewCountMinSketch()
	exact.drainInto(sketch)
	c.counter = sketch
}
