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

// Package anomaly provides the streaming frequency counters backing anomaly
// localization: an exact hash-map counter, count-min and count sketches, and
// a hybrid counter that switches from exact to sketched counting once the
// key space grows past a threshold.
package anomaly

import (
	"hash/fnv"
	"strings"
)

// Counter accumulates weighted increments per composite key and estimates the
// accumulated value for a key.
type Counter interface {
	Increment(key []string, value float64)
	Estimate(key []string) float64
}

// keySeparator joins key components into one canonical string. Unit separator
// keeps "a","bc" distinct from "ab","c".
const keySeparator = "\x1f"

func canonicalKey(key []string) string {
	return strings.Join(key, keySeparator)
}

// keyHashes derives the two independent hashes all sketch rows are built
// from.
func keyHashes(key []string) (uint64, uint64) {
	canonical := canonicalKey(key)

	h1 := fnv.New64a()
	_, _ = h1.Write([]byte(canonical))

	h2 := fnv.New64()
	_, _ = h2.Write([]byte(canonical))

	a, b := h1.Sum64(), h2.Sum64()
	if b == 0 {
		b = 0x9e3779b97f4a7c15
	}
	return a, b
}

// HashMapCounter is the exact counter used below the sketch threshold.
type HashMapCounter struct {
	counts map[string]float64
}

var _ Counter = (*HashMapCounter)(nil)

// NewHashMapCounter builds an empty exact counter.
func NewHashMapCounter() *HashMapCounter {
	return &HashMapCounter{counts: make(map[string]float64)}
}

func (c *HashMapCounter) Increment(key []string, value float64) {
	c.counts[canonicalKey(key)] += value
}

func (c *HashMapCounter) Estimate(key []string) float64 {
	return c.counts[canonicalKey(key)]
}

// Distinct reports the number of distinct keys seen.
func (c *HashMapCounter) Distinct() int {
	return len(c.counts)
}

// hasNegative reports whether any accumulated value is negative, which
// decides the sketch family on regime switch.
func (c *HashMapCounter) hasNegative() bool {
	for _, v := range c.counts {
		if v < 0 {
			return true
		}
	}
	return false
}

// drainInto replays every accumulated entry into dst.
func (c *HashMapCounter) drainInto(dst interface {
	incrementHashed(h1, h2 uint64, value float64)
}) {
	for k, v := range c.counts {
		h1 := fnv.New64a()
		_, _ = h1.Write([]byte(k))
		h2 := fnv.New64()
		_, _ = h2.Write([]byte(k))
		a, b := h1.Sum64(), h2.Sum64()
		if b == 0 {
			b = 0x9e3779b97f4a7c15
		}
		dst.incrementHashed(a, b, v)
	}
}
