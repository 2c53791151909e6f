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

package settings

import (
	"fmt"
	"regexp"
	"sync/atomic"
)

// TrustedEndpoints holds the compiled connector endpoint allow-list. Reads are
// lock-free; updates replace the whole list, never mutate it, so validation on
// the predict hot path never contends with a settings change.
type TrustedEndpoints struct {
	patterns atomic.Value // []*regexp.Regexp
}

// NewTrustedEndpoints compiles the initial allow-list.
func NewTrustedEndpoints(exprs []string) (*TrustedEndpoints, error) {
	t := &TrustedEndpoints{}
	if err := t.Set(exprs); err != nil {
		return nil, err
	}
	return t, nil
}

// Set compiles exprs and swaps them in as the new allow-list. On a compile
// error the previous list stays in effect.
func (t *TrustedEndpoints) Set(exprs []string) error {
	compiled := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		re, err := regexp.Compile(expr)
		if err != nil {
			return fmt.Errorf("invalid trusted endpoint pattern %q: %w", expr, err)
		}
		compiled = append(compiled, re)
	}
	t.patterns.Store(compiled)
	return nil
}

// Patterns returns the current compiled allow-list. Callers must not mutate
// the returned slice.
func (t *TrustedEndpoints) Patterns() []*regexp.Regexp {
	if v := t.patterns.Load(); v != nil {
		return v.([]*regexp.Regexp)
	}
	return nil
}

// Matches reports whether url matches at least one trusted pattern.
func (t *TrustedEndpoints) Matches(url string) bool {
	for _, re := range t.Patterns() {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}
