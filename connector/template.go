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

package connector

import "strings"

// Substitute resolves ${parameters.k} and ${credential.k} placeholders in a
// template. Replacement is literal, single-pass string substitution: a value
// containing another placeholder is not re-expanded, and placeholders with no
// matching key are left as-is so downstream systems can detect unresolved
// references.
func Substitute(template string, parameters, credential map[string]string) string {
	if template == "" || (len(parameters) == 0 && len(credential) == 0) {
		return template
	}

	pairs := make([]string, 0, 2*(len(parameters)+len(credential)))
	for k, v := range parameters {
		pairs = append(pairs, "${parameters."+k+"}", v)
	}
	for k, v := range credential {
		pairs = append(pairs, "${credential."+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
