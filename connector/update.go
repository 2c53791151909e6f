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

import "encoding/json"

// UpdateContent is a partial update to an embedded connector. Nil fields are
// left untouched by Apply. Credential values arrive in plaintext and are
// re-encrypted before they land on the connector.
type UpdateContent struct {
	Name        *string           `json:"name,omitempty"`
	Description *string           `json:"description,omitempty"`
	Version     *string           `json:"version,omitempty"`
	Protocol    *string           `json:"protocol,omitempty"`
	Parameters  map[string]string `json:"parameters"`
	Credential  map[string]string `json:"credential"`
	Actions     []Action          `json:"actions,omitempty"`
}

// MarshalJSON keeps the canonical serialization of an update content patch:
// parameters and credential are emitted as empty objects even when the input
// patch had them absent.
func (u UpdateContent) MarshalJSON() ([]byte, error) {
	type alias UpdateContent
	out := alias(u)
	if out.Parameters == nil {
		out.Parameters = map[string]string{}
	}
	if out.Credential == nil {
		out.Credential = map[string]string{}
	}
	return json.Marshal(out)
}

// Apply folds the patch into c. New credential values are encrypted with
// encrypt before they are stored; everything else replaces the corresponding
// field wholesale when present.
func (u *UpdateContent) Apply(c *Connector, encrypt CryptFunc) error {
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Description != nil {
		c.Description = *u.Description
	}
	if u.Version != nil {
		c.Version = *u.Version
	}
	if u.Protocol != nil {
		c.Protocol = *u.Protocol
	}
	if len(u.Parameters) > 0 {
		if c.Parameters == nil {
			c.Parameters = make(map[string]string, len(u.Parameters))
		}
		for k, v := range u.Parameters {
			c.Parameters[k] = v
		}
	}
	if len(u.Credential) > 0 {
		if c.Credential == nil {
			c.Credential = make(map[string]string, len(u.Credential))
		}
		for k, v := range u.Credential {
			encrypted, err := encrypt(v)
			if err != nil {
				return err
			}
			c.Credential[k] = encrypted
		}
	}
	if u.Actions != nil {
		c.Actions = u.Actions
	}
	return nil
}
