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

// Package connector holds the declarative description of how to call an
// external inference endpoint: protocol, parameters, encrypted credentials,
// and a list of templated HTTP actions.
package connector

import (
	"fmt"
	"regexp"
)

// ActionType names the intent an action serves.
type ActionType string

const (
	ActionPredict ActionType = "PREDICT"
)

// ProtocolHTTP is the only protocol shipped by default. The field stays a
// free-form discriminator so new executors can be registered by name without
// touching the lifecycle controller.
const ProtocolHTTP = "http"

// Action describes one invokable endpoint of a connector.
type Action struct {
	ActionType  ActionType        `json:"action_type"`
	Method      string            `json:"method"`
	URL         string            `json:"url"`
	Headers     map[string]string `json:"headers,omitempty"`
	RequestBody string            `json:"request_body,omitempty"`
}

// Connector is the stored form of a connector. Credential values are held
// encrypted; they are decrypted only on a clone, in memory, for the duration
// of a call.
type Connector struct {
	Name        string            `json:"name,omitempty"`
	Version     string            `json:"version,omitempty"`
	Description string            `json:"description,omitempty"`
	Protocol    string            `json:"protocol,omitempty"`
	Parameters  map[string]string `json:"parameters,omitempty"`
	Credential  map[string]string `json:"credential,omitempty"`
	Actions     []Action          `json:"actions,omitempty"`

	// ACL for stand-alone connectors. Access values match the model-group
	// access modes: public, private, restricted.
	Owner        string   `json:"owner,omitempty"`
	BackendRoles []string `json:"backend_roles,omitempty"`
	Access       string   `json:"access,omitempty"`
}

// CryptFunc transforms a single credential value. The encryptor supplies one
// direction at a time.
type CryptFunc func(value string) (string, error)

// Clone returns a deep copy. Every invocation decrypts on a clone so the
// plaintext never reaches the shared model cache.
func (c *Connector) Clone() *Connector {
	if c == nil {
		return nil
	}
	cp := &Connector{
		Name:        c.Name,
		Version:     c.Version,
		Description: c.Description,
		Protocol:    c.Protocol,
		Owner:       c.Owner,
		Access:      c.Access,
	}
	if c.BackendRoles != nil {
		cp.BackendRoles = append([]string(nil), c.BackendRoles...)
	}
	if c.Parameters != nil {
		cp.Parameters = make(map[string]string, len(c.Parameters))
		for k, v := range c.Parameters {
			cp.Parameters[k] = v
		}
	}
	if c.Credential != nil {
		cp.Credential = make(map[string]string, len(c.Credential))
		for k, v := range c.Credential {
			cp.Credential[k] = v
		}
	}
	if c.Actions != nil {
		cp.Actions = make([]Action, len(c.Actions))
		for i, a := range c.Actions {
			cp.Actions[i] = a
			if a.Headers != nil {
				cp.Actions[i].Headers = make(map[string]string, len(a.Headers))
				for k, v := range a.Headers {
					cp.Actions[i].Headers[k] = v
				}
			}
		}
	}
	return cp
}

// Decrypt replaces every credential value with fn(value). Callers must only
// do this on a clone.
func (c *Connector) Decrypt(fn CryptFunc) error {
	return c.mapCredential(fn, "decrypt")
}

// Encrypt replaces every credential value with fn(value).
func (c *Connector) Encrypt(fn CryptFunc) error {
	return c.mapCredential(fn, "encrypt")
}

func (c *Connector) mapCredential(fn CryptFunc, op string) error {
	for k, v := range c.Credential {
		out, err := fn(v)
		if err != nil {
			return fmt.Errorf("failed to %s credential %q: %w", op, k, err)
		}
		c.Credential[k] = out
	}
	return nil
}

// FindAction returns the action matching actionType, or nil.
func (c *Connector) FindAction(actionType ActionType) *Action {
	for i := range c.Actions {
		if c.Actions[i].ActionType == actionType {
			return &c.Actions[i]
		}
	}
	return nil
}

// ValidateURLs checks every action URL against the trusted endpoint
// allow-list. URLs are checked after parameter substitution so a template
// cannot smuggle an untrusted host through a placeholder.
func (c *Connector) ValidateURLs(trusted []*regexp.Regexp) error {
	for _, action := range c.Actions {
		resolved := Substitute(action.URL, c.Parameters, nil)
		if !matchesAny(resolved, trusted) {
			return fmt.Errorf("connector URL is not matching the trusted connector endpoint regex, URL is: %s", resolved)
		}
	}
	return nil
}

func matchesAny(url string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}
