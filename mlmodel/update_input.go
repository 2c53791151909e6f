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

package mlmodel

import (
	"bytes"
	"encoding/json"
	"fmt"

	"mlplane/platform/connector"
)

// UpdateInput is the patch document accepted by the update operation. Absent
// fields leave the stored document untouched. Name is special: a patch may
// explicitly wipe it, which serializes as a literal null, and that null is
// preserved through a round trip. Unknown fields are skipped on read.
type UpdateInput struct {
	ModelID                string
	Name                   *string
	NameNull               bool
	Description            *string
	Version                *string
	ModelGroupID           *string
	Config                 *ModelConfig
	Connector              *connector.Connector
	ConnectorID            *string
	ConnectorUpdateContent *connector.UpdateContent
	LastUpdateTime         int64
}

// Field names in canonical serialization order.
const (
	fieldModelID                = "model_id"
	fieldName                   = "name"
	fieldDescription            = "description"
	fieldVersion                = "model_version"
	fieldModelGroupID           = "model_group_id"
	fieldModelConfig            = "model_config"
	fieldConnector              = "connector"
	fieldConnectorID            = "connector_id"
	fieldConnectorUpdateContent = "connector_update_content"
	fieldLastUpdatedTime        = "last_updated_time"
)

// MarshalJSON emits fields in canonical order, omitting absent values. An
// explicit null is emitted only for a wiped name.
func (u *UpdateInput) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	first := true
	emit := func(field string, value interface{}) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		keyBytes, err := json.Marshal(field)
		if err != nil {
			return err
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		valBytes, err := json.Marshal(value)
		if err != nil {
			return err
		}
		buf.Write(valBytes)
		return nil
	}

	if err := emit(fieldModelID, u.ModelID); err != nil {
		return nil, err
	}
	if u.NameNull {
		if err := emit(fieldName, nil); err != nil {
			return nil, err
		}
	} else if u.Name != nil {
		if err := emit(fieldName, *u.Name); err != nil {
			return nil, err
		}
	}
	if u.Description != nil {
		if err := emit(fieldDescription, *u.Description); err != nil {
			return nil, err
		}
	}
	if u.Version != nil {
		if err := emit(fieldVersion, *u.Version); err != nil {
			return nil, err
		}
	}
	if u.ModelGroupID != nil {
		if err := emit(fieldModelGroupID, *u.ModelGroupID); err != nil {
			return nil, err
		}
	}
	if u.Config != nil {
		if err := emit(fieldModelConfig, u.Config); err != nil {
			return nil, err
		}
	}
	if u.Connector != nil {
		if err := emit(fieldConnector, u.Connector); err != nil {
			return nil, err
		}
	}
	if u.ConnectorID != nil {
		if err := emit(fieldConnectorID, *u.ConnectorID); err != nil {
			return nil, err
		}
	}
	if u.ConnectorUpdateContent != nil {
		if err := emit(fieldConnectorUpdateContent, u.ConnectorUpdateContent); err != nil {
			return nil, err
		}
	}
	if u.LastUpdateTime != 0 {
		if err := emit(fieldLastUpdatedTime, u.LastUpdateTime); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the patch, tolerating unknown top-level fields and
// recording an explicit name null.
func (u *UpdateInput) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("malformed update input: %w", err)
	}

	*u = UpdateInput{}
	for field, value := range raw {
		switch field {
		case fieldModelID:
			if err := json.Unmarshal(value, &u.ModelID); err != nil {
				return fmt.Errorf("malformed %s: %w", field, err)
			}
		case fieldName:
			if isJSONNull(value) {
				u.NameNull = true
				continue
			}
			u.Name = new(string)
			if err := json.Unmarshal(value, u.Name); err != nil {
				return fmt.Errorf("malformed %s: %w", field, err)
			}
		case fieldDescription:
			if err := unmarshalOptString(value, &u.Description); err != nil {
				return fmt.Errorf("malformed %s: %w", field, err)
			}
		case fieldVersion:
			if err := unmarshalOptString(value, &u.Version); err != nil {
				return fmt.Errorf("malformed %s: %w", field, err)
			}
		case fieldModelGroupID:
			if err := unmarshalOptString(value, &u.ModelGroupID); err != nil {
				return fmt.Errorf("malformed %s: %w", field, err)
			}
		case fieldModelConfig:
			if isJSONNull(value) {
				continue
			}
			u.Config = &ModelConfig{}
			if err := json.Unmarshal(value, u.Config); err != nil {
				return fmt.Errorf("malformed %s: %w", field, err)
			}
		case fieldConnector:
			if isJSONNull(value) {
				continue
			}
			u.Connector = &connector.Connector{}
			if err := json.Unmarshal(value, u.Connector); err != nil {
				return fmt.Errorf("malformed %s: %w", field, err)
			}
		case fieldConnectorID:
			if err := unmarshalOptString(value, &u.ConnectorID); err != nil {
				return fmt.Errorf("malformed %s: %w", field, err)
			}
		case fieldConnectorUpdateContent:
			if isJSONNull(value) {
				continue
			}
			u.ConnectorUpdateContent = &connector.UpdateContent{}
			if err := json.Unmarshal(value, u.ConnectorUpdateContent); err != nil {
				return fmt.Errorf("malformed %s: %w", field, err)
			}
		case fieldLastUpdatedTime:
			if err := json.Unmarshal(value, &u.LastUpdateTime); err != nil {
				return fmt.Errorf("malformed %s: %w", field, err)
			}
		default:
			// Unknown fields are skipped for forward compatibility.
		}
	}
	return nil
}

func isJSONNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func unmarshalOptString(raw json.RawMessage, dst **string) error {
	if isJSONNull(raw) {
		return nil
	}
	*dst = new(string)
	return json.Unmarshal(raw, *dst)
}
