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

// Package tensor defines the uniform output shape returned by every predict
// and agent execution: an ordered sequence of tensor groups, each an ordered
// sequence of named tensors.
package tensor

import "encoding/json"

// ModelTensor is a single named output. Exactly which of DataAsMap, Data, or
// Result is populated depends on the producer: remote connectors fill
// DataAsMap with the parsed response root, local models fill Data, and agents
// may fill Result with a plain string.
type ModelTensor struct {
	Name      string                 `json:"name,omitempty"`
	DataAsMap map[string]interface{} `json:"data_as_map,omitempty"`
	Data      []float64              `json:"data,omitempty"`
	Result    string                 `json:"result,omitempty"`
}

// ModelTensors is an ordered group of tensors produced by one output step.
type ModelTensors struct {
	ModelTensors []ModelTensor `json:"output"`
}

// TensorOutput is the uniform result shape.
type TensorOutput struct {
	ModelOutputs []ModelTensors `json:"inference_results"`
}

// Single wraps one tensor into a complete TensorOutput.
func Single(t ModelTensor) *TensorOutput {
	return &TensorOutput{ModelOutputs: []ModelTensors{{ModelTensors: []ModelTensor{t}}}}
}

// Flatten collapses groups into a single group preserving tensor order.
func Flatten(groups []ModelTensors) ModelTensors {
	var flat []ModelTensor
	for _, g := range groups {
		flat = append(flat, g.ModelTensors...)
	}
	return ModelTensors{ModelTensors: flat}
}

// FromJSONRoot builds the standard remote-response tensor: the parsed JSON
// root attached as data_as_map under the name "response".
func FromJSONRoot(root map[string]interface{}) *TensorOutput {
	return Single(ModelTensor{Name: "response", DataAsMap: root})
}

// EncodeStringList renders values the way agent runners report string lists,
// as the JSON encoding of the list.
func EncodeStringList(values []string) (string, error) {
	b, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
