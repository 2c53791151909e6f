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

package tensor

import (
	"fmt"
)

// Normalize converts an arbitrary runner or tool result into a TensorOutput
// with exactly one outer tensor group. The accepted shapes are a single
// tensor, a list of tensors, a list of tensor groups, a list of strings, a
// plain string, and an already-built TensorOutput whose groups get flattened.
func Normalize(v interface{}) (*TensorOutput, error) {
	switch out := v.(type) {
	case ModelTensor:
		return Single(out), nil
	case *ModelTensor:
		return Single(*out), nil
	case []ModelTensor:
		return &TensorOutput{ModelOutputs: []ModelTensors{{ModelTensors: out}}}, nil
	case ModelTensors:
		return &TensorOutput{ModelOutputs: []ModelTensors{out}}, nil
	case []ModelTensors:
		return &TensorOutput{ModelOutputs: []ModelTensors{Flatten(out)}}, nil
	case []string:
		encoded, err := EncodeStringList(out)
		if err != nil {
			return nil, fmt.Errorf("failed to encode string list result: %w", err)
		}
		return Single(ModelTensor{Result: encoded}), nil
	case string:
		return Single(ModelTensor{Result: out}), nil
	case *TensorOutput:
		return &TensorOutput{ModelOutputs: []ModelTensors{Flatten(out.ModelOutputs)}}, nil
	case TensorOutput:
		return &TensorOutput{ModelOutputs: []ModelTensors{Flatten(out.ModelOutputs)}}, nil
	default:
		return nil, fmt.Errorf("unsupported result type %T", v)
	}
}
