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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeShapes(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want []ModelTensor
	}{
		{
			name: "single tensor",
			in:   ModelTensor{Name: "response", Result: "ok"},
			want: []ModelTensor{{Name: "response", Result: "ok"}},
		},
		{
			name: "tensor pointer",
			in:   &ModelTensor{Name: "response", Data: []float64{1, 2}},
			want: []ModelTensor{{Name: "response", Data: []float64{1, 2}}},
		},
		{
			name: "tensor list",
			in:   []ModelTensor{{Name: "a"}, {Name: "b"}},
			want: []ModelTensor{{Name: "a"}, {Name: "b"}},
		},
		{
			name: "single group",
			in:   ModelTensors{ModelTensors: []ModelTensor{{Name: "a"}}},
			want: []ModelTensor{{Name: "a"}},
		},
		{
			name: "group list flattens in order",
			in: []ModelTensors{
				{ModelTensors: []ModelTensor{{Name: "a"}, {Name: "b"}}},
				{ModelTensors: []ModelTensor{{Name: "c"}}},
			},
			want: []ModelTensor{{Name: "a"}, {Name: "b"}, {Name: "c"}},
		},
		{
			name: "string list encodes as json",
			in:   []string{"response1", "response2"},
			want: []ModelTensor{{Result: `["response1","response2"]`}},
		},
		{
			name: "plain string",
			in:   "final answer",
			want: []ModelTensor{{Result: "final answer"}},
		},
		{
			name: "tensor output flattens groups",
			in: TensorOutput{ModelOutputs: []ModelTensors{
				{ModelTensors: []ModelTensor{{Name: "a"}}},
				{ModelTensors: []ModelTensor{{Name: "b"}}},
			}},
			want: []ModelTensor{{Name: "a"}, {Name: "b"}},
		},
		{
			name: "tensor output pointer flattens groups",
			in: &TensorOutput{ModelOutputs: []ModelTensors{
				{ModelTensors: []ModelTensor{{Name: "a"}}},
				{ModelTensors: []ModelTensor{{Name: "b"}, {Name: "c"}}},
			}},
			want: []ModelTensor{{Name: "a"}, {Name: "b"}, {Name: "c"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Normalize(tt.in)
			require.NoError(t, err)
			// every accepted shape collapses into exactly one outer group
			require.Len(t, out.ModelOutputs, 1)
			assert.Equal(t, tt.want, out.ModelOutputs[0].ModelTensors)
		})
	}
}

func TestNormalizeUnsupportedType(t *testing.T) {
	_, err := Normalize(42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported result type int")
}
