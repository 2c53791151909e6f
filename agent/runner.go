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

package agent

import (
	"context"
	"errors"

	"mlplane/platform/engine"
	"mlplane/platform/tensor"
)

// ErrNotFound is returned by Getter implementations when no agent exists
// under the requested id.
var ErrNotFound = errors.New("agent not found")

// Runner executes one agent run. The result may be any of the shapes
// tensor.Normalize accepts; the executor normalizes it for the caller.
type Runner interface {
	Run(ctx context.Context, ag *MLAgent, params map[string]string) (interface{}, error)
}

// ModelCaller invokes a deployed model. Satisfied by the lifecycle
// controller.
type ModelCaller interface {
	Predict(ctx context.Context, modelID string, input *engine.Input) (*tensor.TensorOutput, error)
}

// Getter resolves agent documents by id. Satisfied by the document store.
type Getter interface {
	GetAgent(ctx context.Context, agentID string) (*MLAgent, error)
}
