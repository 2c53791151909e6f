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
	"fmt"

	"mlplane/platform/memory"
	"mlplane/platform/shared/logger"
	"mlplane/platform/shared/mlerror"
	"mlplane/platform/tensor"
	"mlplane/platform/tools"
)

// FlowRunner executes the agent's tools strictly in declaration order. Each
// step's output is published to the following steps as "<name>.output"; the
// run result is the last step's output plus any step marked for inclusion.
type FlowRunner struct {
	mem memory.Store
	log *logger.Logger
}

// NewFlowRunner builds a flow runner. mem may be nil when the agent declares
// no memory.
func NewFlowRunner(mem memory.Store) *FlowRunner {
	return &FlowRunner{mem: mem, log: logger.New("agent.flow")}
}

func (r *FlowRunner) Run(ctx context.Context, ag *MLAgent, params map[string]string) (interface{}, error) {
	if len(ag.Tools) == 0 {
		return nil, mlerror.New(mlerror.StatusInvalidInput, "no tool configured for agent %s", ag.Name)
	}

	var output []tensor.ModelTensor
	for i, spec := range ag.Tools {
		toolParams := mergeParams(ag.Parameters, spec.Parameters, params)
		tool, err := tools.Create(spec.Type, toolParams)
		if err != nil {
			return nil, err
		}
		name := spec.Name
		if name == "" {
			name = spec.Type
		}

		result, err := tool.Run(ctx, toolParams)
		if err != nil {
			return nil, fmt.Errorf("tool %s failed: %w", name, err)
		}
		params[name+".output"] = result

		if spec.IncludeOutputInResponse || i == len(ag.Tools)-1 {
			output = append(output, tensor.ModelTensor{Name: name, Result: result})
		}
	}

	r.recordTrace(ctx, params, output)
	return output, nil
}

// recordTrace appends the final outputs to the conversation when the executor
// acquired memory for this run. Failure to record never fails the run.
func (r *FlowRunner) recordTrace(ctx context.Context, params map[string]string, output []tensor.ModelTensor) {
	if r.mem == nil || params[ParamMemoryID] == "" {
		return
	}
	last := output[len(output)-1]
	_, err := r.mem.CreateInteraction(ctx, &memory.Interaction{
		ConversationID: params[ParamMemoryID],
		ParentID:       params[ParamParentInteractionID],
		Origin:         "flow_agent",
		Response:       last.Result,
		TraceNum:       1,
	})
	if err != nil {
		r.log.Warn("", "failed to record flow trace", map[string]interface{}{
			"conversation_id": params[ParamMemoryID],
			"error":           err.Error(),
		})
	}
}

// mergeParams layers parameter maps left to right, later maps winning.
func mergeParams(layers ...map[string]string) map[string]string {
	merged := make(map[string]string)
	for _, layer := range layers {
		for k, v := range layer {
			merged[k] = v
		}
	}
	return merged
}
