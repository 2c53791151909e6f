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

	"mlplane/platform/memory"
	"mlplane/platform/shared/logger"
	"mlplane/platform/shared/mlerror"
	"mlplane/platform/tensor"
)

// Executor resolves an agent document, dispatches it to the runner matching
// its type, and normalizes whatever the runner returns into the uniform
// tensor-output shape.
type Executor struct {
	agents   Getter
	caller   ModelCaller
	mem      memory.Store
	memories map[string]memory.Factory
	log      *logger.Logger
}

// NewExecutor builds an executor. mem may be nil when no memory backend is
// configured; agents that declare memory then fail at execution time. Memory
// factories are derived from the same store the runners record traces
// through, so an issued memory_id always refers to a conversation the run
// can actually persist into.
func NewExecutor(agents Getter, caller ModelCaller, mem memory.Store) *Executor {
	memories := make(map[string]memory.Factory)
	if mem != nil {
		memories[memory.TypeConversationIndex] = memory.NewStoreFactory(mem)
	}
	return &Executor{
		agents:   agents,
		caller:   caller,
		mem:      mem,
		memories: memories,
		log:      logger.New("agent.executor"),
	}
}

// Execute runs the agent and returns exactly one outer tensor group. Runner
// failures are propagated unwrapped.
func (e *Executor) Execute(ctx context.Context, agentID string, params map[string]string) (*tensor.TensorOutput, error) {
	if params == nil {
		params = make(map[string]string)
	}

	ag, err := e.agents.GetAgent(ctx, agentID)
	if errors.Is(err, ErrNotFound) {
		return nil, mlerror.New(mlerror.StatusNotFound,
			"Failed to find agent with the provided agent id: %s", agentID)
	}
	if err != nil {
		return nil, mlerror.Wrap(mlerror.StatusInternal, err, "failed to load agent %s", agentID)
	}

	runner, err := e.runnerFor(ag)
	if err != nil {
		return nil, err
	}

	if ag.Memory != nil {
		if err := e.acquireMemory(ctx, ag, params); err != nil {
			return nil, err
		}
	}

	result, err := runner.Run(ctx, ag, params)
	if err != nil {
		return nil, err
	}

	out, err := tensor.Normalize(result)
	if err != nil {
		return nil, mlerror.Wrap(mlerror.StatusSerialization, err, "failed to normalize agent output")
	}
	e.log.Info("", "agent executed", map[string]interface{}{
		"agent_id":   agentID,
		"agent_type": ag.Type,
	})
	return out, nil
}

func (e *Executor) runnerFor(ag *MLAgent) (Runner, error) {
	switch ag.Type {
	case TypeFlow:
		return NewFlowRunner(e.mem), nil
	case TypeConversational:
		return NewConversationalRunner(e.caller, e.mem), nil
	default:
		return nil, mlerror.New(mlerror.StatusInvalidInput, "unsupported agent type: %s", ag.Type)
	}
}

// acquireMemory resolves the agent's memory factory, binds or creates the
// conversation, saves the root interaction, and injects memory_id and
// parent_interaction_id into the run parameters.
func (e *Executor) acquireMemory(ctx context.Context, ag *MLAgent, params map[string]string) error {
	factory, ok := e.memories[ag.Memory.Type]
	if !ok {
		return mlerror.New(mlerror.StatusInvalidInput,
			"no memory backend available for type %s declared by agent %s", ag.Memory.Type, ag.Name)
	}

	mem, err := factory.Create(ctx, params[ParamMemoryID], ag.Name, "agent")
	if err != nil {
		return mlerror.Wrap(mlerror.StatusInternal, err, "failed to create conversation for agent %s", ag.Name)
	}

	rootID, err := mem.Save(ctx, &memory.Interaction{
		Input:  params[ParamQuestion],
		Origin: ag.Name,
	})
	if err != nil {
		return mlerror.Wrap(mlerror.StatusInternal, err, "failed to create root interaction for agent %s", ag.Name)
	}

	params[ParamMemoryID] = mem.ConversationID()
	params[ParamParentInteractionID] = rootID
	return nil
}
