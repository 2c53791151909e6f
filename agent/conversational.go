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
	"strconv"
	"strings"

	"mlplane/platform/engine"
	"mlplane/platform/memory"
	"mlplane/platform/shared/logger"
	"mlplane/platform/shared/mlerror"
	"mlplane/platform/tensor"
	"mlplane/platform/tools"
)

// Parameter keys shared between the executor and the runners.
const (
	ParamQuestion            = "question"
	ParamMemoryID            = "memory_id"
	ParamParentInteractionID = "parent_interaction_id"
	ParamMaxIterations       = "max_iteration"
)

const defaultMaxIterations = 3

// ConversationalRunner drives a ReAct loop: the LLM reasons over the question
// and the tool descriptions, the runner executes the chosen tool, and the
// observation feeds the next reasoning step until the model produces a final
// answer or the iteration budget runs out.
type ConversationalRunner struct {
	caller ModelCaller
	mem    memory.Store
	log    *logger.Logger
}

// NewConversationalRunner builds a conversational runner. mem may be nil.
func NewConversationalRunner(caller ModelCaller, mem memory.Store) *ConversationalRunner {
	return &ConversationalRunner{caller: caller, mem: mem, log: logger.New("agent.conversational")}
}

func (r *ConversationalRunner) Run(ctx context.Context, ag *MLAgent, params map[string]string) (interface{}, error) {
	if ag.LLM == nil || ag.LLM.ModelID == "" {
		return nil, mlerror.New(mlerror.StatusInvalidInput, "conversational agent %s has no llm model configured", ag.Name)
	}
	question := params[ParamQuestion]
	if question == "" {
		return nil, mlerror.New(mlerror.StatusInvalidInput, "question is required for conversational agent")
	}

	maxIterations := defaultMaxIterations
	if s := params[ParamMaxIterations]; s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			maxIterations = n
		}
	}

	var scratchpad strings.Builder
	lastResponse := ""
	for step := 0; step < maxIterations; step++ {
		prompt := r.buildPrompt(ag, question, scratchpad.String())
		llmParams := mergeParams(ag.LLM.Parameters, map[string]string{
			"prompt":      prompt,
			ParamQuestion: question,
		})

		out, err := r.caller.Predict(ctx, ag.LLM.ModelID, &engine.Input{Parameters: llmParams})
		if err != nil {
			return nil, err
		}
		response := extractResponse(out)
		lastResponse = response

		if answer, ok := parseFinalAnswer(response); ok {
			r.saveStep(ctx, params, question, answer, step)
			return answer, nil
		}

		action, actionInput, ok := parseAction(response)
		if !ok {
			// the model neither answered nor acted; return what it said
			r.saveStep(ctx, params, question, response, step)
			return response, nil
		}

		observation, err := r.runTool(ctx, ag, action, actionInput, params)
		if err != nil {
			observation = fmt.Sprintf("tool %s failed: %v", action, err)
		}
		fmt.Fprintf(&scratchpad, "%s\nObservation: %s\n", response, observation)
		r.saveTrace(ctx, params, action, actionInput, observation, step)
	}

	r.saveStep(ctx, params, question, lastResponse, maxIterations)
	return lastResponse, nil
}

func (r *ConversationalRunner) buildPrompt(ag *MLAgent, question, scratchpad string) string {
	var b strings.Builder
	b.WriteString("Answer the question using the tools below when needed.\n\nTools:\n")
	for _, spec := range ag.Tools {
		name := spec.Name
		if name == "" {
			name = spec.Type
		}
		fmt.Fprintf(&b, "- %s: %s\n", name, spec.Description)
	}
	b.WriteString("\nUse the format:\nThought: reasoning\nAction: tool name\nAction Input: tool input\nObservation: tool result\n...\nFinal Answer: the answer\n\n")
	fmt.Fprintf(&b, "Question: %s\n", question)
	if scratchpad != "" {
		b.WriteString(scratchpad)
	}
	return b.String()
}

func (r *ConversationalRunner) runTool(ctx context.Context, ag *MLAgent, name, input string, params map[string]string) (string, error) {
	for _, spec := range ag.Tools {
		specName := spec.Name
		if specName == "" {
			specName = spec.Type
		}
		if specName != name {
			continue
		}
		toolParams := mergeParams(ag.Parameters, spec.Parameters, params)
		toolParams["input"] = input
		tool, err := tools.Create(spec.Type, toolParams)
		if err != nil {
			return "", err
		}
		return tool.Run(ctx, toolParams)
	}
	return "", fmt.Errorf("agent %s has no tool named %s", ag.Name, name)
}

// saveTrace records one tool invocation under the root interaction.
func (r *ConversationalRunner) saveTrace(ctx context.Context, params map[string]string, action, input, observation string, step int) {
	if r.mem == nil || params[ParamMemoryID] == "" {
		return
	}
	_, err := r.mem.CreateInteraction(ctx, &memory.Interaction{
		ConversationID: params[ParamMemoryID],
		ParentID:       params[ParamParentInteractionID],
		Input:          input,
		Response:       observation,
		Origin:         action,
		TraceNum:       step + 1,
	})
	if err != nil {
		r.log.Warn("", "failed to record tool trace", map[string]interface{}{"error": err.Error()})
	}
}

// saveStep records the final exchange for the step.
func (r *ConversationalRunner) saveStep(ctx context.Context, params map[string]string, question, answer string, step int) {
	if r.mem == nil || params[ParamMemoryID] == "" {
		return
	}
	_, err := r.mem.CreateInteraction(ctx, &memory.Interaction{
		ConversationID: params[ParamMemoryID],
		ParentID:       params[ParamParentInteractionID],
		Input:          question,
		Response:       answer,
		Origin:         "llm",
		TraceNum:       step + 1,
	})
	if err != nil {
		r.log.Warn("", "failed to record answer", map[string]interface{}{"error": err.Error()})
	}
}

// extractResponse pulls the text out of a predict result: a Result string if
// the tensor carries one, otherwise the "response" entry of data_as_map.
func extractResponse(out *tensor.TensorOutput) string {
	for _, group := range out.ModelOutputs {
		for _, t := range group.ModelTensors {
			if t.Result != "" {
				return t.Result
			}
			if t.DataAsMap != nil {
				if s, ok := t.DataAsMap["response"].(string); ok {
					return s
				}
			}
		}
	}
	return ""
}

func parseFinalAnswer(response string) (string, bool) {
	idx := strings.Index(response, "Final Answer:")
	if idx < 0 {
		return "", false
	}
	return strings.TrimSpace(response[idx+len("Final Answer:"):]), true
}

// parseAction extracts the tool name and its input from a ReAct step. The
// action input runs to the end of its line.
func parseAction(response string) (action, input string, ok bool) {
	actionIdx := strings.Index(response, "Action:")
	inputIdx := strings.Index(response, "Action Input:")
	if actionIdx < 0 || inputIdx < 0 || inputIdx < actionIdx {
		return "", "", false
	}
	action = firstLine(response[actionIdx+len("Action:"):])
	input = firstLine(response[inputIdx+len("Action Input:"):])
	if action == "" {
		return "", "", false
	}
	return action, input, true
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
