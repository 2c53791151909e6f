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

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"mlplane/platform/mlmodel"
)

// ListModelsToolType is the registry name of ListModelsTool.
const ListModelsToolType = "ListModelsTool"

// ModelQuery filters a model listing.
type ModelQuery struct {
	Algorithm string
	State     string
	From      int
	Size      int
}

// ModelLister is the slice of the model store this tool needs.
type ModelLister interface {
	ListModels(ctx context.Context, q ModelQuery) ([]*mlmodel.Model, int, error)
}

// ListModelsTool lists registered models, optionally filtered by algorithm
// and state. Hidden models are skipped.
type ListModelsTool struct {
	lister ModelLister
}

// NewListModelsTool builds the tool against a model lister.
func NewListModelsTool(lister ModelLister) *ListModelsTool {
	return &ListModelsTool{lister: lister}
}

func (t *ListModelsTool) Name() string { return ListModelsToolType }

func (t *ListModelsTool) Description() string {
	return "Lists registered ML models with their id, name, algorithm and state."
}

func (t *ListModelsTool) Validate(params map[string]string) bool {
	if v, ok := params["size"]; ok {
		if n, err := strconv.Atoi(v); err != nil || n <= 0 {
			return false
		}
	}
	return true
}

type modelRow struct {
	ModelID   string `json:"model_id"`
	Name      string `json:"name,omitempty"`
	Algorithm string `json:"algorithm"`
	State     string `json:"model_state,omitempty"`
}

func (t *ListModelsTool) Run(ctx context.Context, params map[string]string) (string, error) {
	q := ModelQuery{
		Algorithm: params["algorithm"],
		State:     params["model_state"],
		Size:      20,
	}
	if v, ok := params["size"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return "", fmt.Errorf("invalid size parameter %q: %w", v, err)
		}
		q.Size = n
	}

	models, total, err := t.lister.ListModels(ctx, q)
	if err != nil {
		return "", fmt.Errorf("failed to list models: %w", err)
	}

	rows := make([]modelRow, 0, len(models))
	for _, m := range models {
		if m.Hidden() {
			continue
		}
		rows = append(rows, modelRow{
			ModelID:   m.ModelID,
			Name:      m.Name,
			Algorithm: string(m.Algorithm),
			State:     string(m.State),
		})
	}

	out, err := json.Marshal(map[string]interface{}{
		"models": rows,
		"total":  total,
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}
