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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlplane/platform/mlmodel"
)

type fakeLister struct {
	lastQuery ModelQuery
	models    []*mlmodel.Model
	total     int
}

func (f *fakeLister) ListModels(ctx context.Context, q ModelQuery) ([]*mlmodel.Model, int, error) {
	f.lastQuery = q
	return f.models, f.total, nil
}

type fakeIndex struct {
	lastSearch *DetectorSearch
	detectors  []Detector
}

func (f *fakeIndex) SearchDetectors(ctx context.Context, s *DetectorSearch) ([]Detector, int, error) {
	f.lastSearch = s
	return f.detectors, len(f.detectors), nil
}

func TestListModelsToolSkipsHidden(t *testing.T) {
	hidden := true
	lister := &fakeLister{
		models: []*mlmodel.Model{
			{ModelID: "m-1", Name: "embedder", Algorithm: mlmodel.AlgorithmTextEmbedding, State: mlmodel.StateDeployed},
			{ModelID: "m-2", Name: "internal", IsHidden: &hidden},
		},
		total: 2,
	}
	tool := NewListModelsTool(lister)

	out, err := tool.Run(context.Background(), map[string]string{
		"algorithm": "TEXT_EMBEDDING",
		"size":      "5",
	})
	require.NoError(t, err)

	var parsed struct {
		Models []map[string]interface{} `json:"models"`
		Total  int                      `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	require.Len(t, parsed.Models, 1)
	assert.Equal(t, "m-1", parsed.Models[0]["model_id"])
	assert.Equal(t, 2, parsed.Total)

	assert.Equal(t, "TEXT_EMBEDDING", lister.lastQuery.Algorithm)
	assert.Equal(t, 5, lister.lastQuery.Size)
}

func TestListModelsToolValidate(t *testing.T) {
	tool := NewListModelsTool(&fakeLister{})
	assert.True(t, tool.Validate(nil))
	assert.True(t, tool.Validate(map[string]string{"size": "10"}))
	assert.False(t, tool.Validate(map[string]string{"size": "0"}))
	assert.False(t, tool.Validate(map[string]string{"size": "lots"}))
}

func TestParseSortOrder(t *testing.T) {
	assert.True(t, parseSortOrder(""))
	assert.True(t, parseSortOrder("asc"))
	assert.True(t, parseSortOrder("ASC"))
	assert.True(t, parseSortOrder("anything"))
	assert.False(t, parseSortOrder("desc"))
	assert.False(t, parseSortOrder("DESC"))
}

func TestBuildDetectorQueryEmptyParamsMatchesAll(t *testing.T) {
	q := BuildDetectorQuery(nil)
	must := q["bool"].(map[string]interface{})["must"].([]interface{})
	require.Len(t, must, 1)
	assert.Contains(t, must[0].(map[string]interface{}), "match_all")
}

func TestBuildDetectorQueryAssemblesMustClauses(t *testing.T) {
	q := BuildDetectorQuery(map[string]string{
		"detectorName": "cpu-spike",
		"detectorType": "realtime,historical",
		"enabled":      "true",
		"triggerName":  "high-cpu",
	})
	must := q["bool"].(map[string]interface{})["must"].([]interface{})
	require.Len(t, must, 4)

	kinds := make(map[string]int)
	for _, clause := range must {
		for k := range clause.(map[string]interface{}) {
			kinds[k]++
		}
	}
	assert.Equal(t, 2, kinds["term"])
	assert.Equal(t, 1, kinds["terms"])
	assert.Equal(t, 1, kinds["nested"])
}

func TestBuildDetectorQueryNestedTrigger(t *testing.T) {
	q := BuildDetectorQuery(map[string]string{"triggerName": "high-cpu"})
	must := q["bool"].(map[string]interface{})["must"].([]interface{})
	require.Len(t, must, 1)

	nested := must[0].(map[string]interface{})["nested"].(map[string]interface{})
	assert.Equal(t, "triggers", nested["path"])
	inner := nested["query"].(map[string]interface{})["bool"].(map[string]interface{})["must"].([]interface{})
	match := inner[0].(map[string]interface{})["match"].(map[string]interface{})
	assert.Equal(t, "high-cpu", match["triggers.name"])
}

func TestSearchDetectorsToolRun(t *testing.T) {
	index := &fakeIndex{
		detectors: []Detector{{ID: "d-1", Name: "cpu-spike", Enabled: true}},
	}
	tool := NewSearchDetectorsTool(index)

	out, err := tool.Run(context.Background(), map[string]string{
		"detectorName": "cpu-spike",
		"sortOrder":    "desc",
		"sortString":   "last_update_time",
		"size":         "10",
		"startIndex":   "20",
	})
	require.NoError(t, err)
	assert.Contains(t, out, `"d-1"`)

	require.NotNil(t, index.lastSearch)
	assert.Equal(t, "last_update_time", index.lastSearch.SortField)
	assert.False(t, index.lastSearch.SortAscending)
	assert.Equal(t, 10, index.lastSearch.Size)
	assert.Equal(t, 20, index.lastSearch.From)
}

func TestSearchDetectorsToolDefaults(t *testing.T) {
	index := &fakeIndex{}
	tool := NewSearchDetectorsTool(index)

	_, err := tool.Run(context.Background(), map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, "name.keyword", index.lastSearch.SortField)
	assert.True(t, index.lastSearch.SortAscending)
	assert.Equal(t, 20, index.lastSearch.Size)
	assert.Equal(t, 0, index.lastSearch.From)
}

func TestRegistry(t *testing.T) {
	Register("EchoTool", func(params map[string]string) (Tool, error) {
		return NewListModelsTool(&fakeLister{}), nil
	})

	tool, err := Create("EchoTool", nil)
	require.NoError(t, err)
	assert.NotNil(t, tool)
	assert.Contains(t, List(), "EchoTool")

	_, err = Create("NoSuchTool", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no factory registered for tool type "NoSuchTool"`)
}
