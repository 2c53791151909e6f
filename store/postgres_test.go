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

package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlplane/platform/mlmodel"
	"mlplane/platform/tools"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db), mock
}

func modelDoc(t *testing.T, m *mlmodel.Model) []byte {
	t.Helper()
	doc, err := json.Marshal(m)
	require.NoError(t, err)
	return doc
}

func TestGetModelExcludesContent(t *testing.T) {
	s, mock := newMockStore(t)

	doc := modelDoc(t, &mlmodel.Model{
		Name:      "embedder",
		Algorithm: mlmodel.AlgorithmTextEmbedding,
		State:     mlmodel.StateRegistered,
	})
	mock.ExpectQuery(`SELECT doc FROM ml_models WHERE model_id = \$1`).
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).AddRow(doc))

	m, err := s.GetModel(context.Background(), "m1", true)
	require.NoError(t, err)
	assert.Equal(t, "m1", m.ModelID)
	assert.Equal(t, "embedder", m.Name)
	assert.Empty(t, m.Content)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetModelWithContent(t *testing.T) {
	s, mock := newMockStore(t)

	doc := modelDoc(t, &mlmodel.Model{
		Name:      "embedder",
		Algorithm: mlmodel.AlgorithmTextEmbedding,
	})
	mock.ExpectQuery(`SELECT doc, model_content, old_model_content FROM ml_models`).
		WithArgs("m1").
		WillReturnRows(sqlmock.NewRows([]string{"doc", "model_content", "old_model_content"}).
			AddRow(doc, "blob", "old-blob"))

	m, err := s.GetModel(context.Background(), "m1", false)
	require.NoError(t, err)
	assert.Equal(t, "blob", m.Content)
	assert.Equal(t, "old-blob", m.OldContent)
}

func TestGetModelNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT doc FROM ml_models`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}))

	_, err := s.GetModel(context.Background(), "missing", true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPutModelStripsContentFromDoc(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO ml_models`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	m := &mlmodel.Model{
		ModelID:    "m1",
		Name:       "embedder",
		Algorithm:  mlmodel.AlgorithmTextEmbedding,
		State:      mlmodel.StateRegistered,
		Content:    "blob",
		OldContent: "old",
	}
	err := s.PutModel(context.Background(), m, WriteOptions{RefreshImmediate: true})
	require.NoError(t, err)
	// the caller's copy keeps its content
	assert.Equal(t, "blob", m.Content)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPutModelGroupConflict(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE ml_model_groups`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("g1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	g := &mlmodel.ModelGroup{ModelGroupID: "g1", Name: "group", LatestVersion: 3}
	err := s.PutModelGroup(context.Background(), g, ConcurrencyToken{SeqNo: 7, PrimaryTerm: 1}, WriteOptions{})
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestPutModelGroupInsertsNewGroup(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE ml_model_groups`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("g-new").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`INSERT INTO ml_model_groups`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	g := &mlmodel.ModelGroup{ModelGroupID: "g-new", Name: "group"}
	err := s.PutModelGroup(context.Background(), g, ConcurrencyToken{}, WriteOptions{})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetModelGroupReturnsToken(t *testing.T) {
	s, mock := newMockStore(t)

	doc, err := json.Marshal(&mlmodel.ModelGroup{Name: "group", LatestVersion: 4})
	require.NoError(t, err)
	mock.ExpectQuery(`SELECT doc, seq_no, primary_term FROM ml_model_groups`).
		WithArgs("g1").
		WillReturnRows(sqlmock.NewRows([]string{"doc", "seq_no", "primary_term"}).
			AddRow(doc, int64(12), int64(2)))

	g, token, err := s.GetModelGroup(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, 4, g.LatestVersion)
	assert.Equal(t, ConcurrencyToken{SeqNo: 12, PrimaryTerm: 2}, token)
}

func TestListModelsFilters(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM ml_models WHERE algorithm = \$1`).
		WithArgs("REMOTE").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	doc := modelDoc(t, &mlmodel.Model{Name: "gpt", Algorithm: mlmodel.AlgorithmRemote})
	mock.ExpectQuery(`SELECT model_id, doc FROM ml_models`).
		WithArgs("REMOTE", 50, 0).
		WillReturnRows(sqlmock.NewRows([]string{"model_id", "doc"}).AddRow("m2", doc))

	models, total, err := s.ListModels(context.Background(), tools.ModelQuery{Algorithm: "REMOTE"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, models, 1)
	assert.Equal(t, "m2", models[0].ModelID)
}

func TestDetectorConditions(t *testing.T) {
	tests := []struct {
		name      string
		params    map[string]string
		wantConds int
		wantErr   bool
	}{
		{
			name:      "empty params means match_all",
			params:    map[string]string{},
			wantConds: 0,
		},
		{
			name: "name pattern and type",
			params: map[string]string{
				"detectorNamePattern": "cpu-*",
				"detectorType":        "SINGLE_ENTITY,MULTI_ENTITY",
			},
			wantConds: 2,
		},
		{
			name: "trigger name becomes nested condition",
			params: map[string]string{
				"triggerName": "latency",
			},
			wantConds: 1,
		},
		{
			name: "all filters",
			params: map[string]string{
				"detectorName":    "exact",
				"indices":         "logs-*",
				"highCardinality": "true",
				"enabled":         "false",
			},
			wantConds: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query := buildDetectorQuery(tt.params)
			conds, args, err := detectorConditions(query)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, conds, tt.wantConds)
			assert.Len(t, args, tt.wantConds)
		})
	}
}

// buildDetectorQuery uses the tool-side assembly so the interpreter is
// tested against real query shapes.
func buildDetectorQuery(params map[string]string) map[string]interface{} {
	return tools.BuildDetectorQuery(params)
}

func TestSearchDetectorsSortAndPaging(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM ml_detectors`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	doc, err := json.Marshal(&tools.Detector{Name: "cpu-east", Enabled: true})
	require.NoError(t, err)
	mock.ExpectQuery(`SELECT detector_id, doc FROM ml_detectors`).
		WithArgs(10, 5).
		WillReturnRows(sqlmock.NewRows([]string{"detector_id", "doc"}).AddRow("d1", doc))

	detectors, total, err := s.SearchDetectors(context.Background(), &tools.DetectorSearch{
		Query:         map[string]interface{}{"bool": map[string]interface{}{"must": []interface{}{}}},
		SortField:     "name.keyword",
		SortAscending: true,
		From:          5,
		Size:          10,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, detectors, 1)
	assert.Equal(t, "d1", detectors[0].ID)
}

func TestSearchDetectorsRejectsUnknownSort(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM ml_detectors`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, _, err := s.SearchDetectors(context.Background(), &tools.DetectorSearch{
		Query:     map[string]interface{}{"bool": map[string]interface{}{}},
		SortField: "created_at; DROP TABLE ml_detectors",
	})
	assert.ErrorContains(t, err, "unsupported sort field")
}
