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
	"strings"
)

// SearchDetectorsToolType is the registry name of SearchDetectorsTool.
const SearchDetectorsToolType = "SearchDetectorsTool"

// Trigger is an alerting condition attached to a detector.
type Trigger struct {
	Name     string `json:"name"`
	Severity string `json:"severity,omitempty"`
}

// Detector is an anomaly-detector document as the search index returns it.
type Detector struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Type            string    `json:"detector_type,omitempty"`
	Indices         []string  `json:"indices,omitempty"`
	HighCardinality bool      `json:"high_cardinality,omitempty"`
	Enabled         bool      `json:"enabled"`
	Triggers        []Trigger `json:"triggers,omitempty"`
	LastUpdateTime  int64     `json:"last_update_time,omitempty"`
}

// DetectorSearch is one detector-index search: an assembled boolean query
// plus sort and pagination.
type DetectorSearch struct {
	Query         map[string]interface{}
	SortField     string
	SortAscending bool
	From          int
	Size          int
}

// DetectorIndex executes detector searches.
type DetectorIndex interface {
	SearchDetectors(ctx context.Context, s *DetectorSearch) ([]Detector, int, error)
}

// SearchDetectorsTool searches the anomaly-detector index by name, type,
// source indices and trigger name.
type SearchDetectorsTool struct {
	index DetectorIndex
}

// NewSearchDetectorsTool builds the tool against a detector index.
func NewSearchDetectorsTool(index DetectorIndex) *SearchDetectorsTool {
	return &SearchDetectorsTool{index: index}
}

func (t *SearchDetectorsTool) Name() string { return SearchDetectorsToolType }

func (t *SearchDetectorsTool) Description() string {
	return "Searches anomaly detectors by name, type, source index and trigger."
}

func (t *SearchDetectorsTool) Validate(params map[string]string) bool {
	for _, key := range []string{"size", "startIndex"} {
		if v, ok := params[key]; ok {
			if n, err := strconv.Atoi(v); err != nil || n < 0 {
				return false
			}
		}
	}
	return true
}

// parseSortOrder parses the sortOrder parameter by value, defaulting to
// ascending for anything that is not "desc".
func parseSortOrder(s string) bool {
	return !strings.EqualFold(s, "desc")
}

// BuildDetectorQuery assembles the boolean query: one must clause per
// parameter that is actually present, and a nested query on the triggers
// path for trigger name filters.
func BuildDetectorQuery(params map[string]string) map[string]interface{} {
	var must []interface{}

	if v, ok := params["detectorName"]; ok && v != "" {
		must = append(must, map[string]interface{}{
			"term": map[string]interface{}{"name.keyword": v},
		})
	}
	if v, ok := params["detectorNamePattern"]; ok && v != "" {
		must = append(must, map[string]interface{}{
			"wildcard": map[string]interface{}{"name.keyword": v},
		})
	}
	if v, ok := params["detectorType"]; ok && v != "" {
		must = append(must, map[string]interface{}{
			"terms": map[string]interface{}{"detector_type": strings.Split(v, ",")},
		})
	}
	if v, ok := params["indices"]; ok && v != "" {
		must = append(must, map[string]interface{}{
			"query_string": map[string]interface{}{
				"default_field": "indices",
				"query":         v,
			},
		})
	}
	if v, ok := params["highCardinality"]; ok && v != "" {
		must = append(must, map[string]interface{}{
			"term": map[string]interface{}{"high_cardinality": v == "true"},
		})
	}
	if v, ok := params["enabled"]; ok && v != "" {
		must = append(must, map[string]interface{}{
			"term": map[string]interface{}{"enabled": v == "true"},
		})
	}
	if v, ok := params["triggerName"]; ok && v != "" {
		must = append(must, map[string]interface{}{
			"nested": map[string]interface{}{
				"path": "triggers",
				"query": map[string]interface{}{
					"bool": map[string]interface{}{
						"must": []interface{}{
							map[string]interface{}{
								"match": map[string]interface{}{"triggers.name": v},
							},
						},
					},
				},
			},
		})
	}

	if must == nil {
		must = []interface{}{map[string]interface{}{"match_all": map[string]interface{}{}}}
	}
	return map[string]interface{}{
		"bool": map[string]interface{}{"must": must},
	}
}

func (t *SearchDetectorsTool) Run(ctx context.Context, params map[string]string) (string, error) {
	search := &DetectorSearch{
		Query:         BuildDetectorQuery(params),
		SortField:     "name.keyword",
		SortAscending: parseSortOrder(params["sortOrder"]),
		Size:          20,
	}
	if v, ok := params["sortString"]; ok && v != "" {
		search.SortField = v
	}
	if v, ok := params["size"]; ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return "", fmt.Errorf("invalid size parameter %q: %w", v, err)
		}
		search.Size = n
	}
	if v, ok := params["startIndex"]; ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return "", fmt.Errorf("invalid startIndex parameter %q: %w", v, err)
		}
		search.From = n
	}

	detectors, total, err := t.index.SearchDetectors(ctx, search)
	if err != nil {
		return "", fmt.Errorf("failed to search detectors: %w", err)
	}

	out, err := json.Marshal(map[string]interface{}{
		"detectors": detectors,
		"total":     total,
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}
