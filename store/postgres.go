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
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"mlplane/platform/agent"
	"mlplane/platform/connector"
	"mlplane/platform/mlmodel"
	"mlplane/platform/tools"
)

// PostgresStore implements ModelStore, AgentStore, tools.ModelLister and
// tools.DetectorIndex against PostgreSQL. Documents are stored as JSONB with
// the hot filter fields mirrored into plain columns; model content lives in
// separate columns so controller reads can skip it.
type PostgresStore struct {
	db *sql.DB
}

var (
	_ ModelStore          = (*PostgresStore)(nil)
	_ AgentStore          = (*PostgresStore)(nil)
	_ tools.ModelLister   = (*PostgresStore)(nil)
	_ tools.DetectorIndex = (*PostgresStore)(nil)
)

// NewPostgresStore creates a store over an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema is the DDL the store expects.
const Schema = `
CREATE TABLE IF NOT EXISTS ml_models (
	model_id          TEXT PRIMARY KEY,
	doc               JSONB NOT NULL,
	model_content     TEXT,
	old_model_content TEXT,
	algorithm         TEXT NOT NULL,
	model_state       TEXT NOT NULL DEFAULT '',
	last_update_time  BIGINT NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS ml_model_groups (
	model_group_id TEXT PRIMARY KEY,
	doc            JSONB NOT NULL,
	seq_no         BIGINT NOT NULL DEFAULT 0,
	primary_term   BIGINT NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS ml_connectors (
	connector_id TEXT PRIMARY KEY,
	doc          JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS ml_agents (
	agent_id TEXT PRIMARY KEY,
	doc      JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS ml_detectors (
	detector_id      TEXT PRIMARY KEY,
	doc              JSONB NOT NULL,
	name             TEXT NOT NULL,
	detector_type    TEXT NOT NULL DEFAULT '',
	enabled          BOOLEAN NOT NULL DEFAULT TRUE,
	high_cardinality BOOLEAN NOT NULL DEFAULT FALSE,
	last_update_time BIGINT NOT NULL DEFAULT 0
);
`

// EnsureSchema creates the tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// GetModel loads a model document. The JSONB doc never carries the content
// fields; they are joined back from their columns unless excludeContent is
// set.
func (s *PostgresStore) GetModel(ctx context.Context, modelID string, excludeContent bool) (*mlmodel.Model, error) {
	var (
		doc      []byte
		content  sql.NullString
		oldContent sql.NullString
		err      error
	)
	if excludeContent {
		err = s.db.QueryRowContext(ctx,
			`SELECT doc FROM ml_models WHERE model_id = $1`, modelID).Scan(&doc)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT doc, model_content, old_model_content FROM ml_models WHERE model_id = $1`,
			modelID).Scan(&doc, &content, &oldContent)
	}
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get model %s: %w", modelID, err)
	}

	m := &mlmodel.Model{}
	if err := json.Unmarshal(doc, m); err != nil {
		return nil, fmt.Errorf("failed to decode model %s: %w", modelID, err)
	}
	m.ModelID = modelID
	if content.Valid {
		m.Content = content.String
	}
	if oldContent.Valid {
		m.OldContent = oldContent.String
	}
	return m, nil
}

// PutModel upserts the whole model document. Content columns are only
// overwritten when the caller actually carries content, so updates made from
// a content-excluded read cannot wipe them. Writes are synchronously
// visible, which satisfies the immediate refresh option.
func (s *PostgresStore) PutModel(ctx context.Context, m *mlmodel.Model, _ WriteOptions) error {
	if m == nil || m.ModelID == "" {
		return fmt.Errorf("model id is required")
	}

	stripped := *m
	stripped.Content = ""
	stripped.OldContent = ""
	doc, err := json.Marshal(&stripped)
	if err != nil {
		return fmt.Errorf("failed to encode model %s: %w", m.ModelID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ml_models (model_id, doc, model_content, old_model_content, algorithm, model_state, last_update_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (model_id) DO UPDATE SET
			doc = EXCLUDED.doc,
			model_content = COALESCE(EXCLUDED.model_content, ml_models.model_content),
			old_model_content = COALESCE(EXCLUDED.old_model_content, ml_models.old_model_content),
			algorithm = EXCLUDED.algorithm,
			model_state = EXCLUDED.model_state,
			last_update_time = EXCLUDED.last_update_time`,
		m.ModelID, doc, nullString(m.Content), nullString(m.OldContent),
		string(m.Algorithm), string(m.State), m.LastUpdateTime,
	)
	if err != nil {
		return fmt.Errorf("failed to put model %s: %w", m.ModelID, err)
	}
	return nil
}

// GetModelGroup returns a group document and its concurrency token.
func (s *PostgresStore) GetModelGroup(ctx context.Context, groupID string) (*mlmodel.ModelGroup, ConcurrencyToken, error) {
	var (
		doc   []byte
		token ConcurrencyToken
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT doc, seq_no, primary_term FROM ml_model_groups WHERE model_group_id = $1`,
		groupID).Scan(&doc, &token.SeqNo, &token.PrimaryTerm)
	if err == sql.ErrNoRows {
		return nil, ConcurrencyToken{}, ErrNotFound
	}
	if err != nil {
		return nil, ConcurrencyToken{}, fmt.Errorf("failed to get model group %s: %w", groupID, err)
	}

	g := &mlmodel.ModelGroup{}
	if err := json.Unmarshal(doc, g); err != nil {
		return nil, ConcurrencyToken{}, fmt.Errorf("failed to decode model group %s: %w", groupID, err)
	}
	g.ModelGroupID = groupID
	return g, token, nil
}

// PutModelGroup writes a group document guarded by the token from the
// preceding read. A stale token fails with ErrVersionConflict; a token for a
// group that does not exist yet inserts it.
func (s *PostgresStore) PutModelGroup(ctx context.Context, g *mlmodel.ModelGroup, token ConcurrencyToken, _ WriteOptions) error {
	if g == nil || g.ModelGroupID == "" {
		return fmt.Errorf("model group id is required")
	}
	doc, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to encode model group %s: %w", g.ModelGroupID, err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE ml_model_groups
		SET doc = $2, seq_no = seq_no + 1
		WHERE model_group_id = $1 AND seq_no = $3 AND primary_term = $4`,
		g.ModelGroupID, doc, token.SeqNo, token.PrimaryTerm,
	)
	if err != nil {
		return fmt.Errorf("failed to update model group %s: %w", g.ModelGroupID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update model group %s: %w", g.ModelGroupID, err)
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM ml_model_groups WHERE model_group_id = $1)`,
		g.ModelGroupID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to update model group %s: %w", g.ModelGroupID, err)
	}
	if exists {
		return ErrVersionConflict
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ml_model_groups (model_group_id, doc) VALUES ($1, $2)`,
		g.ModelGroupID, doc,
	)
	if err != nil {
		return fmt.Errorf("failed to insert model group %s: %w", g.ModelGroupID, err)
	}
	return nil
}

// GetConnector loads a stand-alone connector document. Credentials come back
// as stored, still encrypted.
func (s *PostgresStore) GetConnector(ctx context.Context, connectorID string) (*connector.Connector, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM ml_connectors WHERE connector_id = $1`, connectorID).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connector %s: %w", connectorID, err)
	}

	c := &connector.Connector{}
	if err := json.Unmarshal(doc, c); err != nil {
		return nil, fmt.Errorf("failed to decode connector %s: %w", connectorID, err)
	}
	return c, nil
}

// PutConnector upserts a stand-alone connector document.
func (s *PostgresStore) PutConnector(ctx context.Context, connectorID string, c *connector.Connector) error {
	if connectorID == "" {
		return fmt.Errorf("connector id is required")
	}
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode connector %s: %w", connectorID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ml_connectors (connector_id, doc) VALUES ($1, $2)
		ON CONFLICT (connector_id) DO UPDATE SET doc = EXCLUDED.doc`,
		connectorID, doc,
	)
	if err != nil {
		return fmt.Errorf("failed to put connector %s: %w", connectorID, err)
	}
	return nil
}

// GetAgent resolves an agent document by id.
func (s *PostgresStore) GetAgent(ctx context.Context, agentID string) (*agent.MLAgent, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM ml_agents WHERE agent_id = $1`, agentID).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, agent.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agent %s: %w", agentID, err)
	}

	a := &agent.MLAgent{}
	if err := json.Unmarshal(doc, a); err != nil {
		return nil, fmt.Errorf("failed to decode agent %s: %w", agentID, err)
	}
	a.AgentID = agentID
	return a, nil
}

// PutAgent upserts an agent document.
func (s *PostgresStore) PutAgent(ctx context.Context, a *agent.MLAgent) error {
	if a == nil || a.AgentID == "" {
		return fmt.Errorf("agent id is required")
	}
	doc, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode agent %s: %w", a.AgentID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ml_agents (agent_id, doc) VALUES ($1, $2)
		ON CONFLICT (agent_id) DO UPDATE SET doc = EXCLUDED.doc`,
		a.AgentID, doc,
	)
	if err != nil {
		return fmt.Errorf("failed to put agent %s: %w", a.AgentID, err)
	}
	return nil
}

// ListModels returns a page of model documents plus the unpaged total.
func (s *PostgresStore) ListModels(ctx context.Context, q tools.ModelQuery) ([]*mlmodel.Model, int, error) {
	var conditions []string
	var args []interface{}
	argIndex := 1

	if q.Algorithm != "" {
		conditions = append(conditions, fmt.Sprintf("algorithm = $%d", argIndex))
		args = append(args, q.Algorithm)
		argIndex++
	}
	if q.State != "" {
		conditions = append(conditions, fmt.Sprintf("model_state = $%d", argIndex))
		args = append(args, q.State)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM ml_models %s", whereClause)
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count models: %w", err)
	}

	size := q.Size
	if size <= 0 {
		size = 50
	}
	if size > 1000 {
		size = 1000
	}

	query := fmt.Sprintf(`
		SELECT model_id, doc FROM ml_models
		%s
		ORDER BY last_update_time DESC
		LIMIT $%d OFFSET $%d`, whereClause, argIndex, argIndex+1)
	args = append(args, size, q.From)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list models: %w", err)
	}
	defer rows.Close()

	var models []*mlmodel.Model
	for rows.Next() {
		var (
			modelID string
			doc     []byte
		)
		if err := rows.Scan(&modelID, &doc); err != nil {
			return nil, 0, fmt.Errorf("failed to scan model: %w", err)
		}
		m := &mlmodel.Model{}
		if err := json.Unmarshal(doc, m); err != nil {
			return nil, 0, fmt.Errorf("failed to decode model %s: %w", modelID, err)
		}
		m.ModelID = modelID
		models = append(models, m)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating models: %w", err)
	}
	return models, total, nil
}

// PutDetector upserts a detector document into the search index.
func (s *PostgresStore) PutDetector(ctx context.Context, d *tools.Detector) error {
	if d == nil || d.ID == "" {
		return fmt.Errorf("detector id is required")
	}
	doc, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode detector %s: %w", d.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ml_detectors (detector_id, doc, name, detector_type, enabled, high_cardinality, last_update_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (detector_id) DO UPDATE SET
			doc = EXCLUDED.doc,
			name = EXCLUDED.name,
			detector_type = EXCLUDED.detector_type,
			enabled = EXCLUDED.enabled,
			high_cardinality = EXCLUDED.high_cardinality,
			last_update_time = EXCLUDED.last_update_time`,
		d.ID, doc, d.Name, d.Type, d.Enabled, d.HighCardinality, d.LastUpdateTime,
	)
	if err != nil {
		return fmt.Errorf("failed to put detector %s: %w", d.ID, err)
	}
	return nil
}

// SearchDetectors interprets the assembled boolean query into SQL
// conditions: each must clause maps to one WHERE condition.
func (s *PostgresStore) SearchDetectors(ctx context.Context, search *tools.DetectorSearch) ([]tools.Detector, int, error) {
	conditions, args, err := detectorConditions(search.Query)
	if err != nil {
		return nil, 0, err
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM ml_detectors %s", whereClause)
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count detectors: %w", err)
	}

	sortColumn := "name"
	switch search.SortField {
	case "", "name", "name.keyword":
		sortColumn = "name"
	case "last_update_time":
		sortColumn = "last_update_time"
	default:
		return nil, 0, fmt.Errorf("unsupported sort field %q", search.SortField)
	}
	direction := "DESC"
	if search.SortAscending {
		direction = "ASC"
	}

	size := search.Size
	if size <= 0 {
		size = 20
	}

	argIndex := len(args) + 1
	query := fmt.Sprintf(`
		SELECT detector_id, doc FROM ml_detectors
		%s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d`, whereClause, sortColumn, direction, argIndex, argIndex+1)
	args = append(args, size, search.From)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search detectors: %w", err)
	}
	defer rows.Close()

	var detectors []tools.Detector
	for rows.Next() {
		var (
			detectorID string
			doc        []byte
		)
		if err := rows.Scan(&detectorID, &doc); err != nil {
			return nil, 0, fmt.Errorf("failed to scan detector: %w", err)
		}
		var d tools.Detector
		if err := json.Unmarshal(doc, &d); err != nil {
			return nil, 0, fmt.Errorf("failed to decode detector %s: %w", detectorID, err)
		}
		d.ID = detectorID
		detectors = append(detectors, d)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating detectors: %w", err)
	}
	return detectors, total, nil
}

// detectorConditions translates the must clauses of a boolean query.
func detectorConditions(query map[string]interface{}) ([]string, []interface{}, error) {
	boolQuery, ok := query["bool"].(map[string]interface{})
	if !ok {
		return nil, nil, fmt.Errorf("unsupported detector query: missing bool clause")
	}
	must, _ := boolQuery["must"].([]interface{})

	var conditions []string
	var args []interface{}
	argIndex := 1

	add := func(cond string, vals ...interface{}) {
		conditions = append(conditions, cond)
		args = append(args, vals...)
		argIndex += len(vals)
	}

	for _, raw := range must {
		clause, ok := raw.(map[string]interface{})
		if !ok || len(clause) != 1 {
			return nil, nil, fmt.Errorf("unsupported detector query clause %v", raw)
		}
		for kind, bodyRaw := range clause {
			body, _ := bodyRaw.(map[string]interface{})
			switch kind {
			case "match_all":
				// no condition

			case "term":
				field, value, err := singleField(body)
				if err != nil {
					return nil, nil, err
				}
				switch field {
				case "name.keyword":
					add(fmt.Sprintf("name = $%d", argIndex), value)
				case "enabled":
					add(fmt.Sprintf("enabled = $%d", argIndex), value)
				case "high_cardinality":
					add(fmt.Sprintf("high_cardinality = $%d", argIndex), value)
				default:
					return nil, nil, fmt.Errorf("unsupported term field %q", field)
				}

			case "wildcard":
				field, value, err := singleField(body)
				if err != nil {
					return nil, nil, err
				}
				if field != "name.keyword" {
					return nil, nil, fmt.Errorf("unsupported wildcard field %q", field)
				}
				pattern, ok := value.(string)
				if !ok {
					return nil, nil, fmt.Errorf("wildcard value must be a string")
				}
				add(fmt.Sprintf("name LIKE $%d", argIndex), wildcardToLike(pattern))

			case "terms":
				field, value, err := singleField(body)
				if err != nil {
					return nil, nil, err
				}
				if field != "detector_type" {
					return nil, nil, fmt.Errorf("unsupported terms field %q", field)
				}
				add(fmt.Sprintf("detector_type = ANY($%d)", argIndex), pq.Array(toStringSlice(value)))

			case "query_string":
				pattern, _ := body["query"].(string)
				add(fmt.Sprintf(
					"EXISTS (SELECT 1 FROM jsonb_array_elements_text(doc->'indices') idx WHERE idx LIKE $%d)",
					argIndex), wildcardToLike(pattern))

			case "nested":
				name, err := nestedTriggerName(body)
				if err != nil {
					return nil, nil, err
				}
				add(fmt.Sprintf(
					"EXISTS (SELECT 1 FROM jsonb_array_elements(doc->'triggers') tr WHERE tr->>'name' ILIKE $%d)",
					argIndex), "%"+name+"%")

			default:
				return nil, nil, fmt.Errorf("unsupported detector query clause %q", kind)
			}
		}
	}
	return conditions, args, nil
}

func singleField(body map[string]interface{}) (string, interface{}, error) {
	if len(body) != 1 {
		return "", nil, fmt.Errorf("expected a single-field clause, got %v", body)
	}
	for field, value := range body {
		return field, value, nil
	}
	return "", nil, fmt.Errorf("empty clause")
}

// nestedTriggerName extracts the match value from the nested triggers query.
func nestedTriggerName(body map[string]interface{}) (string, error) {
	if path, _ := body["path"].(string); path != "triggers" {
		return "", fmt.Errorf("unsupported nested path %v", body["path"])
	}
	inner, _ := body["query"].(map[string]interface{})
	boolQ, _ := inner["bool"].(map[string]interface{})
	must, _ := boolQ["must"].([]interface{})
	for _, raw := range must {
		clause, _ := raw.(map[string]interface{})
		match, _ := clause["match"].(map[string]interface{})
		if name, ok := match["triggers.name"].(string); ok {
			return name, nil
		}
	}
	return "", fmt.Errorf("nested triggers query has no triggers.name match")
}

func wildcardToLike(pattern string) string {
	replaced := strings.NewReplacer("%", `\%`, "_", `\_`).Replace(pattern)
	replaced = strings.ReplaceAll(replaced, "*", "%")
	replaced = strings.ReplaceAll(replaced, "?", "_")
	return replaced
}

func toStringSlice(v interface{}) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []interface{}:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}
