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

package node

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"mlplane/platform/access"
	"mlplane/platform/cluster"
	"mlplane/platform/connector"
	"mlplane/platform/engine"
	"mlplane/platform/mlmodel"
)

const maxBodyBytes = 10 << 20

// PredictRequest is the body of POST /_ml/models/{id}/_predict.
type PredictRequest struct {
	Parameters map[string]string `json:"parameters,omitempty"`
	TextDocs   []string          `json:"text_docs,omitempty"`
}

// ExecuteAgentRequest is the body of POST /_ml/agents/{id}/_execute.
type ExecuteAgentRequest struct {
	Parameters map[string]string `json:"parameters,omitempty"`
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Failed to read request body")
		return nil, false
	}
	return raw, true
}

// handleUpdateModel handles PUT /_ml/models/{id}
func (s *Server) handleUpdateModel(w http.ResponseWriter, r *http.Request) {
	raw, ok := s.readBody(w, r)
	if !ok {
		return
	}

	var input mlmodel.UpdateInput
	if err := json.Unmarshal(raw, &input); err != nil {
		s.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid update payload: "+err.Error())
		return
	}
	input.ModelID = mux.Vars(r)["id"]

	result, err := s.lifecycle.UpdateModel(r.Context(), access.UserFrom(r.Context()), &input)
	if err != nil {
		s.writeStatusError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handlePredict handles POST /_ml/models/{id}/_predict
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	raw, ok := s.readBody(w, r)
	if !ok {
		return
	}

	var req PredictRequest
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid predict payload: "+err.Error())
			return
		}
	}

	output, err := s.lifecycle.Predict(r.Context(), mux.Vars(r)["id"], &engine.Input{
		ActionType: connector.ActionPredict,
		Parameters: req.Parameters,
		TextDocs:   req.TextDocs,
	})
	if err != nil {
		promPredictTotal.WithLabelValues("error").Inc()
		s.writeStatusError(w, err)
		return
	}
	promPredictTotal.WithLabelValues("success").Inc()
	s.writeJSON(w, http.StatusOK, output)
}

// handleDeploy handles POST /_ml/models/{id}/_deploy
func (s *Server) handleDeploy(w http.ResponseWriter, r *http.Request) {
	result, err := s.lifecycle.Deploy(r.Context(), access.UserFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		s.writeStatusError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleUndeploy handles POST /_ml/models/{id}/_undeploy
func (s *Server) handleUndeploy(w http.ResponseWriter, r *http.Request) {
	result, err := s.lifecycle.Undeploy(r.Context(), access.UserFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		s.writeStatusError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleExecuteAgent handles POST /_ml/agents/{id}/_execute
func (s *Server) handleExecuteAgent(w http.ResponseWriter, r *http.Request) {
	raw, ok := s.readBody(w, r)
	if !ok {
		return
	}

	var req ExecuteAgentRequest
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid execute payload: "+err.Error())
			return
		}
	}

	output, err := s.agents.Execute(r.Context(), mux.Vars(r)["id"], req.Parameters)
	if err != nil {
		s.writeStatusError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, output)
}

// handleCacheRefresh handles POST /cache/refresh, the node-to-node half of
// the update fan-out. The reply maps the model id to "success" or the error
// string so the fan-out client can attribute failures per model.
func (s *Server) handleCacheRefresh(w http.ResponseWriter, r *http.Request) {
	var req cluster.RefreshRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		promCacheRefreshTotal.WithLabelValues("error").Inc()
		s.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid refresh payload: "+err.Error())
		return
	}
	if req.ModelID == "" {
		promCacheRefreshTotal.WithLabelValues("error").Inc()
		s.writeError(w, http.StatusBadRequest, "BAD_REQUEST", "model_id is required")
		return
	}

	if err := s.cache.Refresh(r.Context(), req); err != nil {
		promCacheRefreshTotal.WithLabelValues("error").Inc()
		s.writeJSON(w, http.StatusOK, cluster.RefreshResponse{req.ModelID: err.Error()})
		return
	}
	promCacheRefreshTotal.WithLabelValues("success").Inc()
	s.writeJSON(w, http.StatusOK, cluster.RefreshResponse{req.ModelID: cluster.RefreshStatusSuccess})
}
