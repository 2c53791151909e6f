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

// Package node is the HTTP transport of a cluster node. It exposes the model
// lifecycle operations, agent execution, and the intra-cluster cache refresh
// endpoint, and maps StatusError statuses onto HTTP codes.
package node

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"mlplane/platform/access"
	"mlplane/platform/cluster"
	"mlplane/platform/engine"
	"mlplane/platform/lifecycle"
	"mlplane/platform/mlmodel"
	"mlplane/platform/shared/logger"
	"mlplane/platform/shared/mlerror"
	"mlplane/platform/tensor"
)

// LifecycleAPI is the slice of the lifecycle controller the transport needs.
type LifecycleAPI interface {
	UpdateModel(ctx context.Context, user *access.User, input *mlmodel.UpdateInput) (*lifecycle.UpdateResult, error)
	Deploy(ctx context.Context, user *access.User, modelID string) (*lifecycle.UpdateResult, error)
	Undeploy(ctx context.Context, user *access.User, modelID string) (*lifecycle.UpdateResult, error)
	Predict(ctx context.Context, modelID string, input *engine.Input) (*tensor.TensorOutput, error)
}

// AgentAPI runs agents by id.
type AgentAPI interface {
	Execute(ctx context.Context, agentID string, params map[string]string) (*tensor.TensorOutput, error)
}

// CacheAPI applies intra-cluster cache refresh requests on this node.
type CacheAPI interface {
	Refresh(ctx context.Context, req cluster.RefreshRequest) error
}

// Config carries the services and settings the transport serves.
type Config struct {
	Lifecycle LifecycleAPI
	Agents    AgentAPI
	Cache     CacheAPI
	// JWTSecret signs the bearer tokens accepted on /_ml routes. Empty
	// disables authentication and every request runs unauthenticated.
	JWTSecret []byte
}

// Server is the node HTTP transport.
type Server struct {
	lifecycle LifecycleAPI
	agents    AgentAPI
	cache     CacheAPI
	jwtSecret []byte
	router    *mux.Router
	cors      *cors.Cors
	log       *logger.Logger
}

// NewServer builds the transport and registers its routes.
func NewServer(cfg Config) *Server {
	s := &Server{
		lifecycle: cfg.Lifecycle,
		agents:    cfg.Agents,
		cache:     cfg.Cache,
		jwtSecret: cfg.JWTSecret,
		router:    mux.NewRouter(),
		cors: cors.New(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
		}),
		log: logger.New("node"),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.Use(s.instrument)

	ml := s.router.PathPrefix("/_ml").Subrouter()
	ml.Use(s.authMiddleware)
	ml.HandleFunc("/models/{id}", s.handleUpdateModel).Methods("PUT")
	ml.HandleFunc("/models/{id}/_predict", s.handlePredict).Methods("POST")
	ml.HandleFunc("/models/{id}/_deploy", s.handleDeploy).Methods("POST")
	ml.HandleFunc("/models/{id}/_undeploy", s.handleUndeploy).Methods("POST")
	ml.HandleFunc("/agents/{id}/_execute", s.handleExecuteAgent).Methods("POST")

	// Node-to-node traffic and probes stay off the auth path.
	s.router.HandleFunc("/cache/refresh", s.handleCacheRefresh).Methods("POST")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
}

// Handler returns the full middleware chain ready for http.ListenAndServe.
func (s *Server) Handler() http.Handler {
	return s.cors.Handler(s.router)
}

// ListenAndServe blocks serving the transport on addr.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}
	s.log.Info("", "node transport listening", map[string]interface{}{"addr": addr})
	return srv.ListenAndServe()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   "mlplane-node",
		"timestamp": time.Now().UTC(),
	})
}

// ErrorResponse is the JSON error envelope of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, ErrorResponse{
		Error:   strings.ToLower(code),
		Code:    code,
		Message: message,
	})
}

// writeStatusError maps a StatusError onto the wire. The caller-facing message
// is the error's own message so exact controller wording survives transport.
func (s *Server) writeStatusError(w http.ResponseWriter, err error) {
	status := mlerror.StatusOf(err)
	message := err.Error()
	var se *mlerror.StatusError
	if errors.As(err, &se) {
		message = se.Message
	}
	s.writeError(w, mlerror.HTTPCode(status), string(status), message)
}
