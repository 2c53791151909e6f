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
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"mlplane/platform/access"
)

// authMiddleware resolves the caller identity from a bearer token and stashes
// it in the request context. With no configured secret the transport runs
// open and handlers see a nil user.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.jwtSecret) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			s.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing bearer token")
			return
		}

		user, err := access.ExtractUser(strings.TrimPrefix(header, "Bearer "), s.jwtSecret)
		if err != nil {
			s.log.Warn("", "rejected bearer token", map[string]interface{}{"error": err.Error()})
			s.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid bearer token")
			return
		}

		next.ServeHTTP(w, r.WithContext(access.WithUser(r.Context(), user)))
	})
}

// instrument records per-route request counts and latency.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		promRequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		promRequestDuration.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
