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

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics
var (
	promRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mlplane_node_requests_total",
			Help: "Total number of requests processed by the node transport",
		},
		[]string{"route", "status"},
	)
	promRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mlplane_node_request_duration_milliseconds",
			Help:    "Request duration in milliseconds",
			Buckets: []float64{5, 10, 50, 100, 200, 500, 1000, 2000, 5000, 10000},
		},
		[]string{"route"},
	)
	promPredictTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mlplane_node_predict_total",
			Help: "Total number of predict calls served",
		},
		[]string{"status"},
	)
	promCacheRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mlplane_node_cache_refresh_total",
			Help: "Total number of intra-cluster cache refresh requests handled",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(promRequestsTotal)
	prometheus.MustRegister(promRequestDuration)
	prometheus.MustRegister(promPredictTotal)
	prometheus.MustRegister(promCacheRefreshTotal)
}
