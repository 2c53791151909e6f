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

package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mlplane.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeSettings(t, `
postgres:
  url: postgres://localhost/mlplane
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9200", cfg.HTTP.ListenAddr)
	assert.Equal(t, "default", cfg.Cluster.Name)
	assert.Equal(t, "ml_memory", cfg.Mongo.Database)
	assert.Equal(t, DefaultTrustedEndpoints, cfg.TrustedConnectorEndpoints)
	assert.Equal(t, "postgres://localhost/mlplane", cfg.Postgres.URL)
}

func TestLoadExplicitValuesWin(t *testing.T) {
	path := writeSettings(t, `
cluster:
  name: ml-prod
  node_id: node-1
  seed_nodes:
    - node-2=http://node-2:9200
http:
  listen_addr: ":9300"
trusted_connector_endpoints_regex:
  - '^https://internal\.example\.com/.*$'
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ml-prod", cfg.Cluster.Name)
	assert.Equal(t, "node-1", cfg.Cluster.NodeID)
	assert.Equal(t, []string{"node-2=http://node-2:9200"}, cfg.Cluster.SeedNodes)
	assert.Equal(t, ":9300", cfg.HTTP.ListenAddr)
	assert.Equal(t, []string{`^https://internal\.example\.com/.*$`}, cfg.TrustedConnectorEndpoints)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read settings file")
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeSettings(t, "cluster: [not: a: map")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse settings file")
}

func TestTrustedEndpointsMatches(t *testing.T) {
	trusted, err := NewTrustedEndpoints([]string{
		`^https://api\.openai\.com/.*$`,
		`^https://runtime\.sagemaker\..*[a-z0-9-]\.amazonaws\.com/.*$`,
	})
	require.NoError(t, err)

	assert.True(t, trusted.Matches("https://api.openai.com/v1/embeddings"))
	assert.True(t, trusted.Matches("https://runtime.sagemaker.us-east-1.amazonaws.com/endpoints/my-model/invocations"))
	assert.False(t, trusted.Matches("https://api.openai.com.evil.example/v1"))
	assert.False(t, trusted.Matches("http://169.254.169.254/latest/meta-data"))
}

func TestTrustedEndpointsSetKeepsOldListOnError(t *testing.T) {
	trusted, err := NewTrustedEndpoints([]string{`^https://api\.openai\.com/.*$`})
	require.NoError(t, err)

	err = trusted.Set([]string{`[invalid`})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid trusted endpoint pattern "[invalid"`)

	// previous allow-list still in effect
	assert.True(t, trusted.Matches("https://api.openai.com/v1/embeddings"))

	require.NoError(t, trusted.Set([]string{`^https://api\.cohere\.ai/.*$`}))
	assert.False(t, trusted.Matches("https://api.openai.com/v1/embeddings"))
	assert.True(t, trusted.Matches("https://api.cohere.ai/v1/embed"))
}

func TestNewTrustedEndpointsRejectsBadPattern(t *testing.T) {
	_, err := NewTrustedEndpoints([]string{`(`})
	assert.Error(t, err)
}
