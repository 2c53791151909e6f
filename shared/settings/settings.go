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

// Package settings loads node configuration from YAML and keeps the
// live-updatable values (the trusted connector endpoint allow-list) current
// while the node is running.
package settings

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultTrustedEndpoints is the allow-list applied when the node settings do
// not name one. Connector action URLs must match at least one entry.
var DefaultTrustedEndpoints = []string{
	`^https://runtime\.sagemaker\..*[a-z0-9-]\.amazonaws\.com/.*$`,
	`^https://api\.openai\.com/.*$`,
	`^https://api\.cohere\.ai/.*$`,
	`^https://bedrock-runtime\..*[a-z0-9-]\.amazonaws\.com/.*$`,
}

// Config holds the node settings file contents.
type Config struct {
	Cluster    ClusterConfig    `yaml:"cluster"`
	HTTP       HTTPConfig       `yaml:"http"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Redis      RedisConfig      `yaml:"redis"`
	Mongo      MongoConfig      `yaml:"mongo"`
	Encryption EncryptionConfig `yaml:"encryption"`

	// TrustedConnectorEndpoints is the live-updatable regex allow-list for
	// remote connector action URLs.
	TrustedConnectorEndpoints []string `yaml:"trusted_connector_endpoints_regex"`
}

// ClusterConfig identifies this node within the cluster.
type ClusterConfig struct {
	Name      string   `yaml:"name"`
	NodeID    string   `yaml:"node_id"`
	SeedNodes []string `yaml:"seed_nodes"`
}

// HTTPConfig configures the node transport.
type HTTPConfig struct {
	ListenAddr     string   `yaml:"listen_addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	JWTSecret      string   `yaml:"jwt_secret"`
}

// PostgresConfig configures the model document store.
type PostgresConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig configures the per-node deployed-model cache mirror.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MongoConfig configures the conversation memory store.
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// EncryptionConfig configures the credential encryptor master key. Exactly one
// of MasterKeyBase64 or SecretARN should be set; the ARN form reads the key
// from AWS Secrets Manager.
type EncryptionConfig struct {
	MasterKeyBase64 string `yaml:"master_key_base64"`
	SecretARN       string `yaml:"secret_arn"`
	AWSRegion       string `yaml:"aws_region"`
}

// Load reads and parses the settings file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.ListenAddr == "" {
		c.HTTP.ListenAddr = ":9200"
	}
	if c.Cluster.Name == "" {
		c.Cluster.Name = "default"
	}
	if len(c.TrustedConnectorEndpoints) == 0 {
		c.TrustedConnectorEndpoints = append([]string(nil), DefaultTrustedEndpoints...)
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "ml_memory"
	}
}
