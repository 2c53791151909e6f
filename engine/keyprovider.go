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

package engine

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// MasterKeyProvider supplies the symmetric master key used by the credential
// encryptor. The host owns rotation; the engine only reads.
type MasterKeyProvider interface {
	MasterKey(ctx context.Context) ([]byte, error)
}

// StaticKeyProvider returns a key held in node settings.
type StaticKeyProvider struct {
	key []byte
}

// NewStaticKeyProvider decodes a base64 key from the settings file.
func NewStaticKeyProvider(keyBase64 string) (*StaticKeyProvider, error) {
	key, err := base64.StdEncoding.DecodeString(keyBase64)
	if err != nil {
		return nil, fmt.Errorf("invalid master key encoding: %w", err)
	}
	return &StaticKeyProvider{key: key}, nil
}

func (p *StaticKeyProvider) MasterKey(ctx context.Context) ([]byte, error) {
	return p.key, nil
}

// SecretsManagerKeyProvider reads the master key from AWS Secrets Manager.
// The secret value is either a raw base64 string or a JSON object with a
// "master_key" field.
type SecretsManagerKeyProvider struct {
	client    *secretsmanager.Client
	secretARN string
}

// NewSecretsManagerKeyProvider builds a provider using the default AWS
// credential chain.
func NewSecretsManagerKeyProvider(ctx context.Context, region, secretARN string) (*SecretsManagerKeyProvider, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &SecretsManagerKeyProvider{
		client:    secretsmanager.NewFromConfig(cfg),
		secretARN: secretARN,
	}, nil
}

func (p *SecretsManagerKeyProvider) MasterKey(ctx context.Context) ([]byte, error) {
	out, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(p.secretARN),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read master key secret: %w", err)
	}
	if out.SecretString == nil {
		return nil, fmt.Errorf("master key secret has no string value")
	}

	encoded := *out.SecretString
	var doc map[string]string
	if err := json.Unmarshal([]byte(encoded), &doc); err == nil {
		if v, ok := doc["master_key"]; ok {
			encoded = v
		}
	}

	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid master key encoding in secret: %w", err)
	}
	return key, nil
}
