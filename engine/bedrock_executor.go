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
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"mlplane/platform/connector"
	"mlplane/platform/shared/mlerror"
	"mlplane/platform/tensor"
)

// Connector parameter and credential keys understood by the sigv4 executor.
const (
	bedrockParamRegion  = "region"
	bedrockParamModelID = "model"
	bedrockCredAccess   = "access_key"
	bedrockCredSecret   = "secret_key"
	bedrockCredSession  = "session_token"
)

func init() {
	RegisterExecutor("aws_sigv4", func(conn *connector.Connector, deps Deps) (Executor, error) {
		return NewBedrockExecutor(context.Background(), conn, deps)
	})
}

// BedrockExecutor serves connectors whose protocol is aws_sigv4 by invoking
// AWS Bedrock with Signature V4 authentication instead of a raw HTTP call.
// The request body comes from the same template pipeline as the HTTP
// executor.
type BedrockExecutor struct {
	conn   *connector.Connector
	client *bedrockruntime.Client
}

// NewBedrockExecutor builds the Bedrock client from the decrypted connector
// credentials; with no explicit keys it falls back to the default chain.
func NewBedrockExecutor(ctx context.Context, conn *connector.Connector, deps Deps) (*BedrockExecutor, error) {
	region := conn.Parameters[bedrockParamRegion]
	if region == "" {
		return nil, fmt.Errorf("aws_sigv4 connector %s requires a region parameter", conn.Name)
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if access, ok := conn.Credential[bedrockCredAccess]; ok && access != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(access, conn.Credential[bedrockCredSecret], conn.Credential[bedrockCredSession]),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for connector %s: %w", conn.Name, err)
	}

	return &BedrockExecutor{
		conn:   conn,
		client: bedrockruntime.NewFromConfig(cfg),
	}, nil
}

// ExecutePredict invokes the Bedrock model named by the connector parameters
// with the substituted request body.
func (e *BedrockExecutor) ExecutePredict(ctx context.Context, input *Input) (*tensor.TensorOutput, error) {
	actionType := input.ActionType
	if actionType == "" {
		actionType = connector.ActionPredict
	}
	action := e.conn.FindAction(actionType)
	if action == nil {
		return nil, mlerror.New(mlerror.StatusInvalidInput, "no %s action found on connector %s", actionType, e.conn.Name)
	}

	params := mergeParameters(e.conn.Parameters, input.Parameters)
	modelID := params[bedrockParamModelID]
	if modelID == "" {
		return nil, mlerror.New(mlerror.StatusInvalidInput, "aws_sigv4 connector %s requires a model parameter", e.conn.Name)
	}

	body := connector.Substitute(action.RequestBody, params, e.conn.Credential)

	output, err := e.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		Body:        []byte(body),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, mlerror.Wrap(mlerror.StatusUpstreamHTTP, err, "bedrock invocation failed for model %s", modelID)
	}

	return parseResponseRoot(output.Body)
}
