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
	"net/http"

	"mlplane/platform/connector"
	"mlplane/platform/mlmodel"
	"mlplane/platform/shared/logger"
	"mlplane/platform/shared/settings"
	"mlplane/platform/tensor"
)

// Input is one inference request. ActionType selects the connector action for
// remote models (default PREDICT); TextDocs feed local text-embedding models.
type Input struct {
	Algorithm  mlmodel.Algorithm
	ActionType connector.ActionType
	Parameters map[string]string
	TextDocs   []string
}

// Deps carries the host services a Predictable needs at init time.
type Deps struct {
	Trusted    *settings.TrustedEndpoints
	HTTPClient *http.Client
	Logger     *logger.Logger
}

// Predictable is the capability interface every servable model implements.
// Remote models differ from local ones only in how Init wires up the
// executor.
type Predictable interface {
	Init(model *mlmodel.Model, deps Deps, encryptor Encryptor) error
	Predict(ctx context.Context, input *Input) (*tensor.TensorOutput, error)
	IsModelReady() bool
	Close()
}

// NewPredictable instantiates the serving object for a model's algorithm.
func NewPredictable(algorithm mlmodel.Algorithm) (Predictable, bool) {
	switch algorithm {
	case mlmodel.AlgorithmRemote:
		return &RemoteModel{}, true
	case mlmodel.AlgorithmTextEmbedding:
		return &TextEmbeddingModel{}, true
	default:
		return nil, false
	}
}
