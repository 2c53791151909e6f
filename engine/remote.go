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
	"errors"
	"fmt"

	"mlplane/platform/mlmodel"
	"mlplane/platform/shared/mlerror"
	"mlplane/platform/tensor"
)

// RemoteModel serves inference by delegating to a protocol executor built
// from the model's connector. Init clones the connector before decrypting so
// the plaintext credentials never reach the shared cache.
type RemoteModel struct {
	modelID  string
	executor Executor
}

// Init wires up the executor. The connector clone is decrypted with the
// injected encryptor; the canonical connector on the model stays encrypted.
func (m *RemoteModel) Init(model *mlmodel.Model, deps Deps, encryptor Encryptor) error {
	if model.Connector == nil {
		return mlerror.New(mlerror.StatusInvalidInput, "remote model %s has no connector", model.ModelID)
	}

	conn := model.Connector.Clone()
	if err := conn.Decrypt(encryptor.Decrypt); err != nil {
		return fmt.Errorf("failed to init remote model %s: %w", model.ModelID, err)
	}

	executor, err := NewExecutor(conn, deps)
	if err != nil {
		return fmt.Errorf("failed to init remote model %s: %w", model.ModelID, err)
	}

	m.modelID = model.ModelID
	m.executor = executor
	return nil
}

// Predict executes one remote inference. Unexpected faults are wrapped so
// implementation detail does not leak to clients.
func (m *RemoteModel) Predict(ctx context.Context, input *Input) (*tensor.TensorOutput, error) {
	if !m.IsModelReady() {
		return nil, mlerror.New(mlerror.StatusNotReady, "Model not ready yet. Please deploy the model first, model ID %s", m.modelID)
	}

	out, err := m.executor.ExecutePredict(ctx, input)
	if err != nil {
		var se *mlerror.StatusError
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, mlerror.Wrap(mlerror.StatusInternal, err, "failed to call remote model %s", m.modelID)
	}
	return out, nil
}

func (m *RemoteModel) IsModelReady() bool {
	return m.executor != nil
}

func (m *RemoteModel) Close() {
	m.executor = nil
}
