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
	"hash/fnv"
	"math"
	"strings"
	"sync"

	"mlplane/platform/mlmodel"
	"mlplane/platform/shared/mlerror"
	"mlplane/platform/tensor"
)

// DefaultEmbeddingDimension is used when the model config does not set one.
const DefaultEmbeddingDimension = 384

// TextEmbeddingModel serves local text-embedding models. Each document is
// mapped to a fixed-dimension unit vector by hashing its tokens into buckets,
// so identical text always produces identical embeddings across nodes.
type TextEmbeddingModel struct {
	mu        sync.RWMutex
	modelID   string
	dimension int
	ready     bool
}

func (m *TextEmbeddingModel) Init(model *mlmodel.Model, _ Deps, _ Encryptor) error {
	dim := DefaultEmbeddingDimension
	if model.Config != nil && model.Config.EmbeddingDimension > 0 {
		dim = model.Config.EmbeddingDimension
	}
	m.mu.Lock()
	m.modelID = model.ModelID
	m.dimension = dim
	m.ready = true
	m.mu.Unlock()
	return nil
}

func (m *TextEmbeddingModel) IsModelReady() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ready
}

func (m *TextEmbeddingModel) Close() {
	m.mu.Lock()
	m.ready = false
	m.mu.Unlock()
}

func (m *TextEmbeddingModel) Predict(ctx context.Context, input *Input) (*tensor.TensorOutput, error) {
	m.mu.RLock()
	ready, dim, modelID := m.ready, m.dimension, m.modelID
	m.mu.RUnlock()
	if !ready {
		return nil, mlerror.New(mlerror.StatusNotReady,
			"Model not ready yet. Please deploy the model first, model ID %s", modelID)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if input == nil || len(input.TextDocs) == 0 {
		return nil, mlerror.New(mlerror.StatusInvalidInput, "no text documents provided")
	}

	out := &tensor.TensorOutput{}
	for _, doc := range input.TextDocs {
		vec := embed(doc, dim)
		out.ModelOutputs = append(out.ModelOutputs, tensor.ModelTensors{
			ModelTensors: []tensor.ModelTensor{{Name: "sentence_embedding", Data: vec}},
		})
	}
	return out, nil
}

// embed hashes each token into one of dim buckets, with the hash's low bit
// choosing the sign, then L2-normalizes the result.
func embed(doc string, dim int) []float64 {
	vec := make([]float64, dim)
	for _, tok := range strings.Fields(strings.ToLower(doc)) {
		h := fnv.New64a()
		h.Write([]byte(tok))
		sum := h.Sum64()
		bucket := int(sum % uint64(dim))
		if sum&1 == 0 {
			vec[bucket]++
		} else {
			vec[bucket]--
		}
	}
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}
