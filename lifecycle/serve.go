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

package lifecycle

import (
	"context"
	"errors"

	"mlplane/platform/access"
	"mlplane/platform/engine"
	"mlplane/platform/mlmodel"
	"mlplane/platform/shared/mlerror"
	"mlplane/platform/store"
	"mlplane/platform/tensor"
)

// Deploy loads a model onto this node: REGISTERED, UNDEPLOYED or FAILED
// models move through DEPLOYING to DEPLOYED; a failed init lands in FAILED.
func (c *Controller) Deploy(ctx context.Context, user *access.User, modelID string) (*UpdateResult, error) {
	model, err := c.loadAuthorized(ctx, user, modelID)
	if err != nil {
		return nil, err
	}

	if model.State.IsDeploying() {
		return nil, mlerror.New(mlerror.StatusConflict,
			"Model is deploying, please wait for it complete. model ID %s", modelID)
	}
	if model.State.IsDeployed() {
		return &UpdateResult{ModelID: modelID, Status: "deployed"}, nil
	}

	model.State = mlmodel.StateDeploying
	if err := c.store.PutModel(ctx, model, store.WriteOptions{RefreshImmediate: true}); err != nil {
		return nil, mlerror.Wrap(mlerror.StatusInternal, err, "failed to persist deploy state for model %s", modelID)
	}

	if err := c.resolveConnector(ctx, model); err != nil {
		c.failDeploy(ctx, model)
		return nil, err
	}
	p, err := c.buildPredictable(model)
	if err != nil {
		c.failDeploy(ctx, model)
		return nil, err
	}

	if err := c.cache.Put(ctx, p, model); err != nil {
		c.log.ErrorWithErr("", "failed to mirror deployed model", err, map[string]interface{}{
			"model_id": modelID,
		})
	}

	model.State = mlmodel.StateDeployed
	if err := c.store.PutModel(ctx, model, store.WriteOptions{RefreshImmediate: true}); err != nil {
		return nil, mlerror.Wrap(mlerror.StatusInternal, err, "failed to persist deployed state for model %s", modelID)
	}
	c.log.Info("", "model deployed", map[string]interface{}{"model_id": modelID})
	return &UpdateResult{ModelID: modelID, Status: "deployed"}, nil
}

// Undeploy removes a model from this node's cache and marks it UNDEPLOYED.
func (c *Controller) Undeploy(ctx context.Context, user *access.User, modelID string) (*UpdateResult, error) {
	model, err := c.loadAuthorized(ctx, user, modelID)
	if err != nil {
		return nil, err
	}

	c.cache.Remove(ctx, modelID)

	model.State = mlmodel.StateUndeployed
	if err := c.store.PutModel(ctx, model, store.WriteOptions{RefreshImmediate: true}); err != nil {
		return nil, mlerror.Wrap(mlerror.StatusInternal, err, "failed to persist undeploy state for model %s", modelID)
	}
	c.log.Info("", "model undeployed", map[string]interface{}{"model_id": modelID})
	return &UpdateResult{ModelID: modelID, Status: "undeployed"}, nil
}

// Predict routes an inference request to the deployed serving object.
func (c *Controller) Predict(ctx context.Context, modelID string, input *engine.Input) (*tensor.TensorOutput, error) {
	p, ok := c.cache.Get(modelID)
	if !ok {
		return nil, mlerror.New(mlerror.StatusNotReady,
			"Model not ready yet. Please deploy the model first, model ID %s", modelID)
	}
	return p.Predict(ctx, input)
}

// Reinit rebuilds the serving object from the current document. The model
// cache uses it to apply predictor updates in place.
func (c *Controller) Reinit(ctx context.Context, modelID string) (engine.Predictable, *mlmodel.Model, error) {
	model, err := c.store.GetModel(ctx, modelID, false)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, mlerror.New(mlerror.StatusNotFound,
			"Failed to find model to update with the provided model id: %s", modelID)
	}
	if err != nil {
		return nil, nil, mlerror.Wrap(mlerror.StatusInternal, err, "failed to load model %s", modelID)
	}

	if err := c.resolveConnector(ctx, model); err != nil {
		return nil, nil, err
	}
	p, err := c.buildPredictable(model)
	if err != nil {
		return nil, nil, err
	}
	return p, model, nil
}

// failDeploy moves a model out of DEPLOYING into FAILED. Without the terminal
// transition every later Deploy and UpdateModel call would CONFLICT forever.
func (c *Controller) failDeploy(ctx context.Context, model *mlmodel.Model) {
	model.State = mlmodel.StateFailed
	if err := c.store.PutModel(ctx, model, store.WriteOptions{RefreshImmediate: true}); err != nil {
		c.log.ErrorWithErr("", "failed to persist FAILED state", err, map[string]interface{}{
			"model_id": model.ModelID,
		})
	}
}

// resolveConnector inlines a stand-alone connector so the engine sees the
// same shape either way.
func (c *Controller) resolveConnector(ctx context.Context, model *mlmodel.Model) error {
	if model.Algorithm != mlmodel.AlgorithmRemote || model.Connector != nil || model.ConnectorID == "" {
		return nil
	}
	conn, err := c.store.GetConnector(ctx, model.ConnectorID)
	if err != nil {
		return mlerror.Wrap(mlerror.StatusInternal, err,
			"failed to load connector %s for model %s", model.ConnectorID, model.ModelID)
	}
	model.Connector = conn
	return nil
}

// loadAuthorized fetches a model and applies the hidden / group ACL rules.
func (c *Controller) loadAuthorized(ctx context.Context, user *access.User, modelID string) (*mlmodel.Model, error) {
	model, err := c.store.GetModel(ctx, modelID, false)
	if errors.Is(err, store.ErrNotFound) {
		return nil, mlerror.New(mlerror.StatusNotFound,
			"Failed to find model to update with the provided model id: %s", modelID)
	}
	if err != nil {
		return nil, mlerror.Wrap(mlerror.StatusInternal, err, "failed to load model %s", modelID)
	}

	if model.Hidden() {
		if !c.access.IsSuperAdmin(user) {
			return nil, mlerror.New(mlerror.StatusForbidden,
				"User doesn't have privilege to perform this operation on this model, model ID %s", modelID)
		}
		return model, nil
	}
	ok, err := c.access.CanAccessModelGroup(ctx, user, model.ModelGroupID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, mlerror.New(mlerror.StatusForbidden,
			"User doesn't have privilege to perform this operation on this model, model ID %s", modelID)
	}
	return model, nil
}

// buildPredictable instantiates and initializes the serving object for a
// model. Remote models resolve their stand-alone connector before this is
// called.
func (c *Controller) buildPredictable(model *mlmodel.Model) (engine.Predictable, error) {
	p, ok := engine.NewPredictable(model.Algorithm)
	if !ok {
		return nil, mlerror.New(mlerror.StatusInvalidInput,
			"The function category %s is not supported at this time.", model.Algorithm)
	}
	deps := engine.Deps{
		Trusted:    c.trusted,
		HTTPClient: c.httpClient,
		Logger:     c.log,
	}
	if err := p.Init(model, deps, c.encryptor); err != nil {
		return nil, mlerror.Wrap(mlerror.StatusInternal, err, "failed to initialize model %s", model.ModelID)
	}
	return p, nil
}
