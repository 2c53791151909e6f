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

// Package lifecycle implements the model lifecycle controller: the update,
// deploy and undeploy state machine coordinating the persistent index with
// the volatile per-node model caches.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mlplane/platform/access"
	"mlplane/platform/cluster"
	"mlplane/platform/engine"
	"mlplane/platform/mlmodel"
	"mlplane/platform/shared/logger"
	"mlplane/platform/shared/mlerror"
	"mlplane/platform/shared/settings"
	"mlplane/platform/store"
)

// maxGroupBumpRetries bounds the optimistic-concurrency retry loop when
// bumping a group's version counter.
const maxGroupBumpRetries = 3

// Controller drives model lifecycle operations.
type Controller struct {
	store      store.ModelStore
	access     *access.Mediator
	encryptor  engine.Encryptor
	trusted    *settings.TrustedEndpoints
	state      cluster.StateProvider
	refresh    *cluster.CacheRefreshClient
	cache      *cluster.ModelCache
	httpClient *http.Client
	log        *logger.Logger
	now        func() time.Time
}

// Config wires a Controller.
type Config struct {
	Store      store.ModelStore
	Access     *access.Mediator
	Encryptor  engine.Encryptor
	Trusted    *settings.TrustedEndpoints
	State      cluster.StateProvider
	Refresh    *cluster.CacheRefreshClient
	Cache      *cluster.ModelCache
	HTTPClient *http.Client
}

// NewController builds the controller.
func NewController(cfg Config) *Controller {
	return &Controller{
		store:      cfg.Store,
		access:     cfg.Access,
		encryptor:  cfg.Encryptor,
		trusted:    cfg.Trusted,
		state:      cfg.State,
		refresh:    cfg.Refresh,
		cache:      cfg.Cache,
		httpClient: cfg.HTTPClient,
		log:        logger.New("lifecycle"),
		now:        time.Now,
	}
}

// UpdateResult reports a completed lifecycle operation.
type UpdateResult struct {
	ModelID string `json:"model_id"`
	Status  string `json:"status"`
}

// UpdateModel applies a patch to a model document and, when the model is
// deployed and the patch changes how inference is performed, fans a cache
// refresh out to every cluster node. Persistence is never rolled back on
// fan-out failure.
func (c *Controller) UpdateModel(ctx context.Context, user *access.User, input *mlmodel.UpdateInput) (*UpdateResult, error) {
	modelID := input.ModelID

	model, err := c.store.GetModel(ctx, modelID, true)
	if errors.Is(err, store.ErrNotFound) {
		return nil, mlerror.New(mlerror.StatusNotFound,
			"Failed to find model to update with the provided model id: %s", modelID)
	}
	if err != nil {
		return nil, mlerror.Wrap(mlerror.StatusInternal, err, "failed to load model %s", modelID)
	}

	if model.State.IsDeploying() {
		return nil, mlerror.New(mlerror.StatusConflict,
			"Model is deploying, please wait for it complete. model ID %s", modelID)
	}

	if model.Algorithm != mlmodel.AlgorithmTextEmbedding && model.Algorithm != mlmodel.AlgorithmRemote {
		return nil, mlerror.New(mlerror.StatusForbidden,
			"The function category %s is not supported at this time.", model.Algorithm)
	}

	if model.Hidden() {
		if !c.access.IsSuperAdmin(user) {
			return nil, mlerror.New(mlerror.StatusForbidden,
				"User doesn't have privilege to perform this operation on this model, model ID %s", modelID)
		}
	} else {
		ok, err := c.access.CanAccessModelGroup(ctx, user, model.ModelGroupID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, mlerror.New(mlerror.StatusForbidden,
				"User doesn't have privilege to perform this operation on this model, model ID %s", modelID)
		}
	}

	newGroupID := ""
	if input.ModelGroupID != nil && *input.ModelGroupID != "" && *input.ModelGroupID != model.ModelGroupID {
		newGroupID = *input.ModelGroupID
	}
	newConnectorID := ""
	if input.ConnectorID != nil && *input.ConnectorID != "" {
		newConnectorID = *input.ConnectorID
	}

	switch model.Algorithm {
	case mlmodel.AlgorithmTextEmbedding:
		if newConnectorID != "" || input.Connector != nil || input.ConnectorUpdateContent != nil {
			return nil, mlerror.New(mlerror.StatusInvalidInput,
				"Trying to update the connector or connector_id field on a local model.")
		}

	case mlmodel.AlgorithmRemote:
		if newConnectorID != "" {
			if model.ConnectorID == "" {
				return nil, mlerror.New(mlerror.StatusInvalidInput,
					"This remote does not have a connector_id field, maybe it uses an internal connector.")
			}
			ok, err := c.access.CanAccessConnector(ctx, user, newConnectorID)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, mlerror.New(mlerror.StatusForbidden,
					"You don't have permission to update the connector, connector id: %s", newConnectorID)
			}
		} else if input.ConnectorUpdateContent != nil {
			if model.Connector == nil {
				return nil, mlerror.New(mlerror.StatusInvalidInput,
					"This remote does not have an internal connector to update.")
			}
			updated := model.Connector.Clone()
			if err := input.ConnectorUpdateContent.Apply(updated, c.encryptor.Encrypt); err != nil {
				return nil, mlerror.Wrap(mlerror.StatusInternal, err,
					"failed to apply connector update on model %s", modelID)
			}
			if err := updated.ValidateURLs(c.trusted.Patterns()); err != nil {
				return nil, mlerror.Wrap(mlerror.StatusForbidden, err,
					"connector update rejected for model %s", modelID)
			}
			input.Connector = updated
			input.ConnectorUpdateContent = nil
		}
	}

	// re-deploy the predictor on in-place update only when inference changes
	isPredictorUpdate := input.Connector != nil || newConnectorID != ""
	isUpdateModelCache := model.State.IsDeployed() && isPredictorUpdate

	if newGroupID != "" {
		ok, err := c.access.CanAccessModelGroup(ctx, user, newGroupID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, mlerror.New(mlerror.StatusForbidden,
				"User Doesn't have privilege to re-link this model to the target model group due to no access to the target model group with model group ID %s",
				newGroupID)
		}
		version, err := c.bumpGroupVersion(ctx, newGroupID)
		if err != nil {
			return nil, err
		}
		v := strconv.Itoa(version)
		input.Version = &v
	}

	input.LastUpdateTime = c.now().UnixMilli()
	applyPatch(model, input)

	if err := c.store.PutModel(ctx, model, store.WriteOptions{RefreshImmediate: true}); err != nil {
		return nil, mlerror.Wrap(mlerror.StatusInternal, err, "Failed to update ML model: %s", modelID)
	}
	c.log.Info("", "model updated", map[string]interface{}{
		"model_id":            modelID,
		"is_predictor_update": isPredictorUpdate,
	})

	if isUpdateModelCache {
		nodes := c.state.Nodes()
		failed := c.refresh.RefreshCache(ctx, nodes, modelID, isPredictorUpdate)
		if len(failed) > 0 {
			return nil, &mlerror.StatusError{
				Status: mlerror.StatusPartialNodeFailure,
				Message: fmt.Sprintf(
					"Successfully update ML model index with model ID %s but update model cache was failed on following nodes [%s], maybe retry?",
					modelID, strings.Join(failed, ", ")),
				FailedNodes: failed,
			}
		}
	}

	return &UpdateResult{ModelID: modelID, Status: "updated"}, nil
}

// bumpGroupVersion increments the group's latest_version under optimistic
// concurrency. The group write precedes the model write so a crash between
// the two can only leave an unused version number behind.
func (c *Controller) bumpGroupVersion(ctx context.Context, groupID string) (int, error) {
	var lastErr error
	for attempt := 0; attempt < maxGroupBumpRetries; attempt++ {
		group, token, err := c.store.GetModelGroup(ctx, groupID)
		if errors.Is(err, store.ErrNotFound) {
			return 0, mlerror.New(mlerror.StatusNotFound,
				"Failed to find the model group with the provided model group id in the update model input, MODEL_GROUP_ID: %s",
				groupID)
		}
		if err != nil {
			return 0, mlerror.Wrap(mlerror.StatusInternal, err, "failed to load model group %s", groupID)
		}

		group.LatestVersion++
		group.LastUpdatedTime = c.now().UnixMilli()
		err = c.store.PutModelGroup(ctx, group, token, store.WriteOptions{RefreshImmediate: true})
		if errors.Is(err, store.ErrVersionConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return 0, mlerror.Wrap(mlerror.StatusInternal, err, "failed to update model group %s", groupID)
		}
		return group.LatestVersion, nil
	}
	return 0, mlerror.Wrap(mlerror.StatusConflict, lastErr,
		"failed to update model group %s after %d attempts", groupID, maxGroupBumpRetries)
}

// applyPatch folds the update input into the loaded document. A connector_id
// swap clears any embedded connector and vice versa, keeping the exactly-one
// invariant for remote models.
func applyPatch(m *mlmodel.Model, in *mlmodel.UpdateInput) {
	if in.NameNull {
		m.Name = ""
	} else if in.Name != nil {
		m.Name = *in.Name
	}
	if in.Description != nil {
		m.Description = *in.Description
	}
	if in.Version != nil {
		m.Version = *in.Version
	}
	if in.ModelGroupID != nil && *in.ModelGroupID != "" {
		m.ModelGroupID = *in.ModelGroupID
	}
	if in.Config != nil {
		m.Config = in.Config
	}
	if in.Connector != nil {
		m.Connector = in.Connector
		m.ConnectorID = ""
	}
	if in.ConnectorID != nil && *in.ConnectorID != "" {
		m.ConnectorID = *in.ConnectorID
		m.Connector = nil
	}
	m.LastUpdateTime = in.LastUpdateTime
}
