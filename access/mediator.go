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

package access

import (
	"context"
	"errors"

	"mlplane/platform/connector"
	"mlplane/platform/mlmodel"
	"mlplane/platform/shared/mlerror"
	"mlplane/platform/store"
)

// aclStore is the slice of the document store the mediator reads.
type aclStore interface {
	GetModelGroup(ctx context.Context, groupID string) (*mlmodel.ModelGroup, store.ConcurrencyToken, error)
	GetConnector(ctx context.Context, connectorID string) (*connector.Connector, error)
}

// Mediator answers per-user authorization questions.
type Mediator struct {
	store aclStore
}

// NewMediator builds a mediator over the document store.
func NewMediator(s aclStore) *Mediator {
	return &Mediator{store: s}
}

// IsSuperAdmin reports whether the caller bypasses resource ACLs.
func (m *Mediator) IsSuperAdmin(user *User) bool {
	return user.HasRole(SuperAdminRole)
}

// CanAccessModelGroup reports whether the caller may act on the group. A
// model without a group is open to any authenticated caller. Callers turn a
// false answer into their own operation-specific error.
func (m *Mediator) CanAccessModelGroup(ctx context.Context, user *User, groupID string) (bool, error) {
	if groupID == "" {
		return true, nil
	}
	if m.IsSuperAdmin(user) {
		return true, nil
	}

	group, _, err := m.store.GetModelGroup(ctx, groupID)
	if errors.Is(err, store.ErrNotFound) {
		return false, mlerror.New(mlerror.StatusNotFound, "Failed to find model group with ID: %s", groupID)
	}
	if err != nil {
		return false, mlerror.Wrap(mlerror.StatusInternal, err, "failed to load model group %s", groupID)
	}
	return allowed(user, string(group.Access), group.Owner, group.BackendRoles), nil
}

// ValidateModelGroupAccess is CanAccessModelGroup with a generic forbidden
// error for callers that do not need their own message.
func (m *Mediator) ValidateModelGroupAccess(ctx context.Context, user *User, groupID string) error {
	ok, err := m.CanAccessModelGroup(ctx, user, groupID)
	if err != nil {
		return err
	}
	if !ok {
		return mlerror.New(mlerror.StatusForbidden,
			"User doesn't have privilege to perform this operation on this model group, model group ID %s", groupID)
	}
	return nil
}

// CanAccessConnector reports whether the caller may use a stand-alone
// connector.
func (m *Mediator) CanAccessConnector(ctx context.Context, user *User, connectorID string) (bool, error) {
	if m.IsSuperAdmin(user) {
		return true, nil
	}

	c, err := m.store.GetConnector(ctx, connectorID)
	if errors.Is(err, store.ErrNotFound) {
		return false, mlerror.New(mlerror.StatusNotFound, "Failed to find connector with ID: %s", connectorID)
	}
	if err != nil {
		return false, mlerror.Wrap(mlerror.StatusInternal, err, "failed to load connector %s", connectorID)
	}
	return allowed(user, c.Access, c.Owner, c.BackendRoles), nil
}

// ValidateConnectorAccess is CanAccessConnector with a generic forbidden
// error.
func (m *Mediator) ValidateConnectorAccess(ctx context.Context, user *User, connectorID string) error {
	ok, err := m.CanAccessConnector(ctx, user, connectorID)
	if err != nil {
		return err
	}
	if !ok {
		return mlerror.New(mlerror.StatusForbidden,
			"You don't have permission to use the connector provided, connector id: %s", connectorID)
	}
	return nil
}

// allowed evaluates one ACL descriptor. Missing access mode is treated as
// public so pre-ACL documents keep working.
func allowed(user *User, access, owner string, backendRoles []string) bool {
	switch mlmodel.AccessMode(access) {
	case mlmodel.AccessPrivate:
		return user != nil && user.Name == owner
	case mlmodel.AccessRestricted:
		if user == nil {
			return false
		}
		if user.Name == owner {
			return true
		}
		for _, role := range user.BackendRoles {
			for _, allowedRole := range backendRoles {
				if role == allowedRole {
					return true
				}
			}
		}
		return false
	default:
		return true
	}
}
