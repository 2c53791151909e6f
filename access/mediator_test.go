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
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlplane/platform/connector"
	"mlplane/platform/mlmodel"
	"mlplane/platform/shared/mlerror"
	"mlplane/platform/store"
)

type fakeACLStore struct {
	groups     map[string]*mlmodel.ModelGroup
	connectors map[string]*connector.Connector
}

func (f *fakeACLStore) GetModelGroup(ctx context.Context, groupID string) (*mlmodel.ModelGroup, store.ConcurrencyToken, error) {
	g, ok := f.groups[groupID]
	if !ok {
		return nil, store.ConcurrencyToken{}, store.ErrNotFound
	}
	return g, store.ConcurrencyToken{}, nil
}

func (f *fakeACLStore) GetConnector(ctx context.Context, connectorID string) (*connector.Connector, error) {
	c, ok := f.connectors[connectorID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return c, nil
}

func newTestMediator() *Mediator {
	return NewMediator(&fakeACLStore{
		groups: map[string]*mlmodel.ModelGroup{
			"g-public": {ModelGroupID: "g-public", Access: mlmodel.AccessPublic},
			"g-private": {
				ModelGroupID: "g-private",
				Access:       mlmodel.AccessPrivate,
				Owner:        "alice",
			},
			"g-restricted": {
				ModelGroupID: "g-restricted",
				Access:       mlmodel.AccessRestricted,
				Owner:        "alice",
				BackendRoles: []string{"ml-team", "search-team"},
			},
			"g-legacy": {ModelGroupID: "g-legacy"},
		},
		connectors: map[string]*connector.Connector{
			"c-private": {
				Name:   "openai",
				Access: string(mlmodel.AccessPrivate),
				Owner:  "alice",
			},
		},
	})
}

func TestCanAccessModelGroup(t *testing.T) {
	m := newTestMediator()
	ctx := context.Background()

	tests := []struct {
		name    string
		user    *User
		groupID string
		want    bool
	}{
		{"empty group is open", nil, "", true},
		{"super admin bypasses private", &User{Name: "ops", Roles: []string{SuperAdminRole}}, "g-private", true},
		{"public open to anyone", &User{Name: "bob"}, "g-public", true},
		{"private owner", &User{Name: "alice"}, "g-private", true},
		{"private non-owner", &User{Name: "bob"}, "g-private", false},
		{"private anonymous", nil, "g-private", false},
		{"restricted owner", &User{Name: "alice"}, "g-restricted", true},
		{"restricted matching backend role", &User{Name: "bob", BackendRoles: []string{"search-team"}}, "g-restricted", true},
		{"restricted no matching role", &User{Name: "bob", BackendRoles: []string{"billing"}}, "g-restricted", false},
		{"restricted anonymous", nil, "g-restricted", false},
		{"missing access mode is public", &User{Name: "bob"}, "g-legacy", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := m.CanAccessModelGroup(ctx, tc.user, tc.groupID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCanAccessModelGroupMissingGroup(t *testing.T) {
	m := newTestMediator()

	_, err := m.CanAccessModelGroup(context.Background(), &User{Name: "bob"}, "g-missing")
	require.Error(t, err)
	assert.Equal(t, mlerror.StatusNotFound, mlerror.StatusOf(err))
	assert.Contains(t, err.Error(), "Failed to find model group with ID: g-missing")
}

func TestValidateModelGroupAccessForbidden(t *testing.T) {
	m := newTestMediator()

	err := m.ValidateModelGroupAccess(context.Background(), &User{Name: "bob"}, "g-private")
	require.Error(t, err)
	assert.Equal(t, mlerror.StatusForbidden, mlerror.StatusOf(err))
	assert.Contains(t, err.Error(),
		"User doesn't have privilege to perform this operation on this model group, model group ID g-private")
}

func TestValidateConnectorAccess(t *testing.T) {
	m := newTestMediator()
	ctx := context.Background()

	assert.NoError(t, m.ValidateConnectorAccess(ctx, &User{Name: "alice"}, "c-private"))

	err := m.ValidateConnectorAccess(ctx, &User{Name: "bob"}, "c-private")
	require.Error(t, err)
	assert.Equal(t, mlerror.StatusForbidden, mlerror.StatusOf(err))
	assert.Contains(t, err.Error(),
		"You don't have permission to use the connector provided, connector id: c-private")

	err = m.ValidateConnectorAccess(ctx, &User{Name: "bob"}, "c-missing")
	require.Error(t, err)
	assert.Equal(t, mlerror.StatusNotFound, mlerror.StatusOf(err))
}

func TestExtractUser(t *testing.T) {
	secret := []byte("mediator-test-secret")

	sign := func(claims jwt.MapClaims) string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := token.SignedString(secret)
		require.NoError(t, err)
		return signed
	}

	t.Run("full claims", func(t *testing.T) {
		user, err := ExtractUser(sign(jwt.MapClaims{
			"name":          "alice",
			"roles":         "ml_full_access,all_access",
			"backend_roles": "ml-team",
			"exp":           time.Now().Add(time.Hour).Unix(),
		}), secret)
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Name)
		assert.Equal(t, []string{"ml_full_access", "all_access"}, user.Roles)
		assert.Equal(t, []string{"ml-team"}, user.BackendRoles)
		assert.True(t, user.HasRole(SuperAdminRole))
	})

	t.Run("sub fallback", func(t *testing.T) {
		user, err := ExtractUser(sign(jwt.MapClaims{"sub": "bob"}), secret)
		require.NoError(t, err)
		assert.Equal(t, "bob", user.Name)
		assert.Empty(t, user.Roles)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := sign(jwt.MapClaims{"name": "alice"})
		_, err := ExtractUser(token, []byte("other-secret"))
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		token := sign(jwt.MapClaims{
			"name": "alice",
			"exp":  time.Now().Add(-time.Hour).Unix(),
		})
		_, err := ExtractUser(token, secret)
		assert.Error(t, err)
	})

	t.Run("no name", func(t *testing.T) {
		_, err := ExtractUser(sign(jwt.MapClaims{"roles": "x"}), secret)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "token carries no user name")
	})
}
