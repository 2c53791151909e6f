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

// Package access mediates per-user checks against model-group and connector
// ACLs, with a super-admin bypass for hidden models.
package access

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// SuperAdminRole grants the ACL bypass used to reach hidden models.
const SuperAdminRole = "all_access"

// User is the request-scoped caller identity.
type User struct {
	Name         string
	Roles        []string
	BackendRoles []string
}

// HasRole reports whether the user carries the given role.
func (u *User) HasRole(role string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type userContextKey struct{}

// WithUser stashes the caller identity in the request context.
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFrom returns the caller identity, or nil for unauthenticated requests.
func UserFrom(ctx context.Context) *User {
	user, _ := ctx.Value(userContextKey{}).(*User)
	return user
}

// ExtractUser parses a bearer token into a caller identity. Roles and
// backend_roles claims are comma-separated strings.
func ExtractUser(tokenString string, secret []byte) (*User, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %v", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	name := getClaimString(claims, "name")
	if name == "" {
		name = getClaimString(claims, "sub")
	}
	if name == "" {
		return nil, fmt.Errorf("token carries no user name")
	}

	return &User{
		Name:         name,
		Roles:        getClaimStringArray(claims, "roles"),
		BackendRoles: getClaimStringArray(claims, "backend_roles"),
	}, nil
}

func getClaimString(claims jwt.MapClaims, key string) string {
	if val, ok := claims[key].(string); ok {
		return val
	}
	return ""
}

func getClaimStringArray(claims jwt.MapClaims, key string) []string {
	if val, ok := claims[key].(string); ok {
		if val == "" {
			return []string{}
		}
		return strings.Split(val, ",")
	}
	return []string{}
}
