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

// Package main is the entry point for an MLPlane cluster node.
//
// A node serves the model lifecycle API, runs agents, and participates in
// the intra-cluster cache-refresh fan-out.
//
// Usage:
//
//	./node
//
// Environment Variables:
//
//	MLPLANE_SETTINGS - path to the node settings file (default: mlplane.yaml)
package main

import (
	"log"

	"mlplane/platform/node"
)

func main() {
	if err := node.Run(); err != nil {
		log.Fatalf("node exited: %v", err)
	}
}
