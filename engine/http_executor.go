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
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"mlplane/platform/connector"
	"mlplane/platform/shared/mlerror"
	"mlplane/platform/tensor"
)

const (
	// DefaultHTTPTimeout bounds one remote inference call.
	DefaultHTTPTimeout = 30 * time.Second
	// DefaultMaxResponseSize is the maximum response body size (10MB).
	DefaultMaxResponseSize = 10 * 1024 * 1024
)

func init() {
	RegisterExecutor(connector.ProtocolHTTP, func(conn *connector.Connector, deps Deps) (Executor, error) {
		return NewHTTPExecutor(conn, deps)
	})
}

// HTTPExecutor invokes a connector action over HTTP 1.1. The request body is
// produced by template substitution against the call parameters and the
// decrypted credentials.
type HTTPExecutor struct {
	conn            *connector.Connector
	deps            Deps
	client          *http.Client
	maxResponseSize int64
}

// NewHTTPExecutor builds an executor for a decrypted connector clone.
func NewHTTPExecutor(conn *connector.Connector, deps Deps) (*HTTPExecutor, error) {
	if deps.Trusted == nil {
		return nil, fmt.Errorf("http executor requires a trusted endpoint list")
	}

	client := deps.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout: DefaultHTTPTimeout,
			Transport: &http.Transport{
				MaxIdleConns:    100,
				MaxConnsPerHost: 10,
				IdleConnTimeout: 90 * time.Second,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
		}
	}

	return &HTTPExecutor{
		conn:            conn,
		deps:            deps,
		client:          client,
		maxResponseSize: DefaultMaxResponseSize,
	}, nil
}

// ExecutePredict implements the remote execution algorithm: select the
// action, resolve URL / headers / body, check the URL against the trusted
// allow-list, perform the call, and map the parsed JSON root into a tensor
// output named "response".
func (e *HTTPExecutor) ExecutePredict(ctx context.Context, input *Input) (*tensor.TensorOutput, error) {
	actionType := input.ActionType
	if actionType == "" {
		actionType = connector.ActionPredict
	}
	action := e.conn.FindAction(actionType)
	if action == nil {
		return nil, mlerror.New(mlerror.StatusInvalidInput, "no %s action found on connector %s", actionType, e.conn.Name)
	}

	params := mergeParameters(e.conn.Parameters, input.Parameters)

	url := connector.Substitute(action.URL, params, e.conn.Credential)
	if !e.deps.Trusted.Matches(url) {
		return nil, mlerror.New(mlerror.StatusForbidden, "connector URL is not matching the trusted connector endpoint regex, URL is: %s", url)
	}

	body := connector.Substitute(action.RequestBody, params, e.conn.Credential)

	req, err := http.NewRequestWithContext(ctx, action.Method, url, strings.NewReader(body))
	if err != nil {
		return nil, mlerror.Wrap(mlerror.StatusInvalidInput, err, "failed to build request for connector %s", e.conn.Name)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range action.Headers {
		req.Header.Set(k, connector.Substitute(v, params, e.conn.Credential))
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, mlerror.Wrap(mlerror.StatusUpstreamHTTP, err, "remote inference request failed, URL is: %s", url)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, e.maxResponseSize+1))
	if err != nil {
		return nil, mlerror.Wrap(mlerror.StatusUpstreamHTTP, err, "failed to read remote inference response")
	}
	if int64(len(raw)) > e.maxResponseSize {
		return nil, mlerror.New(mlerror.StatusUpstreamHTTP, "remote inference response exceeds %d bytes", e.maxResponseSize)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(raw)
		if len(msg) > 200 {
			msg = msg[:200] + "..."
		}
		return nil, mlerror.New(mlerror.StatusUpstreamHTTP, "remote inference failed with HTTP %d: %s", resp.StatusCode, msg)
	}

	return parseResponseRoot(raw)
}

// parseResponseRoot maps the response JSON root into the uniform tensor
// shape. A non-object root is wrapped under a "response" key.
func parseResponseRoot(raw []byte) (*tensor.TensorOutput, error) {
	var root interface{}
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, mlerror.Wrap(mlerror.StatusSerialization, err, "remote inference response is not valid JSON")
	}

	if obj, ok := root.(map[string]interface{}); ok {
		return tensor.FromJSONRoot(obj), nil
	}
	return tensor.FromJSONRoot(map[string]interface{}{"response": root}), nil
}

func mergeParameters(base, override map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}
