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

// Package mlerror defines the status-carrying error type shared by the model
// lifecycle controller, the remote connector engine, and the node transport.
package mlerror

import (
	"errors"
	"fmt"
	"net/http"
)

// Status classifies an error for callers and for the HTTP mapping.
type Status string

const (
	StatusNotReady           Status = "NOT_READY"
	StatusInvalidInput       Status = "BAD_REQUEST"
	StatusForbidden          Status = "FORBIDDEN"
	StatusNotFound           Status = "NOT_FOUND"
	StatusConflict           Status = "CONFLICT"
	StatusUpstreamHTTP       Status = "UPSTREAM_HTTP"
	StatusSerialization      Status = "SERIALIZATION"
	StatusPartialNodeFailure Status = "PARTIAL_NODE_FAILURE"
	StatusInternal           Status = "INTERNAL"
)

// StatusError is the error surfaced across component boundaries. It carries a
// semantic status, a caller-facing message, an optional cause, and, for
// partial cache-refresh failures, the list of nodes that did not confirm.
type StatusError struct {
	Status      Status
	Message     string
	Cause       error
	FailedNodes []string
}

func (e *StatusError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Status, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Status, e.Message)
}

func (e *StatusError) Unwrap() error {
	return e.Cause
}

// New creates a StatusError with a formatted message.
func New(status Status, format string, args ...interface{}) *StatusError {
	return &StatusError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a StatusError around a cause.
func Wrap(status Status, cause error, format string, args ...interface{}) *StatusError {
	return &StatusError{Status: status, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// StatusOf extracts the status from err, walking the wrap chain. Errors that
// carry no status are reported as INTERNAL.
func StatusOf(err error) Status {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return StatusInternal
}

// HTTPCode maps a status to the code surfaced by the node transport.
func HTTPCode(status Status) int {
	switch status {
	case StatusInvalidInput, StatusSerialization:
		return http.StatusBadRequest
	case StatusForbidden:
		return http.StatusForbidden
	case StatusNotFound:
		return http.StatusNotFound
	case StatusConflict:
		return http.StatusConflict
	case StatusNotReady:
		return http.StatusServiceUnavailable
	case StatusUpstreamHTTP:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
