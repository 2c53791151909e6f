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

package settings

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"

	"mlplane/platform/shared/logger"
)

// Watch re-reads the settings file whenever it changes and delivers the new
// config to onChange. Malformed edits are logged and skipped; the previous
// settings stay in effect. Watch blocks until ctx is done, so callers run it
// in its own goroutine.
func Watch(ctx context.Context, path string, log *logger.Logger, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create settings watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("failed to watch settings file %s: %w", path, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := Load(path)
			if err != nil {
				log.ErrorWithErr("", "Ignoring settings change, reload failed", err, nil)
				continue
			}
			log.Info("", "Settings file changed, applying update", map[string]interface{}{
				"path": path,
			})
			onChange(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.ErrorWithErr("", "Settings watcher error", err, nil)
		}
	}
}
