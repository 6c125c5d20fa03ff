package listeners

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/INLOpen/factstore/hooks"
)

// FileManifestListener tracks the segment files a writer has announced.
// Files that were registered but not yet finalized are exactly the ones a
// crash would leave behind under an in-progress name, so the manifest is the
// natural input for startup cleanup or external catalogs.
type FileManifestListener struct {
	logger *slog.Logger

	mu         sync.Mutex
	inProgress map[string]hooks.FileRegisterPayload // keyed by table and sequence
	finalized  []hooks.FileFinalizePayload
}

// NewFileManifestListener creates a manifest listener.
func NewFileManifestListener(logger *slog.Logger) *FileManifestListener {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &FileManifestListener{
		logger:     logger.With("component", "FileManifestListener"),
		inProgress: make(map[string]hooks.FileRegisterPayload),
	}
}

// Attach registers the listener for the file lifecycle events it consumes.
func (l *FileManifestListener) Attach(manager hooks.HookManager) {
	manager.Register(hooks.EventPostFileRegister, l)
	manager.Register(hooks.EventPostFileFinalize, l)
}

func manifestKey(table string, sequence uint32) string {
	return fmt.Sprintf("%s/%d", table, sequence)
}

// OnEvent handles file register and finalize events.
func (l *FileManifestListener) OnEvent(ctx context.Context, event hooks.HookEvent) error {
	switch event.Type() {
	case hooks.EventPostFileRegister:
		payload, ok := event.Payload().(hooks.FileRegisterPayload)
		if !ok {
			l.logger.Error("Received PostFileRegister event with incorrect payload type", "payload_type", fmt.Sprintf("%T", event.Payload()))
			return nil
		}
		l.mu.Lock()
		l.inProgress[manifestKey(payload.Table, payload.Sequence)] = payload
		l.mu.Unlock()

	case hooks.EventPostFileFinalize:
		payload, ok := event.Payload().(hooks.FileFinalizePayload)
		if !ok {
			l.logger.Error("Received PostFileFinalize event with incorrect payload type", "payload_type", fmt.Sprintf("%T", event.Payload()))
			return nil
		}
		l.mu.Lock()
		delete(l.inProgress, manifestKey(payload.Table, payload.Sequence))
		l.finalized = append(l.finalized, payload)
		l.mu.Unlock()
	}
	return nil
}

// InProgress returns the durable paths of files that were registered but not
// yet finalized, sorted for stable output.
func (l *FileManifestListener) InProgress() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	paths := make([]string, 0, len(l.inProgress))
	for _, payload := range l.inProgress {
		paths = append(paths, payload.DurablePath)
	}
	sort.Strings(paths)
	return paths
}

// Finalized returns the finalize payloads seen so far, in finalize order.
func (l *FileManifestListener) Finalized() []hooks.FileFinalizePayload {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]hooks.FileFinalizePayload, len(l.finalized))
	copy(out, l.finalized)
	return out
}

// Priority defines the execution order. The manifest runs before most other
// listeners so they observe an up-to-date view.
func (l *FileManifestListener) Priority() int { return 10 }

// IsAsync indicates this listener must run synchronously so the manifest is
// consistent the moment Trigger returns.
func (l *FileManifestListener) IsAsync() bool { return false }
