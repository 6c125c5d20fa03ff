package listeners

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/INLOpen/factstore/hooks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileManifestListener_OnEvent(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))

	listener := NewFileManifestListener(logger)
	require.NotNil(t, listener)

	t.Run("TracksRegisteredFile", func(t *testing.T) {
		payload := hooks.FileRegisterPayload{
			Table:       "fact",
			Sequence:    0,
			Path:        "data/fact_0.fact.inprogress",
			DurablePath: "data/fact_0.fact",
		}
		err := listener.OnEvent(context.Background(), hooks.NewPostFileRegisterEvent(payload))
		require.NoError(t, err)

		assert.Equal(t, []string{"data/fact_0.fact"}, listener.InProgress())
		assert.Empty(t, listener.Finalized())
	})

	t.Run("FinalizeClearsInProgress", func(t *testing.T) {
		payload := hooks.FileFinalizePayload{
			Table:     "fact",
			Sequence:  0,
			Path:      "data/fact_0.fact",
			Size:      65,
			Blocklets: 1,
		}
		err := listener.OnEvent(context.Background(), hooks.NewPostFileFinalizeEvent(payload))
		require.NoError(t, err)

		assert.Empty(t, listener.InProgress())
		finalized := listener.Finalized()
		require.Len(t, finalized, 1)
		assert.Equal(t, payload, finalized[0])
	})

	t.Run("WrongPayloadTypeIsLoggedNotFatal", func(t *testing.T) {
		logBuf.Reset()

		err := listener.OnEvent(context.Background(), &wrongPayloadEvent{})
		require.NoError(t, err)
		assert.Contains(t, logBuf.String(), "incorrect payload type")
		assert.Empty(t, listener.InProgress())
	})

	t.Run("IgnoresRotateEvents", func(t *testing.T) {
		err := listener.OnEvent(context.Background(), hooks.NewPostSegmentRotateEvent(hooks.PostSegmentRotatePayload{OldSequence: 0, NewSequence: 1}))
		require.NoError(t, err)
		assert.Empty(t, listener.InProgress())
		assert.Len(t, listener.Finalized(), 1, "rotate events must not touch the finalized list")
	})
}

// wrongPayloadEvent claims to be a register event but carries no payload.
type wrongPayloadEvent struct{}

func (e *wrongPayloadEvent) Type() hooks.EventType { return hooks.EventPostFileRegister }
func (e *wrongPayloadEvent) Payload() interface{}  { return 42 }

func TestFileManifestListener_InProgressSorted(t *testing.T) {
	listener := NewFileManifestListener(nil)

	for _, seq := range []uint32{2, 0, 1} {
		payload := hooks.FileRegisterPayload{
			Table:       "fact",
			Sequence:    seq,
			DurablePath: fmt.Sprintf("data/fact_%d.fact", seq),
		}
		require.NoError(t, listener.OnEvent(context.Background(), hooks.NewPostFileRegisterEvent(payload)))
	}

	assert.Equal(t, []string{"data/fact_0.fact", "data/fact_1.fact", "data/fact_2.fact"}, listener.InProgress())
}

func TestFileManifestListener_Attach(t *testing.T) {
	manager := hooks.NewHookManager(nil)
	listener := NewFileManifestListener(nil)
	listener.Attach(manager)

	register := hooks.FileRegisterPayload{Table: "fact", Sequence: 7, Path: "data/fact_7.fact.inprogress", DurablePath: "data/fact_7.fact"}
	require.NoError(t, manager.Trigger(context.Background(), hooks.NewPostFileRegisterEvent(register)))
	assert.Equal(t, []string{"data/fact_7.fact"}, listener.InProgress())

	finalize := hooks.FileFinalizePayload{Table: "fact", Sequence: 7, Path: "data/fact_7.fact", Size: 120, Blocklets: 2}
	require.NoError(t, manager.Trigger(context.Background(), hooks.NewPostFileFinalizeEvent(finalize)))
	assert.Empty(t, listener.InProgress())
	require.Len(t, listener.Finalized(), 1)
	assert.Equal(t, finalize, listener.Finalized()[0])
}
