package progress

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowetl/internal/model"
)

func TestSilentModeEmitsOneJSONLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	tr := New(ModeSilent, &buf)
	tr.Emit(model.ProgressEvent{Kind: model.EventLoadDone, File: "a.tsv", Timestamp: time.Now()})
	tr.Emit(model.ProgressEvent{Kind: model.EventJobDone, File: "a.tsv", Timestamp: time.Now()})
	tr.Close()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	var e model.ProgressEvent
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &e))
	assert.Equal(t, model.EventLoadDone, e.Kind)
}

func TestPlainModeRendersReadableLines(t *testing.T) {
	var buf bytes.Buffer
	tr := New(ModePlain, &buf)
	tr.Emit(model.ProgressEvent{Kind: model.EventLoadDone, File: "a.tsv"})
	tr.Close()
	assert.Contains(t, buf.String(), "a.tsv: done")
}

func TestEmitNeverBlocksOnFullBuffer(t *testing.T) {
	var buf bytes.Buffer
	tr := New(ModeSilent, &buf)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			tr.Emit(model.ProgressEvent{Kind: model.EventCompressProgress, File: "big.tsv", Current: int64(i), Total: 10000})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked under backpressure")
	}
	tr.Close()
}
