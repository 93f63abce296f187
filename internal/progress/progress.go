// Package progress implements the thread-safe progress sink: a single
// owning goroutine multiplexes ProgressEvents from every in-flight
// pipeline into one of three display modes (rich multi-bar TUI, plain
// line-log, or silent/JSON). Having exactly one sink own the terminal is
// the mandated fix for the source's documented per-file sub-bar collision
// bug — workers only ever emit events onto a channel.
package progress

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"

	"snowetl/internal/model"
)

// Mode selects the tracker's display surface.
type Mode int

const (
	ModeRich Mode = iota
	ModePlain
	ModeSilent
)

// coalesceWindow is the minimum gap between two displayed analyze, compress
// or upload progress events for the same file: such an event arriving sooner
// after the last displayed one is dropped, unless it is the file's final one
// (Current == Total).
const coalesceWindow = 100 * time.Millisecond

// Tracker is the single sink every pipeline and the orchestrator send
// events to. Construct one per run with New and call Close when the run
// finishes.
type Tracker struct {
	mode   Mode
	out    io.Writer
	events chan model.ProgressEvent
	done   chan struct{}
	wg     sync.WaitGroup

	mu   sync.Mutex
	bars map[string]*progressbar.ProgressBar
}

// New starts the owning goroutine and returns a Tracker ready to accept
// events via Emit.
func New(mode Mode, out io.Writer) *Tracker {
	t := &Tracker{
		mode:   mode,
		out:    out,
		events: make(chan model.ProgressEvent, 256),
		done:   make(chan struct{}),
		bars:   make(map[string]*progressbar.ProgressBar),
	}
	t.wg.Add(1)
	go t.run()
	return t
}

// Emit hands an event to the sink. It never blocks the caller on display
// I/O: if the internal buffer is momentarily full, the event is dropped
// rather than stalling the producing pipeline, matching the tracker's
// coalescing contract for BytesAdvanced-shaped events.
func (t *Tracker) Emit(e model.ProgressEvent) {
	select {
	case t.events <- e:
	default:
		// backpressure: drop rather than block; byte-progress events are
		// inherently coalesce-safe since a later event supersedes an earlier one
	}
}

// Close stops the owning goroutine once all queued events have drained.
func (t *Tracker) Close() {
	close(t.events)
	t.wg.Wait()
}

func (t *Tracker) run() {
	defer t.wg.Done()
	lastFlush := make(map[string]time.Time)

	for e := range t.events {
		if e.Kind == model.EventCompressProgress || e.Kind == model.EventUploadProgress || e.Kind == model.EventAnalyzeProgress {
			if last, ok := lastFlush[e.File]; ok && time.Since(last) < coalesceWindow && e.Current != e.Total {
				continue
			}
			lastFlush[e.File] = time.Now()
		}
		t.render(e)
	}
}

func (t *Tracker) render(e model.ProgressEvent) {
	switch t.mode {
	case ModeSilent:
		t.renderJSON(e)
	case ModePlain:
		t.renderPlain(e)
	default:
		t.renderRich(e)
	}
}

func (t *Tracker) renderJSON(e model.ProgressEvent) {
	b, err := json.Marshal(e)
	if err != nil {
		return
	}
	fmt.Fprintln(t.out, string(b))
}

func (t *Tracker) renderPlain(e model.ProgressEvent) {
	switch e.Kind {
	case model.EventCompressProgress, model.EventUploadProgress:
		fmt.Fprintf(t.out, "%s %s: %s / %s\n", e.Kind, e.File, humanize.Bytes(uint64(e.Current)), humanize.Bytes(uint64(e.Total)))
	case model.EventLoadDone:
		fmt.Fprintf(t.out, "%s: done\n", e.File)
	case model.EventLoadFailed:
		fmt.Fprintf(t.out, "%s: failed: %s\n", e.File, e.Message)
	default:
		fmt.Fprintf(t.out, "%s %s\n", e.Kind, e.File)
	}
}

func (t *Tracker) renderRich(e model.ProgressEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch e.Kind {
	case model.EventAnalyzeStart:
		if _, ok := t.bars[e.File]; !ok {
			t.bars[e.File] = progressbar.NewOptions64(100,
				progressbar.OptionSetDescription(shortName(e.File)),
				progressbar.OptionSetWriter(t.out),
				progressbar.OptionClearOnFinish(),
			)
		}
	case model.EventCompressProgress, model.EventUploadProgress:
		bar, ok := t.bars[e.File]
		if !ok {
			return
		}
		if e.Total > 0 {
			bar.ChangeMax64(e.Total)
		}
		_ = bar.Set64(e.Current)
	case model.EventLoadDone, model.EventLoadFailed:
		if bar, ok := t.bars[e.File]; ok {
			_ = bar.Finish()
			delete(t.bars, e.File)
		}
	}
}

func shortName(path string) string {
	i := len(path) - 1
	for i >= 0 && path[i] != '/' {
		i--
	}
	return path[i+1:]
}
