// Package flow implements the upload-and-predict cycle: accept an audio
// file, forward it to the inference client, track timing metadata and hold
// the outcome for rendering and report export.
//
// The cycle is re-entrant; a new file selection restarts it and discards
// any prior result or error. Because a superseded request is not aborted,
// each submission carries a generation number and only the newest
// generation may publish its outcome.
package flow

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/respireai/respire-web/internal/errors"
	"github.com/respireai/respire-web/internal/inference"
)

// State of the upload flow.
type State string

const (
	StateIdle      State = "idle"
	StateUploading State = "uploading"
	StateSuccess   State = "success"
	StateFailure   State = "failure"
)

// ErrSuperseded is reported to a submitter whose prediction finished after
// a newer upload had already restarted the cycle.
var ErrSuperseded = errors.NewStd("prediction superseded by a newer upload")

// Predictor is the single operation the flow needs from the API client.
type Predictor interface {
	Predict(ctx context.Context, filename, contentType string, audio io.Reader) (*inference.PredictionResult, error)
}

// Upload describes one selected file.
type Upload struct {
	FileName    string
	Size        int64
	ContentType string    // declared media type
	FromDrop    bool      // selected via drag-and-drop rather than the picker
	Audio       io.Reader // file content
}

// Snapshot is a copy of the flow's current state for rendering.
type Snapshot struct {
	State        State
	Result       *inference.PredictionResult
	Err          error
	FileName     string
	FileSize     string // human readable, e.g. "1.23 MB"
	UploadTime   time.Time
	AnalysisTime string // human readable elapsed duration, e.g. "2.3s"
}

// UploadFlow tracks one browser session's prediction cycle.
// Safe for concurrent use; a second Submit while one is in flight bumps
// the generation so the stale outcome is dropped.
type UploadFlow struct {
	predictor Predictor

	mu           sync.Mutex
	generation   uint64
	state        State
	result       *inference.PredictionResult
	err          error
	fileName     string
	fileSize     string
	uploadTime   time.Time
	analysisTime string

	now func() time.Time // injectable clock for tests
}

// New creates an idle upload flow bound to a predictor.
func New(predictor Predictor) *UploadFlow {
	return &UploadFlow{
		predictor: predictor,
		state:     StateIdle,
		now:       time.Now,
	}
}

// Submit runs one upload cycle and returns the resulting snapshot.
//
// Drag-and-drop uploads are accepted only when the declared media type has
// the audio prefix; a rejected drop records a validation error and makes
// no request, leaving any prior result in place. Accepted uploads clear
// the prior result and error, record the upload timestamp, call the
// predictor and publish the outcome, unless a newer Submit superseded this
// one, in which case ErrSuperseded is returned and nothing is published.
func (f *UploadFlow) Submit(ctx context.Context, up Upload) (Snapshot, error) {
	if up.FromDrop && !strings.HasPrefix(up.ContentType, "audio/") {
		err := errors.ValidationError("Please select an audio file")
		f.mu.Lock()
		f.err = err
		snap := f.snapshotLocked()
		f.mu.Unlock()
		return snap, err
	}

	f.mu.Lock()
	f.generation++
	gen := f.generation
	f.state = StateUploading
	f.result = nil
	f.err = nil
	f.fileName = up.FileName
	f.fileSize = formatFileSize(up.Size)
	f.uploadTime = f.now()
	f.analysisTime = ""
	start := f.uploadTime
	f.mu.Unlock()

	result, err := f.predictor.Predict(ctx, up.FileName, up.ContentType, up.Audio)
	elapsed := f.now().Sub(start)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.generation != gen {
		// A newer upload owns the result slot now.
		return f.snapshotLocked(), ErrSuperseded
	}

	f.analysisTime = formatAnalysisTime(elapsed)
	if err != nil {
		f.state = StateFailure
		f.err = err
		return f.snapshotLocked(), err
	}
	f.state = StateSuccess
	f.result = result
	return f.snapshotLocked(), nil
}

// Snapshot returns a copy of the current flow state.
func (f *UploadFlow) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

// Reset returns the flow to idle, discarding result, error and timing.
func (f *UploadFlow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generation++
	f.state = StateIdle
	f.result = nil
	f.err = nil
	f.fileName = ""
	f.fileSize = ""
	f.uploadTime = time.Time{}
	f.analysisTime = ""
}

func (f *UploadFlow) snapshotLocked() Snapshot {
	return Snapshot{
		State:        f.state,
		Result:       f.result,
		Err:          f.err,
		FileName:     f.fileName,
		FileSize:     f.fileSize,
		UploadTime:   f.uploadTime,
		AnalysisTime: f.analysisTime,
	}
}

// formatFileSize renders a byte count in megabytes with two decimals.
func formatFileSize(size int64) string {
	return fmt.Sprintf("%.2f MB", float64(size)/1024/1024)
}

// formatAnalysisTime renders an elapsed duration in seconds with one decimal.
func formatAnalysisTime(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
