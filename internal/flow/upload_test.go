package flow

import (
	"context"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/respireai/respire-web/internal/errors"
	"github.com/respireai/respire-web/internal/inference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	// go-cache runs a long-lived janitor goroutine per cache
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"))
}

// fakePredictor returns canned results keyed by filename. When a release
// channel exists for the filename, the call blocks until it is closed.
type fakePredictor struct {
	results map[string]*inference.PredictionResult
	err     error
	release map[string]chan struct{}
	started chan string
	calls   atomic.Int32
}

func (p *fakePredictor) Predict(ctx context.Context, filename, contentType string, audio io.Reader) (*inference.PredictionResult, error) {
	p.calls.Add(1)
	if p.started != nil {
		p.started <- filename
	}
	if gate, ok := p.release[filename]; ok {
		<-gate
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.results[filename], nil
}

func healthyResult() *inference.PredictionResult {
	return &inference.PredictionResult{
		PredictedClass: 0,
		Label:          "Healthy / Normal",
		Description:    "No abnormal sounds detected. Breathing appears normal.",
		Confidence:     0.95,
		RawPredictions: []float64{0.95, 0.01, 0.01, 0.01, 0.01, 0.005, 0.005},
	}
}

func audioUpload(name string) Upload {
	return Upload{
		FileName:    name,
		Size:        1 << 20,
		ContentType: "audio/wav",
		Audio:       strings.NewReader("RIFF"),
	}
}

func TestSubmitSuccess(t *testing.T) {
	t.Parallel()

	p := &fakePredictor{results: map[string]*inference.PredictionResult{"breath.wav": healthyResult()}}
	f := New(p)

	assert.Equal(t, StateIdle, f.Snapshot().State)

	snap, err := f.Submit(context.Background(), audioUpload("breath.wav"))
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, snap.State)
	assert.Equal(t, healthyResult(), snap.Result)
	assert.Equal(t, "breath.wav", snap.FileName)
	assert.Equal(t, "1.00 MB", snap.FileSize)
	assert.False(t, snap.UploadTime.IsZero())
	assert.NotEmpty(t, snap.AnalysisTime)
}

func TestSubmitFailure(t *testing.T) {
	t.Parallel()

	p := &fakePredictor{err: errors.NewStd("model is not available")}
	f := New(p)

	snap, err := f.Submit(context.Background(), audioUpload("breath.wav"))
	require.Error(t, err)
	assert.Equal(t, StateFailure, snap.State)
	assert.Nil(t, snap.Result)
	assert.Equal(t, err, snap.Err)
}

func TestDroppedNonAudioFileRejected(t *testing.T) {
	t.Parallel()

	p := &fakePredictor{results: map[string]*inference.PredictionResult{"breath.wav": healthyResult()}}
	f := New(p)

	// Establish a prior successful result first.
	_, err := f.Submit(context.Background(), audioUpload("breath.wav"))
	require.NoError(t, err)

	snap, err := f.Submit(context.Background(), Upload{
		FileName:    "scan.png",
		ContentType: "image/png",
		FromDrop:    true,
		Audio:       strings.NewReader("png"),
	})
	require.Error(t, err)
	assert.Equal(t, errors.CategoryValidation, errors.CategoryOf(err))
	assert.Contains(t, err.Error(), "Please select an audio file")

	// No request was made and the prior result is still in place.
	assert.Equal(t, int32(1), p.calls.Load())
	assert.Equal(t, StateSuccess, snap.State)
	assert.NotNil(t, snap.Result)
}

func TestPickerUploadAcceptedRegardlessOfType(t *testing.T) {
	t.Parallel()

	p := &fakePredictor{results: map[string]*inference.PredictionResult{"scan.png": healthyResult()}}
	f := New(p)

	snap, err := f.Submit(context.Background(), Upload{
		FileName:    "scan.png",
		ContentType: "image/png",
		FromDrop:    false,
		Audio:       strings.NewReader("png"),
	})
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, snap.State)
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestSubmitResetsPriorOutcome(t *testing.T) {
	t.Parallel()

	p := &fakePredictor{results: map[string]*inference.PredictionResult{"breath.wav": healthyResult()}}
	f := New(p)

	_, err := f.Submit(context.Background(), audioUpload("missing.wav"))
	require.NoError(t, err) // result is nil for unknown names, still success
	snap, err := f.Submit(context.Background(), audioUpload("breath.wav"))
	require.NoError(t, err)
	assert.Equal(t, healthyResult(), snap.Result)
	assert.Nil(t, snap.Err)
}

func TestStaleSubmissionIsDiscarded(t *testing.T) {
	t.Parallel()

	p := &fakePredictor{
		results: map[string]*inference.PredictionResult{
			"first.wav":  {Confidence: 0.5, RawPredictions: make([]float64, 7)},
			"second.wav": healthyResult(),
		},
		release: map[string]chan struct{}{
			"first.wav":  make(chan struct{}),
			"second.wav": make(chan struct{}),
		},
		started: make(chan string, 2),
	}
	f := New(p)

	type outcome struct {
		snap Snapshot
		err  error
	}
	firstDone := make(chan outcome, 1)
	secondDone := make(chan outcome, 1)

	go func() {
		snap, err := f.Submit(context.Background(), audioUpload("first.wav"))
		firstDone <- outcome{snap, err}
	}()
	<-p.started // first request is in flight

	go func() {
		snap, err := f.Submit(context.Background(), audioUpload("second.wav"))
		secondDone <- outcome{snap, err}
	}()
	<-p.started // second request is in flight, generation has moved on

	// Let the second finish first, then release the stale first request.
	close(p.release["second.wav"])
	second := <-secondDone
	require.NoError(t, second.err)
	assert.Equal(t, StateSuccess, second.snap.State)
	assert.Equal(t, healthyResult(), second.snap.Result)

	close(p.release["first.wav"])
	first := <-firstDone
	require.ErrorIs(t, first.err, ErrSuperseded)

	// The newer outcome stays in place.
	final := f.Snapshot()
	assert.Equal(t, healthyResult(), final.Result)
	assert.Equal(t, "second.wav", final.FileName)
}

func TestReset(t *testing.T) {
	t.Parallel()

	p := &fakePredictor{results: map[string]*inference.PredictionResult{"breath.wav": healthyResult()}}
	f := New(p)

	_, err := f.Submit(context.Background(), audioUpload("breath.wav"))
	require.NoError(t, err)

	f.Reset()
	snap := f.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Nil(t, snap.Result)
	assert.Empty(t, snap.FileName)
	assert.True(t, snap.UploadTime.IsZero())
}

func TestFormatFileSize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1.00 MB", formatFileSize(1<<20))
	assert.Equal(t, "0.50 MB", formatFileSize(1<<19))
	assert.Equal(t, "0.00 MB", formatFileSize(0))
}

func TestFormatAnalysisTime(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "2.3s", formatAnalysisTime(2300*time.Millisecond))
	assert.Equal(t, "0.0s", formatAnalysisTime(0))
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	p := &fakePredictor{}
	r := NewRegistry(p)

	a := r.Get("session-a")
	b := r.Get("session-b")
	assert.NotSame(t, a, b)
	assert.Same(t, a, r.Get("session-a"))

	r.Drop("session-a")
	assert.NotSame(t, a, r.Get("session-a"))
}
