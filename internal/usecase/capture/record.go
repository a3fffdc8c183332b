package capture

import "camsession/internal/domain"

// RecordingMode distinguishes recordings stopped by the caller from
// recordings stopped automatically after a maximum duration.
type RecordingMode int

const (
	RecordingNone RecordingMode = iota
	RecordingContinuous
	RecordingTimed
)

func (m RecordingMode) String() string {
	switch m {
	case RecordingContinuous:
		return "continuous"
	case RecordingTimed:
		return "timed"
	default:
		return "none"
	}
}

type recordState int

const (
	recordNotStarted recordState = iota
	recordStarting
	recordRunning
	recordStopping
)

// recordHandler exists from the record start request until the engine
// reports the recording stopped.
type recordHandler struct {
	path          string
	maxDurationMs int64
	mode          RecordingMode
	state         recordState

	startUs    int64
	durationUs uint64
	autoStop   bool
}

func newRecordHandler(path string, maxDurationMs int64) *recordHandler {
	return &recordHandler{path: path, maxDurationMs: maxDurationMs, startUs: -1}
}

func (r *recordHandler) canStart() bool { return r.state == recordNotStarted }

// canStop is false once a stop was requested, which also keeps a timed
// auto-stop and an explicit stop from both reaching the engine.
func (r *recordHandler) canStop() bool { return r.state == recordRunning }

func (r *recordHandler) start(engine domain.CaptureEngine, mt domain.MediaType) error {
	if !r.canStart() {
		return domain.ErrRecordingActive
	}
	r.mode = RecordingContinuous
	if r.maxDurationMs > 0 {
		r.mode = RecordingTimed
	}
	r.state = recordStarting
	if err := engine.StartRecord(r.path, mt); err != nil {
		r.state = recordNotStarted
		r.mode = RecordingNone
		return err
	}
	return nil
}

func (r *recordHandler) stop(engine domain.CaptureEngine) error {
	if !r.canStop() {
		return domain.ErrNotRecording
	}
	r.state = recordStopping
	return engine.StopRecord()
}

func (r *recordHandler) onStarted() {
	if r.state == recordStarting {
		r.state = recordRunning
	}
}

// updateRecordingTime measures elapsed time from the first sample seen while
// the recording is running.
func (r *recordHandler) updateRecordingTime(timestampUs uint64) {
	if r.state != recordRunning {
		return
	}
	if r.startUs < 0 {
		r.startUs = int64(timestampUs)
	}
	if ts := int64(timestampUs); ts > r.startUs {
		r.durationUs = uint64(ts - r.startUs)
	}
}

func (r *recordHandler) shouldStopTimedRecording() bool {
	return r.mode == RecordingTimed &&
		r.state == recordRunning &&
		r.durationUs >= uint64(r.maxDurationMs)*1000
}

func (r *recordHandler) recordedDurationMs() int64 {
	return int64(r.durationUs / 1000)
}
