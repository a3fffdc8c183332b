package capture

import "camsession/internal/domain"

// PreviewState tracks the preview sub-session.
type PreviewState int

const (
	PreviewNotStarted PreviewState = iota
	PreviewStarting
	PreviewRunning
	PreviewPaused
	PreviewStopping
)

func (s PreviewState) String() string {
	switch s {
	case PreviewNotStarted:
		return "not_started"
	case PreviewStarting:
		return "starting"
	case PreviewRunning:
		return "running"
	case PreviewPaused:
		return "paused"
	case PreviewStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// previewHandler exists from the preview start request until the engine
// reports the preview stopped. Pausing does not stop frame delivery; it only
// stops the controller from forwarding frames to the renderer.
type previewHandler struct {
	state PreviewState
}

func newPreviewHandler() *previewHandler {
	return &previewHandler{state: PreviewNotStarted}
}

func (p *previewHandler) start(engine domain.CaptureEngine, mt domain.MediaType) error {
	if p.state != PreviewNotStarted {
		return domain.ErrPreviewExists
	}
	p.state = PreviewStarting
	if err := engine.StartPreview(mt); err != nil {
		p.state = PreviewNotStarted
		return err
	}
	return nil
}

func (p *previewHandler) stop(engine domain.CaptureEngine) error {
	if p.state == PreviewNotStarted || p.state == PreviewStopping {
		return domain.ErrPreviewNotStarted
	}
	p.state = PreviewStopping
	return engine.StopPreview()
}

func (p *previewHandler) pause() bool {
	if p.state != PreviewRunning {
		return false
	}
	p.state = PreviewPaused
	return true
}

func (p *previewHandler) resume() bool {
	if p.state != PreviewPaused {
		return false
	}
	p.state = PreviewRunning
	return true
}

func (p *previewHandler) onStarted() {
	if p.state == PreviewStarting {
		p.state = PreviewRunning
	}
}

// initialized reports whether the first frame has arrived.
func (p *previewHandler) initialized() bool {
	return p.state == PreviewRunning || p.state == PreviewPaused
}

func (p *previewHandler) starting() bool { return p.state == PreviewStarting }
