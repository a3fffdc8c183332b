package capture

import "camsession/internal/domain"

// photoHandler is single-flight: it exists while one photo is being taken.
type photoHandler struct {
	path   string
	taking bool
}

func (p *photoHandler) takePhoto(path string, engine domain.CaptureEngine, mt domain.MediaType) error {
	if p.taking {
		return domain.ErrPhotoInFlight
	}
	p.path = path
	p.taking = true
	if err := engine.TakePhoto(path, mt); err != nil {
		p.taking = false
		return err
	}
	return nil
}

func (p *photoHandler) onPhotoTaken() { p.taking = false }
