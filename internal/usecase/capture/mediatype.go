package capture

import "camsession/internal/domain"

// FindBestMediaType walks types in order and keeps the first format whose
// height fits maxHeight and that is strictly wider or strictly taller than
// the current best. It reports false when nothing fits.
func FindBestMediaType(types []domain.MediaType, maxHeight uint32) (domain.MediaType, bool) {
	var best domain.MediaType
	found := false
	for _, mt := range types {
		if mt.IsZero() || mt.Height > maxHeight {
			continue
		}
		if !found || best.Width < mt.Width || best.Height < mt.Height {
			best = mt
			found = true
		}
	}
	return best, found
}
