//go:build !portaudio

package engine

import "errors"

// PortAudioSupported reports whether this binary can capture audio.
const PortAudioSupported = false

var errNoPortAudio = errors.New("built without portaudio support (rebuild with -tags portaudio)")

func initPortAudio() error      { return errNoPortAudio }
func terminatePortAudio() error { return nil }

func openPortAudio(int) (sampleStream, error) { return nil, errNoPortAudio }
