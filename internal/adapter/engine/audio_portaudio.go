//go:build portaudio

package engine

import "github.com/gordonklaus/portaudio"

// PortAudioSupported reports whether this binary can capture audio.
const PortAudioSupported = true

func initPortAudio() error      { return portaudio.Initialize() }
func terminatePortAudio() error { return portaudio.Terminate() }

type portaudioStream struct {
	stream *portaudio.Stream
	buf    []int16
}

func openPortAudio(sampleRate int) (sampleStream, error) {
	buf := make([]int16, audioFramesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), len(buf), buf)
	if err != nil {
		return nil, err
	}
	return &portaudioStream{stream: stream, buf: buf}, nil
}

func (p *portaudioStream) Start() error { return p.stream.Start() }
func (p *portaudioStream) Stop() error  { return p.stream.Stop() }
func (p *portaudioStream) Close() error { return p.stream.Close() }

func (p *portaudioStream) Read() ([]int16, error) {
	if err := p.stream.Read(); err != nil {
		return nil, err
	}
	return p.buf, nil
}
