package audio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	opus "github.com/pekim/opus"

	"marco/pkg/pcm"
)

var ErrUnsupportedFormat = errors.New("audio: unsupported format")

// DecodeFile reads a wav, mp3 or ogg (vorbis or opus) file as mono 16kHz
// samples, truncated to limit samples when limit > 0.
func DecodeFile(path string, limit int) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return decodeWAV(f, limit)
	case ".mp3":
		return decodeMP3(f, limit)
	case ".ogg", ".oga", ".opus":
		return decodeOgg(f, limit)
	}

	magic, _ := bufio.NewReader(f).Peek(4)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	switch string(magic) {
	case "RIFF":
		return decodeWAV(f, limit)
	case "OggS":
		return decodeOgg(f, limit)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

func decodeWAV(r io.ReadSeeker, limit int) ([]float32, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid wav")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read wav: %w", err)
	}
	if buf == nil || len(buf.Data) == 0 {
		return nil, errors.New("empty wav")
	}

	channels, rate := 1, 44100
	if buf.Format != nil {
		channels = max(buf.Format.NumChannels, 1)
		if buf.Format.SampleRate > 0 {
			rate = buf.Format.SampleRate
		}
	}
	return pcm.Normalize(pcm.Ints(buf.Data, int(dec.BitDepth)), channels, rate, limit), nil
}

func decodeMP3(r io.Reader, limit int) ([]float32, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("read mp3: %w", err)
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("read mp3: %w", err)
	}

	ints := make([]int16, len(raw)/2)
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, ints); err != nil {
		return nil, err
	}

	// go-mp3 always emits interleaved stereo
	return pcm.Normalize(pcm.Int16s(ints), 2, dec.SampleRate(), limit), nil
}

func decodeOgg(r io.ReadSeeker, limit int) ([]float32, error) {
	x, err := decodeVorbis(r, limit)
	if err == nil {
		return x, nil
	}

	if _, serr := r.Seek(0, io.SeekStart); serr != nil {
		return nil, serr
	}
	x, oerr := decodeOpus(r, limit)
	if oerr != nil {
		return nil, fmt.Errorf("ogg is neither vorbis (%v) nor opus: %w", err, oerr)
	}
	return x, nil
}

func decodeVorbis(r io.Reader, limit int) ([]float32, error) {
	samples, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if format == nil || format.Channels <= 0 || format.SampleRate <= 0 {
		return nil, errors.New("invalid vorbis stream")
	}
	return pcm.Normalize(samples, format.Channels, format.SampleRate, limit), nil
}

// opus always decodes at 48kHz
const opusRate = 48000

func decodeOpus(r io.ReadSeeker, limit int) ([]float32, error) {
	dec, err := opus.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	defer dec.Destroy()

	channels := max(dec.ChannelCount(), 1)
	buf := make([]int16, opusRate/2*channels)

	var x []float32
	for {
		n, err := dec.Read(buf)
		if n > 0 {
			x = append(x, pcm.Int16s(buf[:n*channels])...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return pcm.Normalize(x, channels, opusRate, limit), nil
}
