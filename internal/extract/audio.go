package extract

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"docintel/internal/chunker"
)

// AudioExtractor transcribes 16-bit or 32-bit PCM WAV audio with a local
// whisper.cpp model, emitting one unpaged segment per transcribed utterance.
type AudioExtractor struct {
	ModelPath string
}

func (e AudioExtractor) Extract(_ context.Context, r io.Reader) ([]chunker.Segment, error) {
	samples, err := decodeWAV(r)
	if err != nil {
		return nil, err
	}

	model, err := whisper.New(e.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("extract: load whisper model: %w", err)
	}
	defer model.Close()

	wctx, err := model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("extract: create whisper context: %w", err)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("extract: process audio: %w", err)
	}

	var segments []chunker.Segment
	for {
		segment, err := wctx.NextSegment()
		if err != nil {
			break
		}
		segments = append(segments, chunker.Segment{Text: segment.Text, Page: 0})
	}
	return segments, nil
}

type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// decodeWAV reads a PCM WAV stream into mono float32 samples in [-1, 1].
func decodeWAV(r io.Reader) ([]float32, error) {
	var header wavHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("extract: read wav header: %w", err)
	}
	if string(header.ChunkID[:]) != "RIFF" || string(header.Format[:]) != "WAVE" {
		return nil, fmt.Errorf("extract: not a wav stream")
	}

	data := make([]byte, header.Subchunk2Size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("extract: read wav data: %w", err)
	}

	var samples []float32
	switch header.BitsPerSample {
	case 16:
		for i := 0; i+1 < len(data); i += 2 {
			s := int16(binary.LittleEndian.Uint16(data[i : i+2]))
			samples = append(samples, float32(s)/32768.0)
		}
	case 32:
		for i := 0; i+3 < len(data); i += 4 {
			bits := binary.LittleEndian.Uint32(data[i : i+4])
			samples = append(samples, math.Float32frombits(bits))
		}
	default:
		return nil, fmt.Errorf("extract: unsupported bits per sample: %d", header.BitsPerSample)
	}

	if header.NumChannels == 2 {
		mono := make([]float32, len(samples)/2)
		for i := range mono {
			mono[i] = (samples[i*2] + samples[i*2+1]) / 2.0
		}
		samples = mono
	}
	return samples, nil
}
