package audio

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

// Clip is one decoded audio asset, PCM 16 bit little endian.
type Clip struct {
	Name       string
	SampleRate int
	Channels   int
	Samples    []int16
}

// frames returns the number of sample frames in the clip.
func (c *Clip) frames() int {
	if c.Channels == 0 {
		return 0
	}
	return len(c.Samples) / c.Channels
}

// LoadWav reads and decodes a WAV file from disk.
func LoadWav(path string) (*Clip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("can't read audio file %s: %w", path, err)
	}
	return ParseWav(filepath.Base(path), data)
}

// ParseWav decodes a RIFF/WAVE byte stream. Only uncompressed 16 bit
// PCM is supported - that is what all the bird clips are stored as.
func ParseWav(name string, data []byte) (*Clip, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%s is not a RIFF/WAVE file", name)
	}

	clip := &Clip{Name: name}
	sawFmt := false

	// Walk the chunk list. Chunks are word aligned, so odd sizes carry
	// one padding byte.
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if body+size > len(data) {
			return nil, fmt.Errorf("%s: truncated %q chunk", name, id)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("%s: fmt chunk too short", name)
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			if format != 1 {
				return nil, fmt.Errorf("%s: unsupported audio format %d, need PCM", name, format)
			}
			clip.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			clip.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits := binary.LittleEndian.Uint16(data[body+14 : body+16])
			if bits != 16 {
				return nil, fmt.Errorf("%s: unsupported sample size %d bit, need 16", name, bits)
			}
			if clip.Channels < 1 || clip.SampleRate < 1 {
				return nil, fmt.Errorf("%s: invalid fmt chunk", name)
			}
			sawFmt = true

		case "data":
			if !sawFmt {
				return nil, fmt.Errorf("%s: data chunk before fmt chunk", name)
			}
			clip.Samples = make([]int16, size/2)
			for i := range clip.Samples {
				clip.Samples[i] = int16(binary.LittleEndian.Uint16(data[body+2*i : body+2*i+2]))
			}
		}

		offset = body + size
		if size%2 == 1 {
			offset++
		}
	}

	if !sawFmt {
		return nil, fmt.Errorf("%s: no fmt chunk", name)
	}
	if clip.Samples == nil {
		return nil, fmt.Errorf("%s: no data chunk", name)
	}
	return clip, nil
}

// loadClipDir decodes every .wav file in dir. Undecodable files are
// skipped so one broken asset doesn't silence the whole bird.
func loadClipDir(dir string) (map[string]*Clip, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("can't read audio directory %s: %w", dir, err)
	}

	clips := make(map[string]*Clip)
	var names []string
	var loadErrs []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".wav" {
			continue
		}
		clip, err := LoadWav(filepath.Join(dir, entry.Name()))
		if err != nil {
			loadErrs = append(loadErrs, err.Error())
			continue
		}
		clips[clip.Name] = clip
		names = append(names, clip.Name)
	}
	return clips, loadErrs, nil
}
