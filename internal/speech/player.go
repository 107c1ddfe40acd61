package speech

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/hammamikhairi/voicepay/internal/logger"
)

var _ AudioOutput = (*Player)(nil)

// Player plays WAV audio through oto. Calls to Play must not overlap;
// Mouth serializes them.
type Player struct {
	ctx  *oto.Context
	log  *logger.Logger
	poll time.Duration
}

// NewPlayer opens the system audio device at the synthesis format.
func NewPlayer(log *logger.Logger) (*Player, error) {
	op := &oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: ChannelCount,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-readyChan

	log.Debug("audio player initialized (rate=%d, channels=%d)", SampleRate, ChannelCount)
	return &Player{ctx: ctx, log: log, poll: 10 * time.Millisecond}, nil
}

// Play plays one WAV clip at volume and blocks until it finishes or ctx is
// cancelled. A clip whose ctx is already cancelled is never started.
func (p *Player) Play(ctx context.Context, wavData []byte, volume float64) error {
	pcm, err := extractPCM(wavData)
	if err != nil {
		return err
	}

	player := p.ctx.NewPlayer(bytes.NewReader(pcm))
	defer player.Close()
	player.SetVolume(playbackVolume(volume))

	if err := ctx.Err(); err != nil {
		return err
	}
	player.Play()
	p.log.Debug("audio player: playing %d bytes of PCM", len(pcm))

	ticker := time.NewTicker(p.poll)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			p.log.Debug("audio player: interrupted")
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// playbackVolume maps an utterance volume to oto's 0..1 gain. Zero means
// "unset" and plays at full volume.
func playbackVolume(v float64) float64 {
	if v <= 0 || v > 1 {
		return 1
	}
	return v
}

// extractPCM strips the WAV/RIFF header and returns the raw samples of the
// "data" chunk.
func extractPCM(wav []byte) ([]byte, error) {
	if len(wav) < 44 {
		return nil, errors.New("wav data too short")
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, errors.New("not a valid WAV file")
	}

	for pos := 12; pos+8 <= len(wav); {
		id := string(wav[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(wav[pos+4 : pos+8]))
		start := pos + 8
		if id == "data" {
			return wav[start:min(start+size, len(wav))], nil
		}
		// Chunks are word-aligned.
		pos = start + size + size%2
	}
	return nil, errors.New("data chunk not found in WAV")
}
