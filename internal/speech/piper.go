package speech

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/kevinbot-io/kevinbot/pkg/log"
)

const (
	// piper emits raw 16-bit mono PCM at the voice's native rate.
	piperSampleRate = "22050"
)

// PiperEngine shells out to the piper binary and pipes the raw PCM into
// aplay. One process pair per utterance; piper loads a cached voice in
// tens of milliseconds, which is fine for announcement-rate speech.
type PiperEngine struct {
	executable string
	player     string
	modelPath  string
	logger     log.Logger
}

// NewPiperEngine returns an engine for the voice model at modelPath.
// executable and player default to "piper" and "aplay" on PATH.
func NewPiperEngine(executable, player, modelPath string) *PiperEngine {
	if executable == "" {
		executable = "piper"
	}
	if player == "" {
		player = "aplay"
	}
	return &PiperEngine{
		executable: executable,
		player:     player,
		modelPath:  modelPath,
		logger:     log.WithName("speech.piper"),
	}
}

func (e *PiperEngine) Say(ctx context.Context, text string) error {
	synth := exec.CommandContext(ctx, e.executable, "--model", e.modelPath, "--output-raw")
	synth.Stdin = strings.NewReader(text)

	play := exec.CommandContext(ctx, e.player,
		"-r", piperSampleRate, "-f", "S16_LE", "-t", "raw", "-c", "1", "-q")

	pipe, err := synth.StdoutPipe()
	if err != nil {
		return fmt.Errorf("piper stdout pipe: %w", err)
	}
	play.Stdin = pipe

	if err := play.Start(); err != nil {
		return fmt.Errorf("start %s: %w", e.player, err)
	}
	if err := synth.Start(); err != nil {
		_ = play.Process.Kill()
		_ = play.Wait()
		return fmt.Errorf("start %s: %w", e.executable, err)
	}

	synthErr := synth.Wait()
	playErr := play.Wait()
	if synthErr != nil {
		return fmt.Errorf("piper: %w", synthErr)
	}
	if playErr != nil {
		return fmt.Errorf("playback: %w", playErr)
	}

	e.logger.Debug("Spoke", "text", text)
	return nil
}
