package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tvvoice/internal/ports"
)

// ErrNoSynthesizer means no supported TTS command was found on PATH.
var ErrNoSynthesizer = errors.New("no text-to-speech command found (tried say, espeak-ng, espeak, spd-say)")

var candidateCommands = []string{"say", "espeak-ng", "espeak", "spd-say"}

// baseWordsPerMinute is the speaking rate both say and espeak treat as normal.
const baseWordsPerMinute = 175

// stopGrace bounds how long a cancelled command may hold its output pipe.
const stopGrace = 500 * time.Millisecond

// CommandSynthesizer plays speech through the platform TTS command.
type CommandSynthesizer struct {
	command string
	flavor  string
	logger  zerolog.Logger
}

// NewCommandSynthesizer uses command when set, otherwise the first supported
// command found on PATH.
func NewCommandSynthesizer(command string, logger zerolog.Logger) (*CommandSynthesizer, error) {
	if command == "" {
		for _, candidate := range candidateCommands {
			if path, err := exec.LookPath(candidate); err == nil {
				command = path
				break
			}
		}
		if command == "" {
			return nil, ErrNoSynthesizer
		}
	}

	flavor := filepath.Base(command)
	switch flavor {
	case "say", "espeak-ng", "espeak", "spd-say":
	default:
		flavor = "espeak"
	}

	return &CommandSynthesizer{
		command: command,
		flavor:  flavor,
		logger:  logger.With().Str("provider", "command-tts").Str("command", flavor).Logger(),
	}, nil
}

func (s *CommandSynthesizer) Name() string {
	return s.flavor
}

// Synthesize speaks req.Text and blocks until the command exits.
func (s *CommandSynthesizer) Synthesize(ctx context.Context, req ports.SynthesisRequest) error {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil
	}

	args := s.args(req)
	args = append(args, text)

	cmd := exec.CommandContext(ctx, s.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = stopGrace

	s.logger.Debug().Int("textLen", len(text)).Msg("speaking with system TTS")

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			s.stopDaemon()
			return ctxErr
		}
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			err = fmt.Errorf("%w: %s", err, detail)
		}
		return &SynthesisError{Code: CodeSynthesisFailed, Err: err}
	}
	return nil
}

// stopDaemon silences speech-dispatcher, which keeps talking after its
// spd-say client is killed.
func (s *CommandSynthesizer) stopDaemon() {
	if s.flavor != "spd-say" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := exec.CommandContext(ctx, s.command, "-C").Run(); err != nil {
		s.logger.Debug().Err(err).Msg("could not cancel speech-dispatcher output")
	}
}

func (s *CommandSynthesizer) args(req ports.SynthesisRequest) []string {
	wpm := strconv.Itoa(int(float64(baseWordsPerMinute) * req.Rate))

	switch s.flavor {
	case "say":
		args := []string{"-r", wpm}
		if req.Voice != "" {
			args = append(args, "-v", req.Voice)
		}
		return args
	case "spd-say":
		args := []string{
			"-w",
			"-r", strconv.Itoa(relativePercent(req.Rate)),
			"-p", strconv.Itoa(relativePercent(req.Pitch)),
			"-i", strconv.Itoa(relativePercent(req.Volume)),
		}
		if req.Voice != "" {
			args = append(args, "-y", req.Voice)
		}
		return args
	default:
		args := []string{
			"-s", wpm,
			"-p", strconv.Itoa(clamp(int(req.Pitch*50), 0, 99)),
			"-a", strconv.Itoa(clamp(int(req.Volume*100), 0, 200)),
		}
		if req.Voice != "" {
			args = append(args, "-v", req.Voice)
		}
		return args
	}
}

// relativePercent maps a 1.0-centred multiplier to spd-say's -100..100 scale.
func relativePercent(value float64) int {
	return clamp(int(math.Round((value-1)*100)), -100, 100)
}

func clamp(value, low, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
