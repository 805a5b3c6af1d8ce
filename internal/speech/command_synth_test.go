package speech

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"tvvoice/internal/ports"
)

func TestCommandSynthesizerEspeakFlags(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args.txt")
	script := writeTool(t, dir, "espeak-ng", "#!/usr/bin/env bash\nprintf '%s\\n' \"$@\" > "+argsFile+"\n")

	synth, err := NewCommandSynthesizer(script, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, "espeak-ng", synth.Name())

	err = synth.Synthesize(context.Background(), ports.SynthesisRequest{Text: "At 8:00 PM, on NBC", Rate: 0.9, Pitch: 1, Volume: 1})
	require.NoError(t, err)

	got := readLines(t, argsFile)
	require.Equal(t, []string{"-s", "157", "-p", "50", "-a", "100", "At 8:00 PM, on NBC"}, got)
}

func TestCommandSynthesizerSpdSayFlags(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args.txt")
	script := writeTool(t, dir, "spd-say", "#!/usr/bin/env bash\nprintf '%s\\n' \"$@\" > "+argsFile+"\n")

	synth, err := NewCommandSynthesizer(script, zerolog.Nop())
	require.NoError(t, err)

	err = synth.Synthesize(context.Background(), ports.SynthesisRequest{Text: "hello", Rate: 0.9, Pitch: 1, Volume: 1})
	require.NoError(t, err)
	require.Equal(t, []string{"-w", "-r", "-10", "-p", "0", "-i", "0", "hello"}, readLines(t, argsFile))
}

func TestCommandSynthesizerFailureIsSynthesisError(t *testing.T) {
	t.Parallel()

	script := writeTool(t, t.TempDir(), "espeak", "#!/usr/bin/env bash\necho 'no audio device' 1>&2\nexit 3\n")
	synth, err := NewCommandSynthesizer(script, zerolog.Nop())
	require.NoError(t, err)

	err = synth.Synthesize(context.Background(), ports.SynthesisRequest{Text: "hello", Rate: 1, Pitch: 1, Volume: 1})
	var synthErr *SynthesisError
	require.ErrorAs(t, err, &synthErr)
	require.Equal(t, CodeSynthesisFailed, synthErr.Code)
	require.Contains(t, err.Error(), "no audio device")
}

func TestCommandSynthesizerCancelStopsPlayback(t *testing.T) {
	t.Parallel()

	script := writeTool(t, t.TempDir(), "say", "#!/usr/bin/env bash\nsleep 5\n")
	synth, err := NewCommandSynthesizer(script, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = synth.Synthesize(ctx, ports.SynthesisRequest{Text: "long text", Rate: 1, Pitch: 1, Volume: 1})
	require.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	require.Less(t, time.Since(start), 4*time.Second)
}

func TestCommandSynthesizerCancelStopsForkedPlayback(t *testing.T) {
	t.Parallel()

	// The player forks a child that inherits stderr, like a TTS wrapper script.
	script := writeTool(t, t.TempDir(), "espeak", "#!/usr/bin/env bash\nsleep 5 &\nwait\n")
	synth, err := NewCommandSynthesizer(script, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = synth.Synthesize(ctx, ports.SynthesisRequest{Text: "long text", Rate: 1, Pitch: 1, Volume: 1})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestCommandSynthesizerCancelSilencesSpeechDispatcher(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	marker := filepath.Join(dir, "cancelled.txt")
	script := writeTool(t, dir, "spd-say", "#!/usr/bin/env bash\nif [ \"$1\" = \"-C\" ]; then echo cancelled > "+marker+"; exit 0; fi\nsleep 5\n")
	synth, err := NewCommandSynthesizer(script, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err = synth.Synthesize(ctx, ports.SynthesisRequest{Text: "long text", Rate: 0.9, Pitch: 1, Volume: 1})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, []string{"cancelled"}, readLines(t, marker))
}

func TestRelativePercentRounds(t *testing.T) {
	t.Parallel()

	require.Equal(t, -10, relativePercent(0.9))
	require.Equal(t, 10, relativePercent(1.1))
	require.Equal(t, 0, relativePercent(1))
	require.Equal(t, -100, relativePercent(-3))
	require.Equal(t, 100, relativePercent(4))
}

func TestCommandSynthesizerSkipsBlankText(t *testing.T) {
	t.Parallel()

	synth, err := NewCommandSynthesizer("/nonexistent/say", zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, synth.Synthesize(context.Background(), ports.SynthesisRequest{Text: "   "}))
}

func writeTool(t *testing.T, dir string, name string, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}
