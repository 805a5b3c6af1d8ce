package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"tvvoice/internal/bootstrap"
	"tvvoice/internal/domain"
	"tvvoice/internal/usecase"
)

const runHelp = `Lines typed on stdin are handled as spoken commands. Lines starting with
"/" control the dialogue directly:

  /toggle      open or close voice control
  /gesture     unlock speech output
  /read        stop speaking, or read the next batch
  /date N      load the listings for date index N
  /key K       press key K (Escape, ctrl+v)
  /quit        exit`

func newRunCmd(opts *globalOptions) *cobra.Command {
	var requireGesture bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the voice dialogue headless",
		Long:  "Run the voice dialogue with the microphone, Deepgram and the system TTS command.\n\n" + runHelp,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			// A terminal has no autoplay policy, so speech is unlocked unless asked otherwise.
			cfg.Speech.RequireGesture = requireGesture

			rt, err := bootstrap.Build(cfg, logger, newConsoleSink(cmd.OutOrStdout()))
			if err != nil {
				return err
			}
			if rt.VoiceErr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "voice input disabled: %v\n", rt.VoiceErr)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			go func() {
				feedInput(cmd.InOrStdin(), rt.Controller, cancel)
			}()
			return rt.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&requireGesture, "require-gesture", false, "reject speech output until /gesture or a key press")
	return cmd
}

// poster is the part of the controller stdin drives.
type poster interface {
	Post(ev usecase.Event) bool
}

// feedInput turns stdin lines into controller events. It returns at EOF
// without stopping the dialogue; /quit calls quit.
func feedInput(in io.Reader, target poster, quit func()) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		ev, done := parseInput(scanner.Text())
		if done {
			quit()
			return
		}
		if ev == nil {
			continue
		}
		if !target.Post(ev) {
			return
		}
	}
}

// parseInput maps one stdin line to an event. done is true for /quit.
func parseInput(line string) (ev usecase.Event, done bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, false
	}
	if !strings.HasPrefix(line, "/") {
		return usecase.TypedCommand{Text: line}, false
	}

	name, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(name) {
	case "quit", "exit":
		return nil, true
	case "toggle":
		return usecase.ToggleRequested{}, false
	case "gesture":
		return usecase.UserGesture{}, false
	case "read":
		return usecase.ReadToggleRequested{}, false
	case "date":
		index, err := strconv.Atoi(arg)
		if err != nil {
			return nil, false
		}
		return usecase.IntentRequested{Intent: domain.Intent{Kind: domain.IntentSelectDate, DateIndex: index}}, false
	case "key":
		return parseKey(arg), false
	default:
		return nil, false
	}
}

func parseKey(spec string) usecase.Event {
	if spec == "" {
		return nil
	}
	ev := usecase.KeyPressed{}
	parts := strings.Split(spec, "+")
	for _, mod := range parts[:len(parts)-1] {
		switch strings.ToLower(mod) {
		case "ctrl":
			ev.Ctrl = true
		case "meta", "cmd":
			ev.Meta = true
		}
	}
	ev.Key = parts[len(parts)-1]
	return ev
}
