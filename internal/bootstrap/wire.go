// Package bootstrap assembles the runtime graph shared by the desktop app and
// the CLI.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"tvvoice/internal/audio"
	"tvvoice/internal/config"
	"tvvoice/internal/interpreter"
	"tvvoice/internal/listings"
	"tvvoice/internal/logging"
	"tvvoice/internal/metrics"
	"tvvoice/internal/ports"
	"tvvoice/internal/providers/deepgram"
	"tvvoice/internal/rules"
	"tvvoice/internal/speech"
	"tvvoice/internal/usecase"
)

// Runtime is the assembled runtime graph.
type Runtime struct {
	Config      config.Config
	Logger      zerolog.Logger
	Controller  *usecase.Controller
	Interpreter *interpreter.Interpreter
	Store       *listings.Store
	Client      *listings.Client
	Rules       *rules.Engine
	Speech      *speech.Engine

	// VoiceErr explains why speech recognition is unavailable, nil when it is.
	VoiceErr error
	// SpeechErr explains why no TTS command was found, nil when one was.
	SpeechErr error

	recognizer *deepgram.Recognizer
	refresher  *listings.Refresher
}

// Load resolves configuration and the logger it describes.
func Load(configPath string) (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	return cfg, logger, nil
}

// NewInterpreter loads the substitution rules and vocabulary the
// interpreter normalizes and matches with.
func NewInterpreter(cfg config.Config) (*interpreter.Interpreter, *rules.Engine, error) {
	rulesEngine, err := rules.NewEngine(cfg.Rules.Path, cfg.Rules.IterationLimit)
	if err != nil {
		return nil, nil, err
	}
	vocab, err := interpreter.LoadVocabulary(cfg.Vocabulary.Path)
	if err != nil {
		return nil, nil, err
	}
	return interpreter.New(vocab, rulesEngine), rulesEngine, nil
}

// Build wires all backend dependencies. sink receives every display update.
func Build(cfg config.Config, logger zerolog.Logger, sink ports.EventSink) (*Runtime, error) {
	interp, rulesEngine, err := NewInterpreter(cfg)
	if err != nil {
		return nil, err
	}

	client, err := listings.NewClient(listings.Config{
		BaseURL: cfg.Listings.BaseURL,
		Timeout: cfg.Listings.Timeout,
	}, logger)
	if err != nil {
		return nil, err
	}
	store := listings.NewStore(sink)

	rt := &Runtime{
		Config:      cfg,
		Logger:      logger,
		Interpreter: interp,
		Store:       store,
		Client:      client,
		Rules:       rulesEngine,
	}

	var synth ports.Synthesizer
	commandSynth, err := speech.NewCommandSynthesizer(cfg.Speech.Command, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("speech output unavailable")
		rt.SpeechErr = err
		synth = missingSynthesizer{err: err}
	} else {
		synth = commandSynth
	}
	rt.Speech = speech.NewEngine(synth, speech.Config{
		Voice: speech.Voice{
			Name:   cfg.Speech.Voice,
			Rate:   cfg.Speech.Rate,
			Pitch:  cfg.Speech.Pitch,
			Volume: cfg.Speech.Volume,
		},
		RequireGesture: cfg.Speech.RequireGesture,
	}, logger)

	audioCfg := ports.AudioConfig{
		SampleRate:  cfg.Audio.SampleRate,
		Channels:    cfg.Audio.Channels,
		InputFormat: cfg.Audio.InputFormat,
		InputDevice: cfg.Audio.InputDevice,
	}
	rt.recognizer = deepgram.NewRecognizer(deepgram.Config{
		APIKey:             cfg.Deepgram.APIKey,
		APIBaseURL:         cfg.Deepgram.APIBaseURL,
		Model:              cfg.Deepgram.Model,
		Language:           cfg.Deepgram.Language,
		SmartFormat:        cfg.Deepgram.SmartFormat,
		Endpointing:        cfg.Deepgram.Endpointing,
		UtteranceEnd:       cfg.Deepgram.UtteranceEnd,
		Keywords:           cfg.Deepgram.Keywords,
		ChunkSize:          cfg.Audio.ChunkSize,
		MaxSessionDuration: cfg.Deepgram.MaxSession,
		FinalizeTimeout:    cfg.Deepgram.FinalizeTimeout,
	}, audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand, logger), audioCfg, logger)

	var recognizer ports.Recognizer
	if err := rt.recognizer.Available(); err != nil {
		logger.Warn().Err(err).Msg("speech recognition unavailable")
		rt.VoiceErr = err
	} else {
		recognizer = rt.recognizer
	}

	rt.Controller = usecase.NewController(usecase.Deps{
		Recognizer:  recognizer,
		Speaker:     rt.Speech,
		Interpreter: interp,
		Source:      client,
		Store:       store,
		Sink:        sink,
		Logger:      logger,
	}, usecase.Config{
		Language:            cfg.Dialogue.Language,
		WakeRestartDelay:    cfg.Dialogue.WakeRestartDelay,
		WakeErrorDelay:      cfg.Dialogue.WakeErrorDelay,
		CommandStartDelay:   cfg.Dialogue.CommandStartDelay,
		CommandRestartDelay: cfg.Dialogue.CommandRestartDelay,
		CommandErrorDelay:   cfg.Dialogue.CommandErrorDelay,
		ResumeDelay:         cfg.Dialogue.ResumeDelay,
		SettleDelay:         cfg.Dialogue.SettleDelay,
		ReadBatch:           cfg.Dialogue.ReadBatch,
		AutoReadBatch:       cfg.Dialogue.AutoReadBatch,
		FeedbackDuration:    cfg.Dialogue.FeedbackDuration,
		AlertDuration:       cfg.Dialogue.AlertDuration,
	})

	rt.refresher, err = listings.NewRefresher(client, cfg.Listings.RefreshSchedule, rt.postDates, logger)
	if err != nil {
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) postDates(result listings.DatesResult) {
	rt.Controller.Post(usecase.DatesLoaded{
		Dates:       result.Dates,
		CurrentDate: result.CurrentDate,
		Err:         result.Err,
	})
}

// Run supervises the dialogue loop, the date refresher, the rules watcher
// and the metrics endpoint until ctx is done or one of them fails.
func (rt *Runtime) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return rt.Controller.Run(ctx)
	})
	g.Go(func() error {
		return rt.refresher.Run(ctx)
	})
	g.Go(func() error {
		rt.refresher.RefreshNow(ctx)
		return nil
	})
	if rt.Config.Rules.Watch {
		g.Go(func() error {
			logger := rt.Logger.With().Str("component", "rules").Logger()
			// Without a watcher the rules loaded at startup stay in effect.
			if err := rt.Rules.Watch(ctx, logger); err != nil {
				logger.Warn().Err(err).Msg("rules hot reload disabled")
			}
			return nil
		})
	}
	if addr := rt.Config.Metrics.Addr; addr != "" {
		g.Go(func() error {
			return metrics.Serve(ctx, addr, rt.Logger)
		})
	}

	err := g.Wait()
	rt.Speech.Close()
	rt.recognizer.Wait()
	if err != nil {
		return fmt.Errorf("runtime stopped: %w", err)
	}
	return nil
}

// missingSynthesizer fails every request so the dialogue reports the
// failure and unwinds like any other synthesis error.
type missingSynthesizer struct {
	err error
}

func (m missingSynthesizer) Synthesize(context.Context, ports.SynthesisRequest) error {
	return m.err
}
