package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/spf13/viper"

	"github.com/ailearninghub/hub/internal/chat"
	"github.com/ailearninghub/hub/internal/config"
	"github.com/ailearninghub/hub/internal/kv"
	"github.com/ailearninghub/hub/internal/lecture"
	"github.com/ailearninghub/hub/internal/pages"
	"github.com/ailearninghub/hub/internal/progress"
	"github.com/ailearninghub/hub/internal/remote"
	"github.com/ailearninghub/hub/internal/speech"
	"github.com/ailearninghub/hub/internal/speech/audio"
	"github.com/ailearninghub/hub/internal/speech/cartesia"
	"github.com/ailearninghub/hub/internal/voice"
	"github.com/ailearninghub/hub/ui"
)

// app holds the long-lived pieces shared by the commands.
type app struct {
	cfg     config.Config
	store   kv.Store
	docs    *pages.DocumentStore
	client  *remote.Client
	closers []io.Closer
}

func newApp(cfg config.Config) (*app, error) {
	store, closer, err := kv.Open(cfg.Storage.Backend, cfg.Storage.Dir, cfg.Storage.Quota())
	if err != nil {
		return nil, fmt.Errorf("unable to open storage: %w", err)
	}
	log.Debug("storage ready", "backend", cfg.Storage.Backend, "dir", cfg.Storage.Dir)
	return &app{
		cfg:     cfg,
		store:   store,
		docs:    pages.NewDocumentStore(store),
		client:  remote.New(cfg.Services),
		closers: []io.Closer{closer},
	}, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			log.Warn("close failed", "error", err)
		}
	}
}

// ingest extracts path and makes it the current document.
func (a *app) ingest(path string) (pages.Document, error) {
	doc, err := pages.Extract(path)
	if err != nil {
		return pages.Document{}, fmt.Errorf("unable to read %s: %w", path, err)
	}
	if err := a.docs.Save(doc); err != nil {
		return pages.Document{}, err
	}
	log.Info("ingested document", "file", doc.FileName, "pages", len(doc.Pages))
	return doc, nil
}

// document returns the document to lecture on: path when given, the last
// ingested one otherwise. Having none is not an error.
func (a *app) document(path string) (pages.Document, error) {
	if path != "" {
		return a.ingest(path)
	}
	doc, err := a.docs.Load()
	if errors.Is(err, pages.ErrNoDocument) {
		return pages.Document{}, nil
	}
	return doc, err
}

// outputPort builds the speech output for the configured engine. Without
// an audio device speech runs muted so highlighting still follows along.
func (a *app) outputPort() (speech.OutputPort, error) {
	var synth audio.Synthesizer
	switch a.cfg.Speech.Engine {
	case config.EngineNone:
		return audio.NewOutput(audio.Silence{}, audio.Mute{}), nil
	case config.EnginePiper:
		p, err := audio.NewPiper(a.cfg.Speech.PiperBin, a.cfg.Speech.PiperModel)
		if err != nil {
			return nil, err
		}
		synth = p
	default:
		synth = audio.NewGTTS(a.cfg.Speech.Language, a.cfg.Services.RequestsPerMinute)
	}

	var sink audio.Sink
	player, err := audio.NewPlayer()
	if err != nil {
		log.Warn("no audio device, speech is muted", "error", err)
		sink = audio.Mute{}
	} else {
		sink = player
	}
	return audio.NewOutput(audio.NewCached(synth, a.store), sink), nil
}

// tracker connects to the progress database when tracking is enabled.
func (a *app) tracker(ctx context.Context) (*progress.Tracker, error) {
	if !a.cfg.Progress.Enabled {
		return nil, nil
	}
	db, err := progress.Open(ctx, a.cfg.Env.DatabaseURL, a.cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("unable to open progress database: %w", err)
	}
	a.closers = append(a.closers, db)
	return progress.NewTracker(db, a.cfg.Env.UserID, progress.DefaultDebounce), nil
}

func runTUI(path string) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	doc, err := a.document(path)
	if err != nil {
		return err
	}

	port, err := a.outputPort()
	if err != nil {
		return fmt.Errorf("unable to set up speech: %w", err)
	}

	events := ui.NewEvents()
	channel := speech.NewChannel(port)
	lectureSpeaker := speech.NewSpeaker(channel,
		speech.WithVoice(cfg.Speech.Rate, speech.DefaultPitch),
		speech.WithMarkdown(),
		speech.WithPlayback(events),
		speech.WithWordListener(events.Word),
	)

	var opts []lecture.SessionOption
	tracker, err := a.tracker(ctx)
	if err != nil {
		return err
	}
	if tracker != nil {
		opts = append(opts, lecture.WithProgress(tracker))
		defer tracker.Flush()
	}

	session := lecture.NewSession(lecture.NewChunkStore(doc, a.client, a.store), lectureSpeaker, opts...)
	engine := chat.NewEngine(a.client, a.client, a.store)
	engine.SetDocument(doc.Fingerprint())

	var commander *voice.Commander
	if cfg.Voice.Enabled {
		vcfg := voice.DefaultConfig()
		vcfg.Triggers = cfg.Voice.Triggers
		vcfg.RestartDelay = cfg.Voice.RestartDelay
		rec := cartesia.New(cfg.Env.CartesiaAPIKey, cfg.Voice.Language, cfg.Voice.MicCommand)
		assistant := speech.NewSpeaker(channel,
			speech.WithVoice(cfg.Speech.Rate, speech.DefaultPitch),
			speech.WithMarkdown(),
		)
		commander = voice.NewCommander(vcfg, rec, assistant, engine)
	}

	deps := ui.Deps{
		Session: session,
		Chat:    engine,
		Lecture: lectureSpeaker,
		Voice:   commander,
	}
	if path != "" {
		deps.Reload = func(context.Context) (*lecture.ChunkStore, error) {
			doc, err := a.ingest(path)
			if err != nil {
				return nil, err
			}
			return lecture.NewChunkStore(doc, a.client, a.store), nil
		}
	}

	// Read environment to get debugging stuff
	uiCfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}
	// use style set in env, or the configured one if unset
	if uiCfg.GlamourStyle == "" || validateStyle(uiCfg.GlamourStyle) != nil {
		uiCfg.GlamourStyle = cfg.Style
	}
	uiCfg.GlamourMaxWidth = cfg.Width
	uiCfg.EnableMouse = viper.GetBool("mouse")
	uiCfg.Path = path
	uiCfg.Triggers = cfg.Voice.Triggers

	if _, err := ui.NewProgram(uiCfg, deps, events).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}
