package main

import (
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/labstack/gommon/color"
	"github.com/spf13/viper"

	"github.com/aplay/mscribe/internal/pkg/analysis"
	"github.com/aplay/mscribe/internal/pkg/diarization"
	"github.com/aplay/mscribe/internal/pkg/filestore"
	"github.com/aplay/mscribe/internal/pkg/orchestrator"
	"github.com/aplay/mscribe/internal/pkg/registry"
	"github.com/aplay/mscribe/internal/pkg/transcription"
	"github.com/aplay/mscribe/internal/pkg/webservice"
)

func main() {
	goapp.StartWithDefault()

	printBanner()

	cfg := goapp.Config
	setDefaults(cfg)
	data := &webservice.Data{}
	data.Port = cfg.GetInt("port")

	store, err := filestore.NewStore(cfg.GetString("filestore.dir"),
		cfg.GetInt("filestore.maxSizeMB"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init file store")
	}
	data.Saver = store

	transcriber, err := transcription.NewClient(cfg.GetString("transcriber.url"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init transcriber")
	}

	diarizer := diarization.NewClient(cfg.GetString("diarizer.url"),
		cfg.GetString("diarizer.authToken"))

	analyzer, err := analysis.NewClient(cfg.GetString("analyzer.url"),
		cfg.GetString("analyzer.apiKey"), cfg.GetString("analyzer.model"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init analyzer")
	}

	jobs := registry.NewRegistry()
	wsKeeper := webservice.NewWSConnKeeper()
	data.WSHandler = wsKeeper

	data.Orchestrator, err = orchestrator.NewService(&orchestrator.ServiceData{
		Registry:    jobs,
		Transcriber: transcriber,
		Diarizer:    diarizer,
		Analyzer:    analyzer,
		Files:       store,
		Notifier:    webservice.NewStatusPusher(jobs, wsKeeper),
	})
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init orchestrator")
	}

	err = webservice.StartWebServer(data)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start web server")
	}
}

func setDefaults(cfg *viper.Viper) {
	cfg.SetDefault("port", 8000)
	cfg.SetDefault("filestore.dir", "/tmp/mscribe")
	cfg.SetDefault("filestore.maxSizeMB", 100)
	cfg.SetDefault("analyzer.model", "openai/gpt-4o-mini")
}

var (
	version = "DEV"
)

func printBanner() {
	banner := `
                             _ __
   ____ ___  _____crib___   (_) /_  ___
  / __ ` + "`" + `__ \/ ___/ ___/ __\/ / __ \/ _ \
 / / / / / (__  ) /__/ /  / / /_/ /  __/
/_/ /_/ /_/____/\___/_/  /_/_.___/\___/   v: %s

%s
________________________________________________________

`
	cl := color.New()
	cl.Printf(banner, cl.Red(version), cl.Green("https://github.com/aplay/mscribe"))
}
