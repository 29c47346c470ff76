package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"homechat/config"
	"homechat/internal/app"
	"homechat/internal/application"
	"homechat/internal/infra/audio"
	"homechat/internal/tui"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	logPath := flag.String("log", "", "write logs to this file (default: discard)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	var logOut io.Writer = io.Discard
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "opening log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	logger := app.NewLogger(cfg.Log, logOut)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The single terminal session must not expire while the program runs.
	cfg.Server.SessionTTL = 0

	assistant, err := app.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "building assistant: %v\n", err)
		os.Exit(1)
	}

	// The terminal has one user, so one session serves the whole run.
	sess := assistant.Sessions.Create()
	notes := tui.NewNotifications(sess.ID, 16)
	assistant.Scheduler.AddObserver(notes)

	if err := assistant.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "starting assistant: %v\n", err)
		assistant.Close(context.Background())
		os.Exit(1)
	}

	var recorder application.VoiceRecorder
	mic := audio.NewMicrophone(application.DefaultAudioFormat(), logger)
	if err := mic.Start(ctx); err != nil {
		logger.Warn("microphone unavailable", "error", err)
	} else {
		defer mic.Stop()
		recorder = mic
	}

	model := tui.New(ctx, tui.Deps{
		Session:  sess,
		Router:   assistant.Router,
		Recorder: recorder,
		STT:      assistant.STT,
		Weather:  assistant.Weather,
		Firings:  notes.C(),
	})

	_, runErr := tea.NewProgram(model, tea.WithAltScreen()).Run()

	cancel()
	closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCancel()
	assistant.Close(closeCtx)

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "tui: %v\n", runErr)
		os.Exit(1)
	}
}
