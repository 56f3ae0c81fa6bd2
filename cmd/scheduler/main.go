// Command scheduler runs the daily auto-posting schedule without the HTTP
// server. Pass -once to run the pipeline a single time and exit.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/bilgisen/newsroom/internal/app"
	"github.com/bilgisen/newsroom/internal/config"
	"github.com/bilgisen/newsroom/internal/logger"
	"github.com/bilgisen/newsroom/internal/pipeline"
)

func main() {
	once := flag.Bool("once", false, "run the pipeline once and exit")
	autoPost := flag.Bool("auto-post", true, "publish created items immediately (with -once)")
	resetProcessed := flag.Bool("reset-processed", false, "forget processed feed URLs before running")
	flag.Parse()

	cfg := config.Load()
	if err := logger.Init(logger.Config{
		Level:  cfg.LogLevel,
		Output: cfg.LogFile,
		Pretty: cfg.Env == "development",
	}); err != nil {
		logger.Get().Warn().Err(err).Msg("Log file unavailable, logging to stdout")
	}
	log := logger.Get()

	a, err := app.Build(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer a.Close()

	if *resetProcessed {
		if err := a.Cache.ClearProcessed(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("Failed to clear processed cache")
		}
		log.Info().Msg("Processed cache cleared")
	}

	if *once {
		res, err := a.Pipeline.Run(context.Background(), pipeline.RunOptions{AutoPost: *autoPost})
		if err != nil {
			log.Error().Err(err).Msg("Pipeline run failed")
			a.Close()
			os.Exit(1)
		}
		log.Info().Interface("result", res).Msg("Pipeline run done")
		return
	}

	sched, err := a.NewScheduler()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure scheduler")
	}
	sched.Start()
	log.Info().Strs("times", cfg.ScheduleTimes).Msg("Scheduler running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := sched.Stop(ctx); err != nil {
		log.Error().Err(err).Msg("Scheduled run still in progress at shutdown")
	}
}
