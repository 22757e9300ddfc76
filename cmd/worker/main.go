package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/urfave/cli/v3"
	"github.com/vexlio/doorkeep/internal/discord"
	"github.com/vexlio/doorkeep/internal/progress"
	"github.com/vexlio/doorkeep/internal/setup"
	"github.com/vexlio/doorkeep/internal/setup/telemetry"
	"github.com/vexlio/doorkeep/internal/worker/validation"
	"github.com/vexlio/doorkeep/pkg/utils"
	"go.uber.org/zap"
)

// WorkerLogDir specifies where worker log files are stored.
const WorkerLogDir = "logs/worker_logs"

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "worker",
		Usage: "Start the doorkeep validation worker",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Value:   1,
				Usage:   "Number of workers to start",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			runWorkers(ctx, c.Int("workers"))
			return nil
		},
	}

	return app.Run(context.Background(), os.Args)
}

// runWorkers starts the requested number of validation workers and blocks
// until they stop.
func runWorkers(ctx context.Context, count int64) {
	app, err := setup.InitializeApp(ctx, telemetry.ServiceWorker, WorkerLogDir)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.Cleanup(ctx)

	// The worker process carries no gateway connection; the client is used
	// for REST membership lookups only.
	client, err := disgo.New(app.Config.Bot.Discord.Token)
	if err != nil {
		log.Fatalf("Failed to create discord client: %v", err)
	}
	defer client.Close(ctx)

	adapter := discord.NewAdapter(client, app.Logger)

	bars := make([]*progress.Bar, count)
	for i := range count {
		bars[i] = progress.NewBar(100, 25, fmt.Sprintf("Worker %d", i))
	}

	renderer := progress.NewRenderer(bars)
	go renderer.Render()

	var wg sync.WaitGroup

	for i := range count {
		wg.Add(1)

		go func(workerID int64) {
			defer wg.Done()

			workerLogger := app.LogManager.GetWorkerLogger(
				fmt.Sprintf("validation_worker_%d", workerID),
			)

			w := validation.New(app, adapter, bars[workerID], workerLogger)
			runWorker(ctx, w, workerLogger)
		}(i)
	}

	log.Printf("Started %d validation workers", count)
	wg.Wait()
	renderer.Stop()
	log.Println("All workers have finished. Exiting.")
}

// runWorker keeps a single worker running, restarting it after a panic.
func runWorker(ctx context.Context, w *validation.Worker, logger *zap.Logger) {
	for {
		if utils.ContextGuard(ctx) {
			logger.Info("Context cancelled, stopping worker")
			return
		}

		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("Worker execution failed",
						zap.Any("panic", r))
					logger.Info("Restarting worker in 5 seconds...")
					utils.ContextSleep(ctx, 5*time.Second)
				}
			}()

			logger.Info("Starting worker")
			w.Start(ctx)
		}()

		if utils.ContextGuard(ctx) {
			return
		}

		logger.Warn("Worker stopped unexpectedly")
		utils.ContextSleep(ctx, 5*time.Second)
	}
}
