// @title           University Assistant API
// @version         1.0
// @description     Asynchronous question answering over university regulations
// @termsOfService  http://swagger.io/terms/

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:3000
// @BasePath  /
// @schemes   http https
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/akolanti/uniassist/internal/bootstrap"
	"github.com/akolanti/uniassist/internal/config"
	jobmodel "github.com/akolanti/uniassist/internal/domain/jobModel"
	"github.com/akolanti/uniassist/internal/handlers"
	"github.com/akolanti/uniassist/internal/job"
	"github.com/akolanti/uniassist/internal/middleware"
	"github.com/akolanti/uniassist/internal/rag"
	"github.com/akolanti/uniassist/internal/server"
	"github.com/akolanti/uniassist/internal/worker"
	"github.com/akolanti/uniassist/pkg/logger_i"
)

var (
	listenAddr        string
	settingsPath      string
	requestCount      int64
	stopWorkerChannel chan bool
	workerWaitGroup   sync.WaitGroup
)

func main() {

	logger_i.Init()
	var logger = logger_i.NewLogger("main")

	//config
	flag.StringVar(&listenAddr, "listen-addr", config.ServerListenAddr, "server listen address")
	flag.StringVar(&settingsPath, "config", "uniassist.yaml", "settings file")
	flag.Parse()

	settings, err := config.LoadSettings(settingsPath)
	if err != nil {
		logger.Error("Invalid settings", "path", settingsPath, "err", err)
		os.Exit(1)
	}
	if settings.AuthToken == "" && !config.NoAuthBypass {
		logger.Warn("UNIASSIST_AUTH_TOKEN is not set, every request will be rejected")
	}
	middleware.SetAuthToken(settings.AuthToken)

	//init buffered job channel
	jobChannel := make(chan jobmodel.Job, config.BufferLimit)
	dispatcherChannel := make(chan bool, 1)
	stopWorkerChannel = make(chan bool, 1)

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	app, err := bootstrap.Build(serviceContext, settings)
	if err != nil {
		logger.Error("One or more external services failed to initialize. Shutting down.", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("Closing vector store", "err", err)
		}
	}()

	jobStore, err := bootstrap.NewJobStore(serviceContext, settings)
	if err != nil {
		logger.Error("Job store unavailable", "err", err)
		return
	}

	//init job service and job store
	service := job.InitJobService(job.ServiceConfig{
		JobChannel:        jobChannel,
		RequestCount:      requestCount,
		DispatcherChannel: dispatcherChannel,
		JobStore:          jobStore,
	})
	logger.Info("Starting job service")

	ragService := rag.NewService(app.Dispatcher, app.Pipeline)

	handlers.InitJobHandler(service, app.Pipeline, settings.DocumentsRoot)

	//init worker pool
	worker.SetJobTimeouts(settings.Timeouts.ChatJob, settings.Timeouts.IngestJob)
	worker.InitServices(service, ragService)
	worker.InitWorkerPool(stopWorkerChannel, &workerWaitGroup)

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		WorkerStop:       stopWorkerChannel,
		Group:            &workerWaitGroup,
		CloseServices:    closeExternalServices,
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(listenAddr)

	<-stopExecution
	logger.Info("Server stopped")
}
