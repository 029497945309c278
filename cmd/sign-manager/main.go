package main

import (
	"context"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/common/utils"

	"sign-scheduler-service/internal/sign-manager/api"
	signDB "sign-scheduler-service/internal/sign-manager/db"
	smKafka "sign-scheduler-service/internal/sign-manager/kafka"
	"sign-scheduler-service/internal/sign-manager/services"
	gormDB "sign-scheduler-service/pkg/db"
	"sign-scheduler-service/pkg/signwire"
)

func main() {
	stdlog.Println("Sign Scheduler Service starting...")

	appCtx, appCancel := context.WithCancel(context.Background())

	db, err := gormDB.NewGormDB()
	if err != nil {
		stdlog.Fatalf("Failed to initialize database: %v", err)
	}

	stdlog.Println("Running database migrations...")
	err = gormDB.AutoMigrate(db, &signDB.Template{}, &signDB.ScheduleItem{}, &signDB.LastRun{})
	if err != nil {
		stdlog.Fatalf("Failed to migrate database: %v", err)
	}

	producer := smKafka.NewDisplayEventProducer()

	device := signwire.NewClient(os.Getenv("SIGN_SOCKET_PATH"))
	executor := services.NewExecutorService(appCtx, db, device, producer)

	schedulerService, err := services.NewSchedulerService(db, executor)
	if err != nil {
		stdlog.Fatalf("Failed to create scheduler service: %v", err)
	}

	// Startup order is a strict sequence: storage is up, replay the
	// possibly-interrupted last run, rebuild the timer set, and only then
	// let the engine dispatch.
	schedulerService.RecoverLastRun()
	schedulerService.Reconcile()
	schedulerService.Start()

	serverAddr := os.Getenv("SERVER_ADDR")
	if serverAddr == "" {
		serverAddr = ":8080"
	}

	hlog.SetOutput(os.Stdout)
	hlog.SetLevel(hlog.LevelInfo)

	h := server.Default(server.WithHostPorts(serverAddr), server.WithExitWaitTime(5*time.Second))

	templateHandler := api.NewTemplateHandler(db)
	scheduleHandler := api.NewScheduleHandler(db, schedulerService)
	signHandler := api.NewSignHandler(executor)

	templateGroup := h.Group("/templates")
	{
		templateGroup.POST("", templateHandler.CreateTemplate)
		templateGroup.GET("", templateHandler.GetTemplates)
		templateGroup.GET("/:id", templateHandler.GetTemplateByID)
		templateGroup.DELETE("/:id", templateHandler.DeleteTemplate)
	}
	scheduleGroup := h.Group("/schedules")
	{
		scheduleGroup.POST("", scheduleHandler.CreateSchedule)
		scheduleGroup.GET("", scheduleHandler.GetSchedules)
		scheduleGroup.DELETE("/:id", scheduleHandler.DeleteSchedule)
	}
	signGroup := h.Group("/sign")
	{
		signGroup.POST("/text", signHandler.SetText)
		signGroup.POST("/clear", signHandler.ClearSign)
	}

	h.GET("/ping", func(c context.Context, ctxReq *app.RequestContext) {
		ctxReq.JSON(http.StatusOK, utils.H{"message": "pong"})
	})

	go func() {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
		sig := <-signals
		hlog.Infof("Received signal: %s. Initiating graceful shutdown...", sig)

		appCancel()

		shutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer httpShutdownCancel()
		if err := h.Shutdown(shutdownCtx); err != nil {
			hlog.Errorf("Hertz server shutdown error: %v", err)
		} else {
			hlog.Info("Hertz server gracefully stopped.")
		}

		schedulerService.Stop()

		if producer != nil {
			if err := producer.Close(); err != nil {
				hlog.Errorf("Kafka producer close error: %v", err)
			} else {
				hlog.Info("Kafka producer closed.")
			}
		}
		hlog.Info("Sign Scheduler gracefully shut down.")
	}()

	hlog.Infof("Sign Scheduler Service fully initialized, starting Hertz server on %s...", serverAddr)
	h.Spin()

	stdlog.Println("Sign Scheduler Service has been shut down.")
}
