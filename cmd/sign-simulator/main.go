package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	simulator "sign-scheduler-service/internal/sign-simulator"
)

func main() {
	logger := log.New(os.Stdout, "sign-simulator: ", log.LstdFlags)
	logger.Println("Starting sign simulator...")

	socketPath := os.Getenv("SIGN_SOCKET_PATH")
	fallbackAddr := os.Getenv("SIGN_FALLBACK_ADDR")

	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signals
		logger.Printf("Shutdown signal received (%s).", sig)
		cancel()
	}()

	srv := simulator.NewServer(logger, socketPath, fallbackAddr)
	if err := srv.Start(ctx); err != nil {
		logger.Fatalf("Simulator failed: %v", err)
	}
	logger.Println("Sign simulator shut down.")
}
