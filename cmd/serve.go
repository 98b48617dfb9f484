package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/consulthub/consulthub-api/api/handlers"
	"github.com/consulthub/consulthub-api/api/scheduler"
	"github.com/consulthub/consulthub-api/config"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat gateway and REST api",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context) error {
	a := handlers.App{}
	a.Config = *config.New()
	defer zap.L().Sync()

	if err := a.Config.Validate(); err != nil {
		return err
	}
	if err := a.Initialize(ctx); err != nil { //initialize database, gateway and router
		return err
	}

	gatewayCtx, stopGateway := context.WithCancel(context.Background())
	gatewayDone := make(chan struct{})
	go func() {
		a.Gateway.Run(gatewayCtx)
		close(gatewayDone)
	}()

	refreshTTL := a.Config.PresenceTTL
	if a.Config.RedisAddr == "" {
		refreshTTL = 0
	}
	jobs := scheduler.NewScheduler(a.Gateway, a.Config.StatsSchedule, refreshTTL)
	if err := jobs.Start(); err != nil {
		stopGateway()
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%v", a.Config.Port),
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()
	zap.S().Infow("consulthub-api is up and running",
		"port", a.Config.Port,
		"url", a.Config.BaseURL,
		"chatPath", a.Config.ChatPath)

	var err error
	select {
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	case <-ctx.Done():
		zap.S().Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		zap.S().With(shutdownErr).Warn("http server did not shut down cleanly")
	}
	jobs.Stop()
	stopGateway()
	<-gatewayDone
	a.Close(shutdownCtx)
	return err
}
