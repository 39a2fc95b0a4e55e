package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/scanstudy/internal/handlers"
	"github.com/lehigh-university-libraries/scanstudy/internal/ocr"
	"github.com/lehigh-university-libraries/scanstudy/internal/study"
	"github.com/lehigh-university-libraries/scanstudy/internal/workflow"
)

func (a *app) newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the generation and document HTTP API",
		Long: `Starts the HTTP API on the specified port.

POST /api/generate is the stateless generation endpoint used by browser clients.
The /api/document endpoints drive a single capture, recognition and study
session held by the server.`,
		Example: `  # Start server on default port 8888
  scanstudy serve

  # Start server on custom port
  scanstudy serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("port") {
				port = a.cfg.Port
			}

			service, err := a.generationService()
			if err != nil {
				return err
			}
			session, err := a.generator("")
			if err != nil {
				return err
			}
			engine, err := a.ocrEngine("", "", "")
			if err != nil {
				return err
			}
			sink, err := a.sink(cmd.Context(), "")
			if err != nil {
				return err
			}
			layout, err := a.layout()
			if err != nil {
				return err
			}

			wf := workflow.New(a.camera(), ocr.NewPipeline(engine, a.cfg.OCR.Language), study.NewSession(session))
			handler := handlers.New(service, wf, handlers.Options{
				Language:  a.cfg.OCR.Language,
				MaxUpload: a.cfg.Upload.MaxBytes,
				Prefix:    a.cfg.Export.Prefix,
				Sink:      sink,
				Layout:    layout,
			})

			addr := fmt.Sprintf(":%d", port)
			server := &http.Server{
				Addr:              addr,
				Handler:           handler.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Scanstudy API available", "addr", addr, "url", "http://localhost"+addr, "model", service.Model())
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				wf.Reset()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8888, "Port to listen on (default from config)")

	return cmd
}
