package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MalithGihan/codediagram-service/internal/config"
	"github.com/MalithGihan/codediagram-service/internal/credential"
	"github.com/MalithGihan/codediagram-service/internal/diagram"
	"github.com/MalithGihan/codediagram-service/internal/ingest"
	"github.com/MalithGihan/codediagram-service/internal/logging"
	"github.com/MalithGihan/codediagram-service/internal/server"
	"github.com/MalithGihan/codediagram-service/internal/store"
	"github.com/MalithGihan/codediagram-service/pkg/types"
)

const usage = `usage: codediagram [-config path] <command> [args]

commands:
  serve                      run the HTTP API and diagram panel
  generate [-o file] <file>  generate a Mermaid diagram for a source file
  clear-key                  remove the stored API key
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("codediagram", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", "", "path to config.yaml")
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "FATAL: failed to load config: %v\n", err)
		return 1
	}
	logger := logging.Init(cfg.LogLevel)

	secrets, closeStore, err := openStore(cfg)
	if err != nil {
		logger.Error("open secret store", "backend", cfg.SecretBackend, "error", err)
		return 1
	}
	defer closeStore()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prompter := credential.Prompter(credential.Decline)
	if fs.Arg(0) == "generate" {
		prompter = credential.Terminal{In: stdin, Out: stderr, Service: "SambaNova"}
	}
	creds := credential.NewManager(secrets, cfg.SecretKeyName, prompter)
	if cfg.APIKey != "" {
		if err := creds.Update(ctx, cfg.APIKey); err != nil {
			logger.Error("seed API key", "error", err)
			return 1
		}
	}

	client := diagram.NewClient(cfg.APIURL, cfg.Model, cfg.Timeout())
	gen, err := diagram.New(diagram.Config{
		Chat:        client,
		Credentials: creds,
		Logger:      logger,
		MaxAttempts: cfg.MaxAttempts,
		RetryDelay:  cfg.RetryDelay(),
	})
	if err != nil {
		logger.Error("init generator", "error", err)
		return 1
	}

	switch fs.Arg(0) {
	case "serve":
		return serve(ctx, cfg, logger, server.New(server.Config{
			Generator:   gen,
			Credentials: creds,
			Pinger:      client,
			Logger:      logger,
		}))
	case "generate":
		return generate(ctx, gen, fs.Args()[1:], stdout, stderr)
	case "clear-key":
		if err := creds.Clear(ctx); err != nil {
			fmt.Fprintln(stderr, "Failed to clear API Key.")
			logger.Error("clear API key", "error", err)
			return 1
		}
		fmt.Fprintln(stdout, "API Key has been cleared successfully.")
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", fs.Arg(0))
		fs.Usage()
		return 2
	}
}

func openStore(cfg config.Config) (store.SecretStore, func(), error) {
	switch cfg.SecretBackend {
	case "redis":
		r := store.NewRedis(cfg.RedisAddr, cfg.RedisPassword, "")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.Ping(ctx); err != nil {
			r.Close()
			return nil, nil, err
		}
		return r, func() { r.Close() }, nil
	case "memory":
		return store.NewMemory(), func() {}, nil
	default:
		fsStore, err := store.New(cfg.SecretDir)
		if err != nil {
			return nil, nil, err
		}
		return fsStore, func() {}, nil
	}
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger, api *server.Server) int {
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Timeout()*time.Duration(cfg.MaxAttempts) + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("codediagram-service listening", "addr", srv.Addr, "model", cfg.Model)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			return 1
		}
		return 0
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		return 1
	}
	logger.Info("server stopped")
	return 0
}

func generate(ctx context.Context, gen *diagram.Generator, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	out := fs.String("o", "", "write the diagram to this file instead of stdout")
	fallback := fs.Bool("fallback", false, "emit a placeholder diagram when generation fails")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	doc, err := ingest.ReadDocument(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "No document to analyze: %v\n", err)
		return 1
	}

	res, genErr := gen.GenerateRequest(ctx, types.GenerationRequest{
		Source: doc.Text, Name: doc.Name, Language: doc.Language,
	})
	text := res.Diagram
	if genErr != nil {
		fmt.Fprintf(stderr, "Failed to generate diagram: %v\n", genErr)
		if !*fallback {
			return 1
		}
		text = diagram.Fallback(genErr)
	}

	if err := writeDiagram(*out, text, stdout); err != nil {
		fmt.Fprintf(stderr, "write diagram: %v\n", err)
		return 1
	}
	if genErr != nil {
		return 1
	}
	return 0
}

func writeDiagram(path, text string, stdout io.Writer) error {
	if path == "" {
		_, err := fmt.Fprintln(stdout, text)
		return err
	}
	return os.WriteFile(path, []byte(text+"\n"), 0o644)
}
