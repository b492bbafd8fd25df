package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/Lllllllleong/docenrich/internal/app"
	"github.com/Lllllllleong/docenrich/internal/config"
	"github.com/Lllllllleong/docenrich/internal/textdetect"
)

var (
	handler  *textdetect.Handler
	once     sync.Once
	initErr  error
	logLevel = new(slog.LevelVar)
)

func init() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	// The text-detection workflow calls this function and returns its result.
	functions.HTTP("DetectText", detectText)
}

// main is required by the Go Functions Framework.
func main() {}

func detectText(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			initErr = err
			return
		}
		logLevel.Set(cfg.SlogLevel())
		engine, _, err := app.NewEngine(context.Background(), cfg)
		if err != nil {
			initErr = err
			return
		}
		handler = textdetect.NewHandler(engine)
	})
	if initErr != nil {
		slog.Error("CRITICAL: Text detector initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	handler.ServeHTTP(w, r)
}
