package main

import (
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"

	"taskpilot/actions/chrome"
	"taskpilot/actions/webdriver"
	"taskpilot/runtime"
	"taskpilot/runtime/catalog"
	"taskpilot/runtime/extract"
	"taskpilot/runtime/match"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := runtime.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	store, err := catalog.Open(logger, cfg.Catalog.Path)
	if err != nil {
		log.Fatalf("Error opening catalog: %v", err)
	}
	defer store.Close()

	var actions runtime.ActionExecutor
	switch cfg.Driver.Kind {
	case "chrome":
		driver := chrome.New(logger, cfg.Driver.Headless)
		defer driver.Close()
		actions = driver
	default:
		client := webdriver.New(logger, cfg.Driver.URL)
		defer client.Close()
		actions = client
	}

	matcher := match.New(logger, cfg.Matcher.MinSimilarity)
	extractor := extract.New(logger)
	executor := runtime.NewExecutor(logger, actions, cfg.Executor)
	runner := runtime.NewRunner(logger, executor)
	app := runtime.NewApp(logger, store, matcher, extractor, runner)

	g := gin.Default()
	runtime.NewHTTPHandler(app, g)

	if err := g.Run(cfg.Server.Addr); err != nil {
		log.Fatalf("Error running server: %v", err)
	}
}
