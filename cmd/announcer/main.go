package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Xerpa/gorpo/agent"
	"github.com/Xerpa/gorpo/announce"
	"github.com/Xerpa/gorpo/config"
	"github.com/Xerpa/gorpo/logger"
	"github.com/Xerpa/gorpo/transport"
	"github.com/Xerpa/gorpo/version"
)

func main() {
	configPath := flag.String("config", "", "path to the config file")
	envPath := flag.String("env", "", "path to the .env file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		os.Stdout.WriteString(version.Get().String() + "\n")
		return
	}

	var opts []config.LoaderOption
	if *configPath != "" {
		opts = append(opts, config.WithConfigFile(*configPath))
	}
	if *envPath != "" {
		opts = append(opts, config.WithEnvFile(*envPath))
	}

	cfg, err := config.Load(opts...)
	if err != nil {
		logger.Fatal("load config", logger.ErrorFields("load", err))
	}

	logger.Init(cfg.Log)
	log := logger.WithComponent("main")

	// Without a working HTTP transport there is nothing to announce with.
	send, err := transport.New(cfg.Transport)
	if err != nil {
		log.Fatal("http transport unavailable", logger.ErrorFields("transport", err))
	}

	client := agent.New(cfg.Endpoint, send, agent.WithToken(cfg.Token))
	announcer := announce.New(client)

	ctx := context.Background()
	for _, sc := range cfg.Services {
		svc := sc.Service(cfg.UniqueID)
		if err := announcer.Register(ctx, svc); err != nil {
			log.Error("register failed", logger.ErrorFields("register", err))
		}
	}

	log.Info("announcer running", map[string]interface{}{
		"version":  version.Get().Version,
		"endpoint": cfg.Endpoint,
		"services": len(cfg.Services),
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	log.Info("shutting down", map[string]interface{}{"signal": sig.String()})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := announcer.Close(shutdownCtx); err != nil {
		log.Error("shutdown", logger.ErrorFields("close", err))
	}
}
