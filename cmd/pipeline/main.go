package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/yaml.v3"

	"mapaq-pipeline/internal/model"
	"mapaq-pipeline/internal/pipeline"
)

// AppConfig is the on-disk configuration for the batch entrypoint.
// A schedule section turns the process into a long-running scheduler.
type AppConfig struct {
	Pipeline model.PipelineConfig `yaml:"pipeline"`
	Schedule *model.ScheduleSpec  `yaml:"schedule,omitempty"`
}

func defaultConfig() AppConfig {
	return AppConfig{
		Pipeline: model.PipelineConfig{
			Source:        "data/raw/mapaq_inspections.csv",
			Destination:   "mapaq_dashboard.db",
			BackupEnabled: true,
			BackupDir:     "data/backups",
			MaxRetries:    3,
			BatchSize:     100,
		},
	}
}

func loadConfig(path string) (AppConfig, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	return cfg, nil
}

func main() {
	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	orch, st, err := pipeline.NewOrchestrator(cfg.Pipeline, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer st.Close()

	if cfg.Schedule == nil {
		report := orch.RunOnce(context.Background())
		if report.Status == model.RunFailed {
			os.Exit(1)
		}
		return
	}

	scheduler := pipeline.NewScheduler()
	handle, err := scheduler.Schedule(*cfg.Schedule, orch)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	fmt.Println("⏹️ Shutting down scheduler")
	scheduler.Cancel(handle)
}
