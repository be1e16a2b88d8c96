package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"flightbook/internal/database"
	"flightbook/internal/models"
	"flightbook/internal/service"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// MutationsFile lists mutations to enqueue, for seeding a device store or
// replaying a captured session.
type MutationsFile struct {
	Mutations []struct {
		Type   models.ItemType        `yaml:"type"`
		Action models.Action          `yaml:"action"`
		Data   map[string]interface{} `yaml:"data"`
	} `yaml:"mutations"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		inPath = flag.String("in", "configs/mutations.yaml", "path to mutations.yaml")
		dbPath = flag.String("db", "./data/sync_queue.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*inPath)
	if err != nil {
		return fmt.Errorf("read mutations: %w", err)
	}
	var file MutationsFile
	if err = yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse mutations: %w", err)
	}
	if len(file.Mutations) == 0 {
		return fmt.Errorf("no mutations in yaml")
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	queue := service.NewQueueService(db, nil, &logger)

	queued := 0
	for i, m := range file.Mutations {
		raw, err := json.Marshal(m.Data)
		if err != nil {
			return fmt.Errorf("mutation %d: %w", i, err)
		}
		if _, err = queue.Add(ctx, m.Type, m.Action, raw); err != nil {
			return fmt.Errorf("mutation %d: %w", i, err)
		}
		queued++
	}

	fmt.Printf("done: queued=%d\n", queued)
	return nil
}
