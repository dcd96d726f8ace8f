package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/danshapiro/meridian/internal/agents"
	"github.com/danshapiro/meridian/internal/checkpoint"
	"github.com/danshapiro/meridian/internal/config"
	"github.com/danshapiro/meridian/internal/flow"
	"github.com/danshapiro/meridian/internal/llm"
	"github.com/danshapiro/meridian/internal/llm/google"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "run":
		cmdRun(os.Args[2:])
	case "resume":
		cmdResume(os.Args[2:])
	case "threads":
		cmdThreads(os.Args[2:])
	case "show":
		cmdShow(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  meridian run [--config <file>] [--thread <id>] [--verbose] <query>")
	fmt.Fprintln(os.Stderr, "  meridian resume [--config <file>] --thread <id> [--verbose] <answer>")
	fmt.Fprintln(os.Stderr, "  meridian threads [--config <file>] [--pattern <glob>]")
	fmt.Fprintln(os.Stderr, "  meridian show [--config <file>] --thread <id>")
}

type commonFlags struct {
	configPath string
	threadID   string
	pattern    string
	verbose    bool
	rest       []string
}

func parseArgs(args []string) commonFlags {
	var f commonFlags
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a value")
				os.Exit(1)
			}
			f.configPath = args[i]
		case "--thread":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--thread requires a value")
				os.Exit(1)
			}
			f.threadID = args[i]
		case "--pattern":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--pattern requires a value")
				os.Exit(1)
			}
			f.pattern = args[i]
		case "--verbose", "-v":
			f.verbose = true
		default:
			if strings.HasPrefix(args[i], "--") {
				fmt.Fprintf(os.Stderr, "unknown arg: %s\n", args[i])
				os.Exit(1)
			}
			f.rest = append(f.rest, args[i])
		}
	}
	return f
}

func loadConfig(f commonFlags) *config.Config {
	if f.configPath == "" {
		cfg := config.Default()
		cfg.Verbose = cfg.Verbose || f.verbose
		return cfg
	}
	cfg, err := config.Load(f.configPath)
	if err != nil {
		fatal(err)
	}
	cfg.Verbose = cfg.Verbose || f.verbose
	return cfg
}

func openStore(cfg *config.Config) flow.CheckpointStore {
	switch cfg.Store.Backend {
	case config.StoreFile:
		st, err := checkpoint.NewFileStore(cfg.Store.Path)
		if err != nil {
			fatal(err)
		}
		return st
	case config.StoreSQLite:
		st, err := checkpoint.OpenSQLite(cfg.Store.Path)
		if err != nil {
			fatal(err)
		}
		return st
	default:
		return flow.NewMemoryStore()
	}
}

func buildEngine(cfg *config.Config, store flow.CheckpointStore) *flow.Engine {
	apiKey := strings.TrimSpace(os.Getenv(cfg.LLM.APIKeyEnv))
	if apiKey == "" {
		fatal(fmt.Errorf("%s is not set", cfg.LLM.APIKeyEnv))
	}
	client := llm.NewClient()
	client.Register(google.New(apiKey, cfg.LLM.BaseURL))
	client.SetDefaultProvider(cfg.LLM.Provider)

	pipeline, err := agents.NewPipeline(agents.Options{
		Client:      client,
		FastModel:   cfg.LLM.FastModel,
		SearchModel: cfg.LLM.SearchModel,
	})
	if err != nil {
		fatal(err)
	}

	var progress flow.ProgressFunc
	if cfg.Verbose {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		progress = flow.SlogProgress(logger)
	}
	eng, err := flow.NewEngine(pipeline.BuildGraph(), flow.Options{
		Store:    store,
		Progress: progress,
	})
	if err != nil {
		fatal(err)
	}
	return eng
}

func cmdRun(args []string) {
	f := parseArgs(args)
	if len(f.rest) != 1 {
		usage()
		os.Exit(1)
	}
	query := f.rest[0]
	cfg := loadConfig(f)
	store := openStore(cfg)
	defer func() { _ = store.Close() }()
	eng := buildEngine(cfg, store)

	threadID := f.threadID
	if threadID == "" {
		threadID = "thread-" + strings.ToLower(ulid.Make().String())
		fmt.Fprintf(os.Stderr, "thread: %s\n", threadID)
	}

	res, err := eng.Invoke(context.Background(), threadID, flow.UserTurn(query))
	if err != nil {
		fatal(err)
	}
	printResult(res)
}

func cmdResume(args []string) {
	f := parseArgs(args)
	if f.threadID == "" || len(f.rest) != 1 {
		usage()
		os.Exit(1)
	}
	cfg := loadConfig(f)
	store := openStore(cfg)
	defer func() { _ = store.Close() }()
	eng := buildEngine(cfg, store)

	res, err := eng.Resume(context.Background(), f.threadID, f.rest[0])
	if err != nil {
		fatal(err)
	}
	printResult(res)
}

func printResult(res *flow.Result) {
	if res.Suspended() {
		fmt.Printf("[%s] needs input: %v\n", res.Interrupt.Stage, res.Interrupt.Payload)
		fmt.Printf("resume with: meridian resume --thread %s \"<answer>\"\n", res.ThreadID)
		return
	}
	fmt.Println(res.State.FinalResponse)
}

func cmdThreads(args []string) {
	f := parseArgs(args)
	if len(f.rest) != 0 {
		usage()
		os.Exit(1)
	}
	cfg := loadConfig(f)
	store := openStore(cfg)
	defer func() { _ = store.Close() }()

	ids, err := store.List(context.Background(), f.pattern)
	if err != nil {
		fatal(err)
	}
	for _, id := range ids {
		fmt.Println(id)
	}
}

func cmdShow(args []string) {
	f := parseArgs(args)
	if f.threadID == "" || len(f.rest) != 0 {
		usage()
		os.Exit(1)
	}
	cfg := loadConfig(f)
	store := openStore(cfg)
	defer func() { _ = store.Close() }()

	st, err := store.Load(context.Background(), f.threadID)
	if err != nil {
		fatal(err)
	}
	raw, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(raw))
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
