// Command roadmapctl is a thin front end over internal/orchestrator: it
// parses flags and dispatches to service operations (spec §1, §6). It is
// deliberately out of the core's scope — no subcommand implements domain
// logic itself.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/antigravity-dev/roadmap/internal/adapter"
	"github.com/antigravity-dev/roadmap/internal/config"
	"github.com/antigravity-dev/roadmap/internal/lock"
	"github.com/antigravity-dev/roadmap/internal/model"
	"github.com/antigravity-dev/roadmap/internal/orchestrator"
	"github.com/antigravity-dev/roadmap/internal/validator"
)

func configureLogger(logLevel string, dev bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if dev {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func main() {
	configPath := flag.String("config", "roadmapctl.toml", "path to config file")
	dev := flag.Bool("dev", false, "use text log format (default is JSON)")
	flag.Parse()

	cfg, err := config.Load(configFileOrEmpty(*configPath))
	if err != nil {
		fmt.Fprintln(os.Stderr, `{"error_code":"INVALID_ARGUMENT","error_message":"`+err.Error()+`"}`)
		os.Exit(1)
	}

	logger := configureLogger(cfg.General.LogLevel, *dev)
	slog.SetDefault(logger)

	if flag.NArg() == 0 {
		fail(model.NewError(model.CodeUnknownCommand, "no command given"))
	}

	root := filepath.Join(".", cfg.General.Root)
	lockPath := filepath.Join(root, "roadmapctl.lock")
	if err := os.MkdirAll(root, 0o755); err != nil {
		fail(fmt.Errorf("roadmapctl: create root %s: %w", root, err))
	}
	lockHandle, err := lock.Acquire(lockPath)
	if err != nil {
		fail(err)
	}
	defer lock.Release(lockHandle)

	svc := buildService(root, cfg, logger)

	command := flag.Arg(0)
	args := flag.Args()[1:]

	switch command {
	case "init":
		runInit(svc, args)
	case "run":
		runRun(svc, args)
	case "submit":
		runSubmit(svc, args)
	case "process":
		runProcess(svc, args)
	case "project":
		runProject(svc)
	case "verify":
		runVerify(svc)
	case "replay":
		runReplay(svc, args)
	default:
		fail(model.NewError(model.CodeUnknownCommand, "unknown command %q", command))
	}
}

func configFileOrEmpty(path string) string {
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func buildService(root string, cfg *config.Config, logger *slog.Logger) *orchestrator.Service {
	var v *validator.Validator
	schemaPath := filepath.Join(root, "agent_result.schema.json")
	contractPath := filepath.Join(root, "AGENT_CONTRACT.yaml")
	if _, err := os.Stat(schemaPath); err == nil {
		if _, err := os.Stat(contractPath); err == nil {
			schema, err := validator.CompileSchemaFile(schemaPath)
			if err != nil {
				fail(err)
			}
			contract, err := validator.LoadContract(contractPath)
			if err != nil {
				fail(err)
			}
			v = validator.New(schema, contract)
		}
	}
	return orchestrator.New(root, filepath.Dir(root), "", cfg.General.DefaultActor, v, adapter.NewMockAdapter(cfg.General.DefaultActor), logger)
}

func runInit(svc *orchestrator.Service, args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	runID := fs.String("run-id", "", "run id to stamp on run.start")
	correlationID := fs.String("master-correlation-id", "", "master correlation id to stamp on run.start")
	force := fs.Bool("force", false, "re-initialise even if the log already has content")
	fs.Parse(args)

	result, err := svc.Init(*runID, *correlationID, *force)
	printResultOrExit(result, "", err)
}

func requireValidator(svc *orchestrator.Service) {
	if svc.Validator == nil {
		fail(model.NewError(model.CodeInvalidArgument, "agent_result.schema.json and AGENT_CONTRACT.yaml must exist under the roadmap root for this command"))
	}
}

func runRun(svc *orchestrator.Service, args []string) {
	requireValidator(svc)
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	steps := fs.Int("steps", 1, "maximum number of steps to execute")
	dryRun := fs.Bool("dry-run", false, "validate without persisting events or views")
	fs.Parse(args)

	result, err := svc.Run(context.Background(), *steps, *dryRun)
	printResultOrExit(result, result.VerifyStatus, err)
}

func runSubmit(svc *orchestrator.Service, args []string) {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	actor := fs.String("actor", "", "actor identity to record the event under")
	dryRun := fs.Bool("dry-run", false, "validate without persisting events or views")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fail(model.NewError(model.CodeInvalidArgument, "submit requires a file argument or -"))
	}

	var data []byte
	var err error
	if fs.Arg(0) == "-" {
		data, err = readAllStdin()
	} else {
		data, err = os.ReadFile(fs.Arg(0))
	}
	if err != nil {
		fail(fmt.Errorf("roadmapctl: read submission: %w", err))
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		fail(model.NewError(model.CodeSchemaInvalid, "invalid JSON submission: %v", err))
	}

	result, err := svc.Submit(raw, *actor, *dryRun)
	printResultOrExit(result, result.VerifyStatus, err)
}

func runProcess(svc *orchestrator.Service, args []string) {
	fs := flag.NewFlagSet("process", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "validate without moving files or persisting events")
	fs.Parse(args)

	result, err := svc.Process(*dryRun)
	printResultOrExit(result, "", err)
}

func runProject(svc *orchestrator.Service) {
	result, err := svc.Project()
	printResultOrExit(result, "", err)
}

func runVerify(svc *orchestrator.Service) {
	result, err := svc.Verify()
	printResultOrExit(result, result.VerifyStatus, err)
}

func runReplay(svc *orchestrator.Service, args []string) {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	until := fs.String("until", "", "event_seq or event_id to truncate at, inclusive")
	noWrite := fs.Bool("no-write", false, "skip rewriting the view files")
	fs.Parse(args)

	result, err := svc.Replay(*until, !*noWrite)
	printResultOrExit(result, "", err)
}

func readAllStdin() ([]byte, error) {
	return io.ReadAll(os.Stdin)
}

// printResultOrExit prints result as JSON on success, or {error_code,
// error_message} to stderr on failure, and sets the process exit code per
// spec §6: 0 ok, 1 error, 2 if the resulting verify_status is mismatch or
// corrupted.
func printResultOrExit(result any, verifyStatus string, err error) {
	if err != nil {
		fail(err)
	}
	data, marshalErr := json.Marshal(result)
	if marshalErr != nil {
		fail(marshalErr)
	}
	fmt.Println(string(data))
	if verifyStatus == model.VerifyStatusMismatch || verifyStatus == model.VerifyStatusCorrupted {
		os.Exit(2)
	}
	os.Exit(0)
}

func fail(err error) {
	code := model.CodeOf(err)
	if code == "" {
		code = "INVALID_ARGUMENT"
	}
	payload, _ := json.Marshal(map[string]string{"error_code": code, "error_message": err.Error()})
	fmt.Fprintln(os.Stderr, string(payload))
	os.Exit(1)
}
