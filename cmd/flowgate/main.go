package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/promptlane/flowgate"
	"github.com/promptlane/flowgate/config"
	"github.com/promptlane/flowgate/counter"
	"github.com/promptlane/flowgate/usage"
)

// CLI configuration
type cliConfig struct {
	WorkflowFile string
	Identity     string
	Inputs       inputFlags
	AutoAck      bool
	DataDir      string
	Verbose      bool
	JSON         bool
}

// inputFlags collects repeated -input name=value flags.
type inputFlags map[string]string

func (f inputFlags) String() string {
	pairs := make([]string, 0, len(f))
	for k, v := range f {
		pairs = append(pairs, k+"="+v)
	}
	return strings.Join(pairs, ",")
}

func (f inputFlags) Set(value string) error {
	name, val, ok := strings.Cut(value, "=")
	if !ok {
		return fmt.Errorf("expected name=value, got %q", value)
	}
	f[name] = val
	return nil
}

func main() {
	// A missing .env is fine; explicit env vars still apply.
	_ = godotenv.Load()

	cli := parseFlags()
	if cli.WorkflowFile == "" {
		color.Red("Error: workflow file is required")
		flag.Usage()
		os.Exit(1)
	}
	if _, err := os.Stat(cli.WorkflowFile); os.IsNotExist(err) {
		color.Red("Error: workflow file '%s' not found", cli.WorkflowFile)
		os.Exit(1)
	}

	logger := setupLogger(cli.Verbose, cli.JSON)
	cfg := config.MustLoad()
	ctx := context.Background()

	color.Blue("Loading workflow from: %s", cli.WorkflowFile)
	wf, err := flowgate.LoadFile(cli.WorkflowFile)
	if err != nil {
		log.Fatalf("Failed to load workflow: %v", err)
	}
	color.Cyan("Workflow: %s (%d steps)", wf.Name(), wf.StepCount())

	identity := resolveIdentity(cli.Identity)
	anonCounter := buildCounter(cli.DataDir, cfg, logger)
	store := usage.NewMemoryStore(cfg.Milestones)

	_, decision := flowgate.ResolveDecision(ctx, flowgate.GateDeps{
		Auth:      staticAuth{identity},
		Usage:     store,
		Anonymous: anonCounter,
	}, cfg.Quota)

	gate := flowgate.NewGate(logger)
	gate.Open(decision)
	printDecision(decision)
	if !gate.CanProceed() {
		os.Exit(2)
	}

	session, err := buildSession(wf, identity, gate, anonCounter, store, cli, logger)
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}

	if err := drive(ctx, session, cli); err != nil {
		color.Red("Run failed: %v", err)
		os.Exit(1)
	}
}

func parseFlags() *cliConfig {
	cli := &cliConfig{Inputs: inputFlags{}}
	flag.StringVar(&cli.WorkflowFile, "workflow", "", "Path to the workflow YAML file (required)")
	flag.StringVar(&cli.Identity, "as", "anonymous", "Identity kind: anonymous, free, or paid")
	flag.Var(cli.Inputs, "input", "Field or input value as name=value (repeatable)")
	flag.BoolVar(&cli.AutoAck, "ack", false, "Acknowledge instruction steps automatically")
	flag.StringVar(&cli.DataDir, "data", "", "Data directory for progress and usage counters")
	flag.BoolVar(&cli.Verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&cli.JSON, "json", false, "Log in JSON format")
	flag.Parse()
	return cli
}

func setupLogger(verbose, jsonOut bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	if jsonOut {
		return flowgate.NewJSONLogger(os.Stderr)
	}
	return flowgate.NewLogger(level)
}

func resolveIdentity(kind string) flowgate.Identity {
	switch kind {
	case "anonymous":
		return flowgate.Identity{Kind: flowgate.IdentityAnonymous}
	case "free":
		return flowgate.Identity{Kind: flowgate.IdentityRegisteredFree, ID: "cli-free"}
	case "paid":
		return flowgate.Identity{Kind: flowgate.IdentityRegisteredPaid, ID: "cli-paid"}
	default:
		color.Red("Error: unknown identity kind %q", kind)
		os.Exit(1)
		return flowgate.Identity{}
	}
}

func buildCounter(dataDir string, cfg *config.Config, logger *slog.Logger) *counter.Counter {
	path := cfg.Storage.CounterPath
	if dataDir != "" {
		path = filepath.Join(dataDir, "usage.json")
	}
	backends := []counter.Backend{counter.NewMemoryBackend()}
	if file, err := counter.NewFileBackend(path); err == nil {
		backends = append([]counter.Backend{file}, backends...)
	} else {
		logger.Warn("durable counter backend unavailable", "error", err)
	}
	return counter.New(counter.Options{Backends: backends, Logger: logger})
}

func buildSession(wf *flowgate.Workflow, identity flowgate.Identity, gate *flowgate.Gate, anonCounter *counter.Counter, store *usage.MemoryStore, cli *cliConfig, logger *slog.Logger) (*flowgate.Session, error) {
	var progress flowgate.ProgressStore = flowgate.NewNullProgressStore()
	if cli.DataDir != "" {
		fileStore, err := flowgate.NewFileProgressStore(filepath.Join(cli.DataDir, "progress"))
		if err != nil {
			return nil, err
		}
		progress = fileStore
	}
	var completionLog flowgate.CompletionLog = flowgate.NewNullCompletionLog()
	if cli.DataDir != "" {
		completionLog = flowgate.NewFileCompletionLog(filepath.Join(cli.DataDir, "completions"))
	}
	notifier := flowgate.NewNotifier(flowgate.NotifierOptions{
		Usage:         store,
		Stats:         store,
		Counter:       anonCounter,
		CompletionLog: completionLog,
		Logger:        logger,
	})
	return flowgate.NewSession(flowgate.SessionOptions{
		Workflow: wf,
		Identity: identity,
		Gate:     gate,
		Progress: progress,
		Notifier: notifier,
		Logger:   logger,
	})
}

// drive walks a session to completion using the values supplied on the
// command line.
func drive(ctx context.Context, session *flowgate.Session, cli *cliConfig) error {
	wf := session.Workflow()

	for {
		position := session.Cursor()
		step, err := session.CurrentStep()
		if err != nil {
			return err
		}
		color.Blue("Step %d/%d [%s]", position, wf.StepCount(), flowgate.StepKind(step))

		switch step := step.(type) {
		case *flowgate.PromptStep:
			for _, field := range step.Fields {
				if value, ok := cli.Inputs[field.Name]; ok {
					if err := session.SetField(field.Name, value); err != nil {
						return err
					}
				} else if field.Required {
					return fmt.Errorf("missing required field %q (use -input %s=...)", field.Name, field.Name)
				}
			}
		case *flowgate.InstructionStep:
			fmt.Println(session.Render())
			if !cli.AutoAck {
				return fmt.Errorf("instruction step %d needs acknowledgement (use -ack)", position)
			}
			if err := session.Acknowledge(); err != nil {
				return err
			}
		case *flowgate.InputStep:
			name := flowgate.InputName(step, position)
			value, ok := cli.Inputs[name]
			if !ok {
				return fmt.Errorf("missing input %q (use -input %s=...)", name, name)
			}
			if err := session.SetFreeText(value); err != nil {
				return err
			}
		}

		if position == wf.StepCount() {
			break
		}
		if err := session.Next(); err != nil {
			return err
		}
	}

	rendered := session.Render()
	if session.Mode() == flowgate.SingleMode {
		if err := session.RecordUse(ctx); err != nil {
			return err
		}
	} else {
		if err := session.Complete(ctx); err != nil {
			return err
		}
	}

	color.Green("Workflow complete (%s mode, finished at %s)",
		session.Mode(), time.Now().Format(time.RFC3339))
	fmt.Println()
	fmt.Println(rendered)
	return nil
}

// staticAuth resolves to a fixed identity chosen on the command line.
type staticAuth struct {
	identity flowgate.Identity
}

func (a staticAuth) ResolveIdentity(ctx context.Context) flowgate.Identity {
	return a.identity
}

func printDecision(decision flowgate.GateDecision) {
	if decision.Allowed && decision.Modal == flowgate.ModalNone {
		return
	}
	switch decision.Modal {
	case flowgate.ModalSoftNudge:
		color.Yellow("Heads up: %d runs remaining this month.", decision.Remaining)
	case flowgate.ModalHardBlock:
		color.Red("Monthly limit reached. Create a free account to continue.")
	case flowgate.ModalUpgradePrompt:
		color.Red("Monthly limit reached. Upgrade to keep running workflows.")
	case flowgate.ModalReauthRequired:
		color.Red("Session could not be verified. Sign in again to continue.")
	}
}
