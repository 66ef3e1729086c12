package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"go.uber.org/zap"

	scriptbridge "github.com/wippyai/script-bridge"
	"github.com/wippyai/script-bridge/bridge"
	"github.com/wippyai/script-bridge/gojaengine"
	"github.com/wippyai/script-bridge/wire"
)

func main() {
	var (
		scriptFile  = flag.String("script", "", "Path to script file")
		evalStr     = flag.String("eval", "", "Inline script to evaluate")
		configFile  = flag.String("config", "", "YAML file declaring stub host functions")
		mode        = flag.String("mode", "sync", "Evaluation mode: sync, blocking or async")
		timeout     = flag.Duration("timeout", 30*time.Second, "Queue timeout for async evaluations")
		verbose     = flag.Bool("v", false, "Verbose logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *interactive {
		if err := runInteractive(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *scriptFile == "" && *evalStr == "" {
		fmt.Fprintln(os.Stderr, "Usage: run -script <file.js> [-config funcs.yaml] [-mode sync|blocking|async]")
		fmt.Fprintln(os.Stderr, "       run -eval '<expression>' [-config funcs.yaml]")
		fmt.Fprintln(os.Stderr, "       run -i [-config funcs.yaml]  (interactive mode)")
		os.Exit(1)
	}

	if err := run(*scriptFile, *evalStr, *configFile, *mode, *timeout, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// hostConfig declares stub host functions, loaded from YAML. Each stub
// returns a fixed result, optionally after a delay; deferred stubs resolve
// through the pending-operation path instead of returning inline.
type hostConfig struct {
	Functions []stubFunc `yaml:"functions"`
}

type stubFunc struct {
	Name     string `yaml:"name"`
	Result   any    `yaml:"result"`
	Error    string `yaml:"error"`
	Delay    string `yaml:"delay"`
	Deferred bool   `yaml:"deferred"`
	Timeout  string `yaml:"timeout"`
}

func loadConfig(path string) (*hostConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg hostConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// registerStubs installs every configured function on the bridge.
func registerStubs(b *bridge.Bridge, cfg *hostConfig) error {
	for _, fn := range cfg.Functions {
		fn := fn

		var delay time.Duration
		if fn.Delay != "" {
			d, err := time.ParseDuration(fn.Delay)
			if err != nil {
				return fmt.Errorf("function %s: bad delay: %w", fn.Name, err)
			}
			delay = d
		}

		var callTimeout time.Duration
		if fn.Timeout != "" {
			d, err := time.ParseDuration(fn.Timeout)
			if err != nil {
				return fmt.Errorf("function %s: bad timeout: %w", fn.Name, err)
			}
			callTimeout = d
		}

		invoke := func(args []wire.Value) scriptbridge.Outcome {
			if fn.Deferred {
				id, err := b.NewOperationID()
				if err != nil {
					return scriptbridge.Fail(err.Error())
				}
				go func() {
					if delay > 0 {
						time.Sleep(delay)
					}
					_ = b.CompletePending(id, fn.Result)
				}()
				return scriptbridge.Pending(id)
			}
			if delay > 0 {
				time.Sleep(delay)
			}
			if fn.Error != "" {
				return scriptbridge.Fail(fn.Error)
			}
			return scriptbridge.Success(fn.Result)
		}

		if err := b.RegisterFunc(fn.Name, invoke, callTimeout); err != nil {
			return fmt.Errorf("register %s: %w", fn.Name, err)
		}
	}
	return nil
}

func run(scriptFile, evalStr, configFile, mode string, timeout time.Duration, verbose bool) error {
	ctx := context.Background()

	script := evalStr
	if scriptFile != "" {
		data, err := os.ReadFile(scriptFile)
		if err != nil {
			return fmt.Errorf("read script: %w", err)
		}
		script = string(data)
	}

	logger := zap.NewNop()
	if verbose {
		dev, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		logger = dev
		defer logger.Sync()
	}

	b := bridge.New(gojaengine.New(),
		bridge.WithLogger(logger),
		bridge.WithQueueTimeout(timeout))
	defer b.Close()

	var cfg *hostConfig
	if configFile != "" {
		loaded, err := loadConfig(configFile)
		if err != nil {
			return err
		}
		cfg = loaded
		if err := registerStubs(b, cfg); err != nil {
			return err
		}
		fmt.Printf("Registered %d host functions\n", len(cfg.Functions))
	}

	switch mode {
	case "sync":
		v, err := b.Evaluate(ctx, script)
		if err != nil {
			return err
		}
		return printResult(v)

	case "blocking":
		v, err := b.EvaluateBlocking(ctx, script)
		if err != nil {
			return err
		}
		return printResult(v)

	case "async":
		return runAsync(ctx, b, cfg, script)

	default:
		return fmt.Errorf("unknown mode %q (want sync, blocking or async)", mode)
	}
}

// runAsync starts the evaluation on the bridge's worker pool and services
// its queued host calls from this goroutine, the way an embedding host
// loop would.
func runAsync(ctx context.Context, b *bridge.Bridge, cfg *hostConfig, script string) error {
	evalID, err := b.StartAsyncEval(ctx, script)
	if err != nil {
		return err
	}
	fmt.Printf("Started evaluation %d\n", evalID)

	stubs := make(map[string]stubFunc)
	if cfg != nil {
		for _, fn := range cfg.Functions {
			stubs[fn.Name] = fn
		}
	}

	for {
		if req, ok := b.PollRequest(); ok {
			fmt.Printf("  host call: %s(%v) [op %d]\n", req.Function, req.Args, req.OperationID)
			if err := serveRequest(b, stubs, req); err != nil {
				return err
			}
			continue
		}

		res, err := b.PollAsyncEval(evalID)
		if err != nil {
			return err
		}
		switch res.Status {
		case bridge.StatusSuccess:
			return printResult(res.Value)
		case bridge.StatusError:
			return fmt.Errorf("evaluation failed: %s", res.Err)
		}

		time.Sleep(time.Millisecond)
	}
}

func serveRequest(b *bridge.Bridge, stubs map[string]stubFunc, req bridge.Request) error {
	fn, ok := stubs[req.Function]
	if !ok {
		// Drained requests must always be answered or the evaluation
		// stalls until the queue timeout.
		return b.DeliverRequestResult(req.OperationID, nil)
	}
	if fn.Delay != "" {
		if d, err := time.ParseDuration(fn.Delay); err == nil {
			time.Sleep(d)
		}
	}
	return b.DeliverRequestResult(req.OperationID, fn.Result)
}

func printResult(v wire.Value) error {
	data, err := wire.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Printf("Result: %s\n", data)
	return nil
}
