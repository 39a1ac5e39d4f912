// Command ompas is the acting engine's REPL and one-shot CLI: type a task
// name and arguments, watch it refine against the example domain, inspect
// the resulting acting tree and resource table.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/chzyer/readline"

	"github.com/ompas-labs/acting-core/internal/acting"
	"github.com/ompas-labs/acting-core/internal/config"
	"github.com/ompas-labs/acting-core/internal/engine"
	"github.com/ompas-labs/acting-core/internal/exampledomain"
	"github.com/ompas-labs/acting-core/internal/types"
)

func main() {
	cfg := config.Load()
	reg := exampledomain.Build()

	// Redirect package-level logging to a file so it doesn't interleave with
	// the REPL's own output; internal/trace is the structured per-run record,
	// this is only for internal component warnings (dropped tap events, etc.).
	_ = os.MkdirAll(cfg.CacheDir, 0o755)
	if f, err := os.OpenFile(filepath.Join(cfg.CacheDir, "engine.log"),
		os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
		log.SetOutput(f)
		defer f.Close()
	}

	eg, err := engine.New(cfg, reg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer eg.Shutdown()

	for _, f := range exampledomain.InitialState() {
		eg.WS.AddFact(f.Partition, f.SV, f.Value)
	}
	eg.Resources.Declare("gripper", 1)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	if len(os.Args) > 1 {
		runOneShot(ctx, cancel, eg, strings.Join(os.Args[1:], " "))
		return
	}
	runREPL(ctx, cancel, eg)
}

func runOneShot(ctx context.Context, cancel context.CancelFunc, eg *engine.Engine, line string) {
	intrCh := make(chan os.Signal, 1)
	signal.Notify(intrCh, os.Interrupt)
	go func() {
		select {
		case <-intrCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	task, args, err := parseLine(line)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	result, eerr := eg.Submit(ctx, task, args)
	if eerr != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", eerr)
		cancel()
		os.Exit(1)
	}
	fmt.Printf("result: %s\n", result)
	cancel()
}

func runREPL(ctx context.Context, cancel context.CancelFunc, eg *engine.Engine) {
	fmt.Println("\033[1m\033[36m⚡ ompas\033[0m — acting engine shell  \033[2m(:tree/:resources to inspect | exit/Ctrl-D to quit | Ctrl+C aborts task)\033[0m")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "\033[36m>\033[0m ",
		HistoryFile:       filepath.Join(eg.Config.CacheDir, "history"),
		HistorySearchFold: true,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline init error: %v\n", err)
		cancel()
		return
	}
	defer rl.Close()

	var taskMu sync.Mutex
	var taskCancel context.CancelFunc

	intrCh := make(chan os.Signal, 1)
	signal.Notify(intrCh, os.Interrupt)
	defer signal.Stop(intrCh)
	go func() {
		for {
			select {
			case <-intrCh:
				taskMu.Lock()
				tc := taskCancel
				taskMu.Unlock()
				if tc != nil {
					tc()
					fmt.Print("\r\033[K\n\033[33m⚠ task aborted\033[0m\n")
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			fmt.Println("\n\033[2m(Ctrl+C again or type 'exit' to quit)\033[0m")
			line2, err2 := rl.Readline()
			if err2 == readline.ErrInterrupt || strings.TrimSpace(line2) == "exit" || strings.TrimSpace(line2) == "quit" {
				cancel()
				return
			}
			line, err = line2, err2
		}
		if err != nil {
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			cancel()
			return
		}
		if input == ":tree" {
			eg.PrintTree(os.Stdout, acting.Root)
			continue
		}
		if input == ":resources" {
			eg.PrintResources(os.Stdout)
			continue
		}

		task, args, perr := parseLine(input)
		if perr != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", perr)
			continue
		}

		taskCtx, tc := context.WithCancel(ctx)
		taskMu.Lock()
		taskCancel = tc
		taskMu.Unlock()

		result, eerr := eg.Submit(taskCtx, task, args)

		taskMu.Lock()
		taskCancel = nil
		taskMu.Unlock()
		tc()

		if eerr != nil {
			if taskCtx.Err() != nil && ctx.Err() == nil {
				continue // aborted by Ctrl+C, already reported above
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", eerr)
			continue
		}
		fmt.Printf("result: %s\n", result)

		if ctx.Err() != nil {
			return
		}
	}
}

// parseLine splits "task arg1 arg2 ..." into a task label and a slice of
// parsed values: ints, floats, "true"/"false", or bare symbols.
func parseLine(line string) (string, []types.Value, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("empty input")
	}
	task := fields[0]
	args := make([]types.Value, 0, len(fields)-1)
	for _, f := range fields[1:] {
		args = append(args, parseArg(f))
	}
	return task, args, nil
}

func parseArg(s string) types.Value {
	if s == "true" || s == "false" {
		return types.Bool(s == "true")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return types.Int(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return types.Float(f)
	}
	return types.Sym(s)
}
