// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: 2025-Present Rehearse Authors

// Package cmd provides the root command for the rehearse CLI.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/rehearse-dev/rehearse"
	"github.com/rehearse-dev/rehearse/config"
	"github.com/rehearse-dev/rehearse/schema"
	"github.com/rehearse-dev/rehearse/uses"
)

// NewRootCmd creates the root command for the rehearse CLI.
func NewRootCmd() *cobra.Command {
	var (
		w            map[string]string
		withFile     string
		matrixFilter map[string]string
		level        string
		ver          bool
		list         bool
		explain      bool
		from         string
		event        string
		ref          string
		policy       = uses.DefaultFetchPolicy // VarP does not allow you to set a default value
		s            string
		timeout      time.Duration
		dry          bool
		dir          string
		configPath   string
		fetchAll     bool
		gc           bool
		maxParallel  int
	)

	var cfg *config.Config // cfg is not set via CLI flag

	// closure initializer
	loadConfig := func(cmd *cobra.Command) error {
		switch {
		case cmd.Flags().Changed("config"):
			f, err := os.Open(configPath)
			if err != nil {
				return fmt.Errorf("failed to open config file: %w", err)
			}
			defer f.Close()
			cfg, err = config.LoadConfig(f)
			if err != nil {
				return fmt.Errorf("failed to load config file: %w", err)
			}
		default:
			var err error
			cfg, err = config.LoadDefaultConfig()
			if err != nil {
				return err
			}
		}

		// default < cfg < flags
		if !cmd.Flags().Changed("fetch-policy") && cfg.FetchPolicy != policy {
			if err := policy.Set(cfg.FetchPolicy.String()); err != nil {
				return err
			}
		}

		if policy == uses.FetchPolicyNever && fetchAll {
			return fmt.Errorf("cannot fetch all with fetch policy %q", policy)
		}

		return nil
	}

	root := &cobra.Command{
		Use:   "rehearse [jobs...]",
		Short: "Run CI workflows locally",
		Example: `
rehearse

rehearse lint test

rehearse --event push --ref refs/heads/main

rehearse test --matrix python-version=3.13

rehearse -f "pkg:github/rehearse-dev/rehearse@main#testdata/simple.yaml" greet -w name="world"
`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if dir != "" {
				if err := os.Chdir(dir); err != nil {
					return err
				}
			}

			return loadConfig(cmd)
		},
		ValidArgsFunction: func(cmd *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
			svc, err := uses.NewFetcherService()
			if err != nil {
				return nil, cobra.ShellCompDirectiveError
			}

			// if we are a sub-command, load the cfg as PersistentPreRun isnt run
			// when performing tab completions on sub-commands
			if cmd.Parent() != nil {
				if err := loadConfig(cmd); err != nil {
					return nil, cobra.ShellCompDirectiveError
				}
			}

			resolved, err := uses.ResolveRelative(nil, from, cfg.Aliases)
			if err != nil {
				return nil, cobra.ShellCompDirectiveError
			}

			wf, err := rehearse.Fetch(cmd.Context(), svc, resolved)
			if err != nil {
				return nil, cobra.ShellCompDirectiveError
			}

			names := make([]string, 0, len(wf.Jobs))
			for _, name := range wf.Jobs.OrderedJobNames() {
				names = append(names, strings.Join([]string{name, wf.Jobs[name].Name}, "\t"))
			}

			return names, cobra.ShellCompDirectiveNoFileComp
		},
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			l, err := log.ParseLevel(level)
			if err != nil {
				return err
			}
			logger := log.FromContext(cmd.Context())
			logger.SetLevel(l)

			if !slices.Contains(schema.AvailableEvents(), event) {
				return fmt.Errorf("unknown event %q, available events: %s", event, strings.Join(schema.AvailableEvents(), ", "))
			}

			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := log.FromContext(ctx)

			if ver && len(args) == 0 {
				bi, ok := debug.ReadBuildInfo()
				if !ok {
					return fmt.Errorf("version information not available")
				}
				switch bi.Main.Path {
				case "github.com/rehearse-dev/rehearse":
					fmt.Fprintln(os.Stdout, bi.Main.Version)
				default:
					for _, dep := range bi.Deps {
						if dep.Path == "github.com/rehearse-dev/rehearse" {
							fmt.Fprintln(os.Stdout, dep.Version)
							break
						}
					}
				}
				return nil
			}

			// fix fish needing "'pkg:...'" for tab completion
			from = strings.Trim(from, `"`)
			from = strings.Trim(from, `'`)

			fs := afero.NewOsFs()

			createDir := true
			if !cmd.Flags().Changed("store") {
				localStorePath := ".rehearse/store"
				if fi, err := fs.Stat(localStorePath); err == nil && fi.IsDir() {
					s = localStorePath
					createDir = false
				}
			}

			s = filepath.Clean(os.ExpandEnv(s))
			if s == "." {
				s = ".rehearse/store"
			}

			if createDir {
				if err := fs.MkdirAll(s, 0o744); err != nil {
					return err
				}
			}

			store, err := uses.NewLocalStore(afero.NewBasePathFs(fs, s))
			if err != nil {
				return fmt.Errorf("failed to initialize store: %w", err)
			}

			svc, err := uses.NewFetcherService(
				uses.WithStorage(store),
				uses.WithFetchPolicy(policy),
			)
			if err != nil {
				return fmt.Errorf("failed to initialize fetcher service: %w", err)
			}

			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
				cmd.SetContext(ctx)
			}

			resolved, err := uses.ResolveRelative(nil, from, cfg.Aliases)
			if err != nil {
				return fmt.Errorf("failed to resolve %q: %w", from, err)
			}

			wf, err := rehearse.Fetch(ctx, svc, resolved)
			if err != nil {
				return fmt.Errorf("failed to fetch %q: %w", resolved, err)
			}

			if list {
				fmt.Fprintln(os.Stdout, "Available jobs:")
				fmt.Fprintln(os.Stdout, rehearse.NewJobList(wf))

				return nil
			}

			if explain {
				md, err := rehearse.Explain(wf, args...)
				if err != nil {
					return err
				}
				fmt.Fprintln(os.Stdout, md)
				return nil
			}

			if fetchAll {
				logger.Debug("fetching all", "jobs", wf.Jobs.OrderedJobNames(), "from", resolved)
				if err := rehearse.FetchAll(ctx, svc, wf, resolved); err != nil {
					return err
				}
				// allow no args w/ fetch all
				if len(args) == 0 {
					if gc {
						return store.GC()
					}
					return nil
				}
			}

			with := make(schema.With, len(w))
			for k, v := range w {
				with[k] = v
			}

			if withFile != "" {
				f, err := fs.Open(withFile)
				if err != nil {
					return fmt.Errorf("failed opening with-file %q: %w", withFile, err)
				}
				defer f.Close()
				outputs, err := rehearse.ParseOutput(f)
				if err != nil {
					return fmt.Errorf("failed reading with-file %q: %w", withFile, err)
				}
				for k, v := range outputs {
					_, ok := with[k]
					if !ok { // CLI --with takes priority
						with[k] = v
					}
				}
			}

			evt := schema.Event{
				Name:   event,
				Inputs: with,
			}
			switch {
			case strings.HasPrefix(ref, "refs/tags/"):
				evt.Tag = strings.TrimPrefix(ref, "refs/tags/")
			case strings.HasPrefix(ref, "refs/heads/"):
				evt.Branch = strings.TrimPrefix(ref, "refs/heads/")
			default:
				evt.Branch = ref
			}

			opts := rehearse.RuntimeOptions{
				Dry:          dry,
				Env:          os.Environ(),
				MatrixFilter: matrixFilter,
				MaxParallel:  maxParallel,
			}

			_, err = rehearse.Run(ctx, svc, wf, evt, args, resolved, opts)
			if err != nil {
				return err
			}

			if gc {
				return store.GC()
			}

			return nil
		},
	}

	root.Flags().StringToStringVarP(&w, "with", "w", nil, "Pass key=value inputs to a workflow_dispatch run")
	root.Flags().StringVar(&withFile, "with-file", "", "Extra text file to parse as key=value inputs")
	_ = root.MarkFlagFilename("with-file", "txt")
	root.Flags().StringToStringVarP(&matrixFilter, "matrix", "m", nil, "Only run matrix combinations matching key=value pairs")
	root.Flags().StringVarP(&level, "log-level", "l", "info", "Set log level")
	_ = root.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{log.DebugLevel.String(), log.InfoLevel.String(), log.WarnLevel.String(), log.ErrorLevel.String(), log.FatalLevel.String()}, cobra.ShellCompDirectiveNoFileComp
	})
	root.Flags().BoolVarP(&ver, "version", "V", false, "Print version number and exit")
	root.Flags().BoolVar(&list, "list", false, "Print list of available jobs and exit")
	root.Flags().BoolVar(&explain, "explain", false, "Print explanation of the workflow/job(s) and exit")
	root.Flags().StringVarP(&from, "from", "f", "file:"+uses.DefaultFileName, "Read location as workflow definition")
	root.Flags().StringVarP(&event, "event", "e", schema.EventWorkflowDispatch, fmt.Sprintf(`Event to simulate ("%s")`, strings.Join(schema.AvailableEvents(), `", "`)))
	_ = root.RegisterFlagCompletionFunc("event", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return schema.AvailableEvents(), cobra.ShellCompDirectiveNoFileComp
	})
	root.Flags().StringVar(&ref, "ref", "", "Branch or tag the simulated event refers to (e.g. main or refs/tags/v1.0.0)")
	root.Flags().DurationVarP(&timeout, "timeout", "t", time.Hour, "Maximum time allowed for execution")
	root.Flags().BoolVar(&dry, "dry-run", false, "Don't actually run anything; just print")
	root.Flags().IntVar(&maxParallel, "max-parallel", 0, "Cap concurrent jobs and matrix combinations, 0 uses the number of CPUs")
	root.Flags().StringVarP(&dir, "directory", "C", "", "Change to directory before doing anything")
	_ = root.MarkFlagDirname("directory")
	root.Flags().StringVarP(&configPath, "config", "", "${HOME}/.rehearse/config.yaml", "Path to rehearse config file") // mirrors config.DefaultDirectory
	_ = root.MarkFlagFilename("config", "yaml", "yml")
	root.Flags().VarP(&policy, "fetch-policy", "p", fmt.Sprintf(`Set fetch policy ("%s")`, strings.Join(uses.AvailablePolicies(), `", "`)))
	_ = root.RegisterFlagCompletionFunc("fetch-policy", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return uses.AvailablePolicies(), cobra.ShellCompDirectiveNoFileComp
	})
	root.Flags().StringVarP(&s, "store", "s", "${HOME}/.rehearse/store", "Set storage directory")
	_ = root.MarkFlagDirname("store")
	root.Flags().BoolVar(&gc, "gc", false, "Perform garbage collection on the store")
	root.Flags().BoolVar(&fetchAll, "fetch-all", false, "Fetch all referenced workflows")

	return root
}

// Main executes the root command for the rehearse CLI.
//
// It returns 0 on success, 1 on failure and logs any errors.
func Main() int {
	cli := NewRootCmd()

	ctx := context.Background()

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGTERM)
	defer cancel()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: false,
	})

	logger.SetStyles(DefaultStyles())

	ctx = log.WithContext(ctx, logger)
	cmd, err := cli.ExecuteContextC(ctx)
	if err != nil {
		logger.Print("")

		if errors.Is(cmd.Context().Err(), context.DeadlineExceeded) {
			logger.Error("run timed out")
		}

		var tErr *rehearse.TraceError
		if errors.As(err, &tErr) && len(tErr.Trace) > 0 {
			trace := tErr.Trace
			slices.Reverse(trace)
			if len(trace) == 1 {
				logger.Error(tErr)
				logger.Error(trace[0])
			} else {
				logger.Error(tErr, "traceback (most recent call first)", strings.Join(trace, "\n"))
			}
		} else {
			logger.Error(err)
		}
	}
	return ParseExitCode(err)
}

// ParseExitCode calculates the exit code from a given error
//
// 0 - the error was nil
// 1 - there was some error
// n - the underlying error from an exec.Command
func ParseExitCode(err error) int {
	if err == nil {
		return 0
	}

	var eErr *exec.ExitError
	if errors.As(err, &eErr) {
		if status, ok := eErr.Sys().(syscall.WaitStatus); ok {
			if status.Exited() {
				return status.ExitStatus()
			}
			if status.Signaled() {
				if status.Signal() == syscall.SIGINT {
					return 130
				}
			}
		}
	}
	return 1
}
