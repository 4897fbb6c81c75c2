package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"twee-kit/api"
	"twee-kit/compiler"
	"twee-kit/ifid"
	"twee-kit/story"
	"twee-kit/test"
	"twee-kit/watcher"
)

// skipSetup evita configurazione e cartelle di lavoro per i comandi puri
func skipSetup(*cobra.Command, []string) error { return nil }

func newConvertCmd(a *app) *cobra.Command {
	var output, target, format, start string

	cmd := &cobra.Command{
		Use:   "convert <input>",
		Short: "Converte una storia e scrive il risultato su stdout o su file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("errore apertura file: %w", err)
			}
			if target == "" {
				target = a.cfg.Compile.Target
			}
			if format == "" {
				format = a.cfg.Compile.Format
			}

			result, err := a.compiler.CompileSource(args[0], data, &compiler.CompileOptions{
				Format:    format,
				Target:    compiler.Target(target),
				StartNode: start,
			})
			if err != nil {
				return err
			}
			for _, w := range result.Warnings {
				cmd.PrintErrln(w)
			}

			if output == "" || output == "-" {
				fmt.Fprint(cmd.OutOrStdout(), result.Output)
				return nil
			}
			return os.WriteFile(output, []byte(result.Output), 0644)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "file di output (default stdout)")
	cmd.Flags().StringVarP(&target, "target", "t", "", "html, twine2, twine1, twee, json, archive")
	cmd.Flags().StringVarP(&format, "format", "f", "", "formato di storia per il target html")
	cmd.Flags().StringVarP(&start, "start", "s", "", "passaggio iniziale")
	return cmd
}

func newCompileCmd(a *app) *cobra.Command {
	opts := compiler.CompileOptions{}
	var target string

	cmd := &cobra.Command{
		Use:   "compile <input>",
		Short: "Compila una storia nella cartella di lavoro",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if target == "" {
				target = a.cfg.Compile.Target
			}
			if opts.Format == "" {
				opts.Format = a.cfg.Compile.Format
			}
			opts.Target = compiler.Target(target)

			result, err := a.compiler.Compile(args[0], &opts)
			if err != nil {
				return err
			}
			for _, w := range result.Warnings {
				cmd.PrintErrln(w)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.OutputFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "file di output")
	cmd.Flags().StringVarP(&target, "target", "t", "", "html, twine2, twine1, twee, json, archive")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "formato di storia (es: harlowe-3)")
	cmd.Flags().StringVarP(&opts.StartNode, "start", "s", "", "passaggio iniziale")
	cmd.Flags().StringVar(&opts.Header, "header", "", "header.html per il target twine1")
	cmd.Flags().StringVar(&opts.Engine, "engine", "", "engine.js per il target twine1")
	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Avvia il server HTTP/WebSocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			server := api.NewServer(api.ServerConfig{
				Port:       a.cfg.Server.Port,
				Compiler:   a.compiler,
				EnableCORS: a.cfg.Server.EnableCORS,
				Debug:      a.cfg.Server.Debug,
				Logger:     a.logger,
			})
			defer server.Shutdown()
			return server.Start()
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "porta di ascolto")
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	var target, format string

	cmd := &cobra.Command{
		Use:   "watch [path...]",
		Short: "Ricompila i sorgenti Twee quando cambiano",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := args
			if len(paths) == 0 {
				paths = a.cfg.Watch.Paths
			}
			if len(paths) == 0 {
				return fmt.Errorf("nessun path da monitorare")
			}
			if target == "" {
				target = a.cfg.Compile.Target
			}
			if format == "" {
				format = a.cfg.Compile.Format
			}

			fw, err := watcher.NewFileWatcher(watcher.WatcherConfig{
				Paths:        paths,
				Compiler:     a.compiler,
				CompileOpts:  &compiler.CompileOptions{Format: format, Target: compiler.Target(target)},
				DebounceTime: a.cfg.Watch.Debounce,
				AutoCompile:  a.cfg.Watch.AutoCompile,
				Logger:       a.logger,
				OnEvent: func(ev watcher.WatchEvent) {
					switch ev.Type {
					case watcher.EventCompileSuccess:
						fmt.Fprintln(cmd.OutOrStdout(), ev.Message)
					case watcher.EventCompileError, watcher.EventValidationError:
						cmd.PrintErrf("%s: %s\n", filepath.Base(ev.Path), ev.Message)
					}
				},
			})
			if err != nil {
				return err
			}
			if err := fw.Start(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()
			return fw.Stop()
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "html, twine2, twine1, twee, json, archive")
	cmd.Flags().StringVarP(&format, "format", "f", "", "formato di storia per il target html")
	return cmd
}

func newBatchCmd(a *app) *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "batch <dir> [subdir...]",
		Short: "Elabora tutte le sottocartelle di sorgenti e salva i report",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if target == "" {
				target = a.cfg.Compile.Target
			}
			runner := test.NewTestRunner(args[0], a.compiler, compiler.Target(target), cmd.OutOrStdout(), a.logger)

			dirs := args[1:]
			if len(dirs) == 0 {
				var err error
				if dirs, err = runner.GetAvailableFormats(); err != nil {
					return err
				}
			}

			var errs error
			for _, dir := range dirs {
				summary, err := runner.RunTests(dir)
				if err != nil {
					errs = multierr.Append(errs, fmt.Errorf("%s: %w", dir, err))
				}
				if summary != nil && (summary.ParseFailed > 0 || summary.CompileFailed > 0) {
					a.logger.Warn("batch con errori", zap.String("dir", dir),
						zap.Int("parse_failed", summary.ParseFailed),
						zap.Int("compile_failed", summary.CompileFailed))
				}
			}
			return errs
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "html, twine2, twine1, twee, json, archive")
	return cmd
}

func newIFIDCmd() *cobra.Command {
	var check string

	cmd := &cobra.Command{
		Use:               "ifid",
		Short:             "Genera un IFID o ne controlla uno esistente",
		Args:              cobra.NoArgs,
		PersistentPreRunE: skipSetup,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("validate") {
				fmt.Fprintln(cmd.OutOrStdout(), ifid.Generate())
				return nil
			}
			if err := story.ValidateIFID(check); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "valid")
			return nil
		},
	}

	cmd.Flags().StringVar(&check, "validate", "", "IFID da controllare")
	return cmd
}

func newFormatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "Elenca i formati di storia caricati",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, f := range a.registry.Available() {
				proofing := ""
				if f.Proofing {
					proofing = " (proofing)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s %s%s\n", f.ID(), f.Name, proofing)
			}
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "version",
		Short:             "Stampa la versione",
		PersistentPreRunE: skipSetup,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "twee-kit version %s\n", compiler.Version)
		},
	}
}
