package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"twee-kit/compiler"
	"twee-kit/config"
	"twee-kit/formats"
)

// app contiene lo stato condiviso dai comandi, costruito prima di ognuno
type app struct {
	configPath string
	formatDirs []string
	verbose    bool

	cfg      *config.Config
	logger   *zap.Logger
	registry *formats.Registry
	compiler *compiler.Compiler
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if len(a.formatDirs) > 0 {
		cfg.Formats.Dirs = a.formatDirs
	}
	if a.verbose {
		cfg.Logging.Console.Level = "debug"
	}
	a.cfg = cfg

	if a.logger, err = cfg.Logging.Prepare(); err != nil {
		return fmt.Errorf("impossibile preparare il logger: %w", err)
	}

	a.registry = formats.NewRegistry()
	for _, dir := range cfg.Formats.Dirs {
		if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
			a.logger.Debug("cartella formati assente", zap.String("dir", dir))
			continue
		}
		n, err := a.registry.LoadDir(dir)
		for _, e := range multierr.Errors(err) {
			a.logger.Warn("formato ignorato", zap.Error(e))
		}
		a.logger.Debug("formati caricati", zap.String("dir", dir), zap.Int("count", n))
	}

	a.compiler, err = compiler.New(a.registry, cfg.Compile.WorkDir, a.logger)
	return err
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "twee-kit",
		Short:         "Conversione tra Twee, Twine 1 e Twine 2",
		Long:          "Legge e scrive Twee 3, Twine 1 HTML, Twine 2 HTML/JSON/archivio e compila storie con i formati Twine 2.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "file di configurazione YAML")
	root.PersistentFlags().StringSliceVar(&a.formatDirs, "formats", nil, "cartelle con i formati di storia (*/format.js)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log di debug")

	root.AddCommand(
		newConvertCmd(a),
		newCompileCmd(a),
		newServeCmd(a),
		newWatchCmd(a),
		newBatchCmd(a),
		newIFIDCmd(),
		newFormatsCmd(a),
		newVersionCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
