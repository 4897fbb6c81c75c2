package test

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"twee-kit/compiler"
	"twee-kit/parser"
	"twee-kit/story"
	"twee-kit/watcher"
)

// TestRunner esegue parsing e compilazione su una cartella di sorgenti Twee
type TestRunner struct {
	baseDir  string
	compiler *compiler.Compiler
	target   compiler.Target
	out      io.Writer
	logger   *zap.Logger
}

// ParsedOutput rappresenta l'output completo del parsing
type ParsedOutput struct {
	Filename     string          `json:"filename"`
	ParsedAt     string          `json:"parsed_at"`
	Success      bool            `json:"success"`
	Error        string          `json:"error,omitempty"`
	PassageCount int             `json:"passage_count"`
	Warnings     []string        `json:"warnings,omitempty"`
	Story        json.RawMessage `json:"story,omitempty"`
}

// CompiledOutput rappresenta l'output della compilazione
type CompiledOutput struct {
	Filename   string   `json:"filename"`
	CompiledAt string   `json:"compiled_at"`
	Success    bool     `json:"success"`
	Error      string   `json:"error,omitempty"`
	OutputFile string   `json:"output_file,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

// TestSummary riassunto dei test
type TestSummary struct {
	Format         string `json:"format"`
	TotalFiles     int    `json:"total_files"`
	ParseSuccess   int    `json:"parse_success"`
	ParseFailed    int    `json:"parse_failed"`
	CompileSuccess int    `json:"compile_success"`
	CompileFailed  int    `json:"compile_failed"`
	Duration       string `json:"duration"`
}

// NewTestRunner crea un nuovo test runner. Il riepilogo viene scritto su out.
func NewTestRunner(baseDir string, comp *compiler.Compiler, target compiler.Target, out io.Writer, logger *zap.Logger) *TestRunner {
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TestRunner{
		baseDir:  baseDir,
		compiler: comp,
		target:   target,
		out:      out,
		logger:   logger.Named("runner"),
	}
}

// GetAvailableFormats restituisce le sottocartelle di test disponibili
func (tr *TestRunner) GetAvailableFormats() ([]string, error) {
	entries, err := os.ReadDir(tr.baseDir)
	if err != nil {
		return nil, fmt.Errorf("impossibile leggere cartella test: %w", err)
	}

	var formats []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			formats = append(formats, entry.Name())
		}
	}
	return formats, nil
}

// RunTests elabora tutti i sorgenti di baseDir/format. Se il nome della
// cartella corrisponde a un formato registrato, viene usato per compilare.
// L'errore restituito raccoglie solo i problemi di scrittura dei report.
func (tr *TestRunner) RunTests(format string) (*TestSummary, error) {
	startTime := time.Now()
	formatDir := filepath.Join(tr.baseDir, format)

	if _, err := os.Stat(formatDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("cartella %s non trovata", formatDir)
	}

	files, err := findSources(formatDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("nessun file .twee trovato in %s", formatDir)
	}

	opts := compiler.CompileOptions{Target: tr.target}
	if tr.compiler.Registry().Has(format) {
		opts.Format = format
	}

	summary := &TestSummary{Format: format, TotalFiles: len(files)}

	fmt.Fprintf(tr.out, "\nTrovati %d file in %s\n", len(files), formatDir)
	fmt.Fprintln(tr.out, strings.Repeat("─", 50))

	var errs error
	for _, file := range files {
		fmt.Fprintf(tr.out, "\n%s\n", filepath.Base(file))

		parsed := parseFile(file)
		if parsed.Success {
			summary.ParseSuccess++
			fmt.Fprintf(tr.out, "   parsing OK - %d passaggi\n", parsed.PassageCount)
		} else {
			summary.ParseFailed++
			fmt.Fprintf(tr.out, "   parsing FALLITO: %s\n", parsed.Error)
		}
		errs = multierr.Append(errs, saveJSON(outputPath(file, "_parsed.json"), parsed))

		fileOpts := opts
		fileOpts.Output = outputPath(file, "_output"+opts.Target.Extension())
		if abs, err := filepath.Abs(fileOpts.Output); err == nil {
			fileOpts.Output = abs
		}
		compiled := tr.compileFile(file, &fileOpts)
		if compiled.Success {
			summary.CompileSuccess++
			fmt.Fprintf(tr.out, "   compilazione OK → %s\n", filepath.Base(compiled.OutputFile))
		} else {
			summary.CompileFailed++
			fmt.Fprintf(tr.out, "   compilazione FALLITA: %s\n", compiled.Error)
		}
		errs = multierr.Append(errs, saveJSON(outputPath(file, "_compiled.json"), compiled))
	}

	summary.Duration = time.Since(startTime).String()
	tr.printSummary(summary)

	tr.logger.Info("batch completato",
		zap.String("format", format),
		zap.Int("files", summary.TotalFiles),
		zap.Int("parse_failed", summary.ParseFailed),
		zap.Int("compile_failed", summary.CompileFailed))
	return summary, errs
}

func (tr *TestRunner) printSummary(summary *TestSummary) {
	fmt.Fprintln(tr.out)
	fmt.Fprintln(tr.out, strings.Repeat("═", 50))
	fmt.Fprintf(tr.out, "RIASSUNTO TEST - %s\n", strings.ToUpper(summary.Format))
	fmt.Fprintln(tr.out, strings.Repeat("═", 50))
	fmt.Fprintf(tr.out, "   File testati:     %d\n", summary.TotalFiles)
	fmt.Fprintf(tr.out, "   Parsing OK:       %d/%d\n", summary.ParseSuccess, summary.TotalFiles)
	fmt.Fprintf(tr.out, "   Compilazione OK:  %d/%d\n", summary.CompileSuccess, summary.TotalFiles)
	fmt.Fprintf(tr.out, "   Durata:           %s\n", summary.Duration)
	fmt.Fprintln(tr.out, strings.Repeat("═", 50))
}

// findSources trova i sorgenti Twee nella cartella, ricorsivamente
func findSources(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		// gli output di esecuzioni precedenti non sono sorgenti
		if !d.IsDir() && watcher.IsSource(d.Name()) && !strings.Contains(d.Name(), "_output.") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// parseFile interpreta il file e ne salva la forma Twine 2 JSON
func parseFile(filePath string) *ParsedOutput {
	result := &ParsedOutput{
		Filename: filepath.Base(filePath),
		ParsedAt: time.Now().Format(time.RFC3339),
	}

	flat, diags, err := parser.NewTweeParser(filePath).Parse()
	if err != nil {
		result.Error = err.Error()
		return result
	}

	s, more, err := story.FromPassages(flat.Passages())
	diags = append(diags, more...)
	result.Warnings = diags.Messages()
	if err != nil {
		result.Error = err.Error()
		return result
	}

	doc, err := s.ToJSON()
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Success = true
	result.PassageCount = s.Len()
	result.Story = json.RawMessage(doc)
	return result
}

// compileFile compila un singolo file
func (tr *TestRunner) compileFile(filePath string, opts *compiler.CompileOptions) *CompiledOutput {
	result := &CompiledOutput{
		Filename:   filepath.Base(filePath),
		CompiledAt: time.Now().Format(time.RFC3339),
	}

	compiled, err := tr.compiler.Compile(filePath, opts)
	if err != nil {
		result.Error = err.Error()
		if compiled != nil {
			result.Warnings = compiled.Warnings
		}
		return result
	}

	result.Success = compiled.Success
	result.OutputFile = compiled.OutputFile
	result.Warnings = compiled.Warnings
	return result
}

// outputPath genera il path di un file di output accanto al sorgente
func outputPath(inputPath, suffix string) string {
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	return filepath.Join(filepath.Dir(inputPath), base+suffix)
}

// saveJSON salva un oggetto come JSON indentato
func saveJSON(path string, data any) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
