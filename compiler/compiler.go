package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"twee-kit/formats"
	"twee-kit/ifid"
	"twee-kit/story"
	"twee-kit/twine1"
	"twee-kit/twine2"
)

// Version è la versione riportata da GetVersion
const Version = "0.2.0"

// Target è la rappresentazione prodotta dalla compilazione
type Target string

const (
	TargetHTML    Target = "html"    // storia giocabile, richiede un formato
	TargetTwine2  Target = "twine2"  // solo <tw-storydata>
	TargetTwine1  Target = "twine1"  // storeArea o header Twine 1
	TargetTwee    Target = "twee"
	TargetJSON    Target = "json"
	TargetArchive Target = "archive"
)

// Targets elenca i target supportati
var Targets = []Target{TargetHTML, TargetTwine2, TargetTwine1, TargetTwee, TargetJSON, TargetArchive}

// ParseTarget converte una stringa; vuota significa html
func ParseTarget(s string) (Target, error) {
	if s == "" {
		return TargetHTML, nil
	}
	for _, t := range Targets {
		if strings.EqualFold(string(t), s) {
			return t, nil
		}
	}
	return "", fmt.Errorf("target '%s' non supportato", s)
}

// Extension restituisce l'estensione del file di output
func (t Target) Extension() string {
	switch t {
	case TargetTwee:
		return ".twee"
	case TargetJSON:
		return ".json"
	}
	return ".html"
}

// CompileOptions opzioni per la compilazione
type CompileOptions struct {
	Format    string // formato di storia (es: "harlowe-3"); vuoto usa quello della storia
	Target    Target // default html
	Output    string // file di output; vuoto usa lo slug del nome della storia
	StartNode string // passaggio iniziale
	Header    string // header.html per il target twine1
	Engine    string // engine.js per il target twine1
}

// CompileResult risultato della compilazione
type CompileResult struct {
	Success      bool     `json:"success"`
	Output       string   `json:"output,omitempty"`
	ErrorMessage string   `json:"error,omitempty"`
	Warnings     []string `json:"warnings"`
	OutputFile   string   `json:"output_file,omitempty"`
}

// Compiler converte file di storia tra i vari formati
type Compiler struct {
	registry *formats.Registry
	workDir  string
	logger   *zap.Logger
}

// New crea un compilatore. Con registry nil usa il registro globale.
func New(registry *formats.Registry, workDir string, logger *zap.Logger) (*Compiler, error) {
	if registry == nil {
		registry = formats.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// Se workDir non esiste, crealo
	if workDir != "" {
		if err := os.MkdirAll(workDir, 0755); err != nil {
			return nil, fmt.Errorf("impossibile creare workDir: %w", err)
		}
	}

	return &Compiler{registry: registry, workDir: workDir, logger: logger}, nil
}

// Registry restituisce il registro dei formati in uso
func (c *Compiler) Registry() *formats.Registry {
	return c.registry
}

// Compile legge inputFile, lo converte e scrive il risultato su disco
func (c *Compiler) Compile(inputFile string, options *CompileOptions) (*CompileResult, error) {
	result := &CompileResult{Warnings: []string{}}

	if options == nil {
		options = &CompileOptions{}
	}

	if err := c.validateBeforeCompile(inputFile, options); err != nil {
		result.ErrorMessage = err.Error()
		return result, err
	}

	data, err := os.ReadFile(inputFile)
	if err != nil {
		result.ErrorMessage = err.Error()
		return result, fmt.Errorf("errore lettura file: %w", err)
	}

	stories, compiled, err := c.compileData(inputFile, data, options, result)
	if err != nil {
		return result, err
	}

	outputPath := options.Output
	if outputPath == "" {
		outputPath = OutputName(stories[0], options.Target)
	}
	if !filepath.IsAbs(outputPath) && c.workDir != "" {
		outputPath = filepath.Join(c.workDir, outputPath)
	}

	if err := os.WriteFile(outputPath, []byte(compiled), 0644); err != nil {
		result.ErrorMessage = err.Error()
		return result, fmt.Errorf("errore scrittura output: %w", err)
	}

	result.Success = true
	result.OutputFile = outputPath
	c.logger.Info("compilazione completata",
		zap.String("input", inputFile),
		zap.String("output", outputPath),
		zap.String("target", string(options.Target)),
		zap.Int("warnings", len(result.Warnings)))
	return result, nil
}

// CompileSource converte dati già in memoria; il risultato va in Output
func (c *Compiler) CompileSource(filename string, data []byte, options *CompileOptions) (*CompileResult, error) {
	result := &CompileResult{Warnings: []string{}}
	if options == nil {
		options = &CompileOptions{}
	}

	_, compiled, err := c.compileData(filename, data, options, result)
	if err != nil {
		return result, err
	}
	result.Success = true
	result.Output = compiled
	return result, nil
}

func (c *Compiler) compileData(filename string, data []byte, options *CompileOptions, result *CompileResult) ([]*story.Story, string, error) {
	fail := func(err error) ([]*story.Story, string, error) {
		result.ErrorMessage = err.Error()
		return nil, "", err
	}

	target, err := ParseTarget(string(options.Target))
	if err != nil {
		return fail(err)
	}
	options.Target = target

	kind, err := DetectKind(filename, data)
	if err != nil {
		return fail(err)
	}

	stories, diags, err := Load(kind, data)
	c.collect(filename, diags, result)
	if err != nil {
		return fail(fmt.Errorf("parsing fallito: %w", err))
	}
	if len(stories) == 0 {
		return fail(story.ErrNoPassages)
	}

	if options.StartNode != "" {
		for _, s := range stories {
			if _, err := s.GetPassageByName(options.StartNode); err != nil {
				return fail(fmt.Errorf("passaggio iniziale non trovato: %w", err))
			}
			s.Start = options.StartNode
		}
	}

	out, diags, err := c.Render(stories, options)
	c.collect(filename, diags, result)
	if err != nil {
		return fail(err)
	}
	return stories, out, nil
}

// Render produce il target richiesto. I target a storia singola usano
// la prima storia ricevuta.
func (c *Compiler) Render(stories []*story.Story, options *CompileOptions) (string, story.Diagnostics, error) {
	if len(stories) == 0 {
		return "", nil, story.ErrNoPassages
	}
	s := stories[0]

	var diags story.Diagnostics
	if options.Target != TargetArchive && len(stories) > 1 {
		c.logger.Warn("archivio con più storie, uso la prima", zap.Int("stories", len(stories)))
	}

	switch options.Target {
	case TargetHTML, "":
		f, err := c.resolveFormat(s, options.Format)
		if err != nil {
			return "", diags, err
		}
		out, d, err := twine2.Compile(s, f)
		diags = append(diags, d...)
		if errors.Is(err, story.ErrInvalidIFID) {
			return "", diags, fmt.Errorf("%w IFID suggerito: %s", err, ifid.Generate())
		}
		return out, diags, err

	case TargetTwine2:
		return s.ToTwine2HTML()

	case TargetTwine1:
		if options.Header == "" {
			out, err := s.ToTwine1HTML()
			return out, diags, err
		}
		header, err := os.ReadFile(options.Header)
		if err != nil {
			return "", diags, fmt.Errorf("errore lettura header: %w", err)
		}
		var engine []byte
		if options.Engine != "" {
			if engine, err = os.ReadFile(options.Engine); err != nil {
				return "", diags, fmt.Errorf("errore lettura engine: %w", err)
			}
		}
		out, err := twine1.Compile(s, string(engine), string(header))
		return out, diags, err

	case TargetTwee:
		return s.ToTwee()

	case TargetJSON:
		out, err := s.ToJSON()
		return out, diags, err

	case TargetArchive:
		archive := &twine2.Archive{Stories: stories}
		return archive.ToHTML()
	}

	return "", diags, fmt.Errorf("target '%s' non supportato", options.Target)
}

// resolveFormat cerca il formato richiesto o quello dichiarato dalla storia
func (c *Compiler) resolveFormat(s *story.Story, requested string) (*formats.StoryFormat, error) {
	id := requested
	if id == "" {
		if s.Format == "" {
			return nil, fmt.Errorf("nessun formato di storia indicato")
		}
		id = s.Format
		if s.FormatVersion != "" {
			id += "-" + s.FormatVersion
		}
	}

	f, err := c.registry.Lookup(id)
	if err != nil && requested == "" && s.FormatVersion != "" {
		// versione esatta assente: prova con la stessa major
		major := strings.SplitN(s.FormatVersion, ".", 2)[0]
		f, err = c.registry.Lookup(s.Format + "-" + major)
	}
	if err != nil {
		return nil, fmt.Errorf("%w Formati disponibili: %v", err, c.ListFormats())
	}
	return f, nil
}

func (c *Compiler) collect(filename string, diags story.Diagnostics, result *CompileResult) {
	for _, d := range diags {
		c.logger.Warn(d.Message, zap.String("file", filename), zap.String("code", string(d.Code)))
		result.Warnings = append(result.Warnings, d.String())
	}
}

// GetVersion ritorna la versione del compilatore
func (c *Compiler) GetVersion() string {
	return "twee-kit " + Version
}

// ListFormats elenca gli identificativi nome-versione dei formati registrati
func (c *Compiler) ListFormats() []string {
	available := c.registry.Available()
	out := make([]string, 0, len(available))
	for _, f := range available {
		out = append(out, f.ID())
	}
	return out
}

// OutputName costruisce il nome del file di output dal nome della storia
func OutputName(s *story.Story, target Target) string {
	base := slug.Make(s.Name)
	if base == "" {
		base = "story"
	}
	return base + target.Extension()
}

// validateBeforeCompile valida file e opzioni prima della compilazione
func (c *Compiler) validateBeforeCompile(inputFile string, options *CompileOptions) error {
	info, err := os.Stat(inputFile)
	if os.IsNotExist(err) {
		return fmt.Errorf("file input non trovato: %s", inputFile)
	}
	if err != nil {
		return fmt.Errorf("impossibile leggere info file: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("file input vuoto: %s", inputFile)
	}

	if options.Format != "" && !c.registry.Has(options.Format) {
		return fmt.Errorf("formato '%s' non riconosciuto. Formati disponibili: %v", options.Format, c.ListFormats())
	}
	return nil
}
