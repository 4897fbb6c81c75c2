package watcher

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"twee-kit/compiler"
	"twee-kit/parser"
)

// Tipi di evento emessi dal watcher
const (
	EventCreated         = "created"
	EventModified        = "modified"
	EventDeleted         = "deleted"
	EventRenamed         = "renamed"
	EventValidationError = "validation_error"
	EventCompileError    = "compile_error"
	EventCompileSuccess  = "compile_success"
)

// FileWatcher monitora i sorgenti Twee e li ricompila quando cambiano
type FileWatcher struct {
	watcher      *fsnotify.Watcher
	compiler     *compiler.Compiler
	compileOpts  *compiler.CompileOptions
	debounceTime time.Duration
	autoCompile  bool
	onEvent      func(WatchEvent)
	logger       *zap.Logger

	eventChan chan WatchEvent
	stopChan  chan struct{}

	mu           sync.Mutex
	watchedPaths []string
	debounceMap  map[string]*time.Timer
	isRunning    bool
}

// WatchEvent rappresenta un evento del watcher
type WatchEvent struct {
	Type      string    `json:"type"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message,omitempty"`
}

// WatcherConfig configurazione per il watcher
type WatcherConfig struct {
	Paths        []string                 // path da monitorare
	Compiler     *compiler.Compiler       // compilatore da usare
	CompileOpts  *compiler.CompileOptions // opzioni compilazione
	DebounceTime time.Duration            // default 500ms
	OnEvent      func(WatchEvent)         // callback per eventi
	AutoCompile  bool                     // ricompila dopo create/modify
	Logger       *zap.Logger
}

// NewFileWatcher crea un nuovo file watcher
func NewFileWatcher(config WatcherConfig) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("errore creazione watcher: %w", err)
	}

	if config.DebounceTime == 0 {
		config.DebounceTime = 500 * time.Millisecond
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	fw := &FileWatcher{
		watcher:      w,
		compiler:     config.Compiler,
		compileOpts:  config.CompileOpts,
		debounceTime: config.DebounceTime,
		autoCompile:  config.AutoCompile,
		onEvent:      config.OnEvent,
		logger:       config.Logger.Named("watcher"),
		eventChan:    make(chan WatchEvent, 100),
		stopChan:     make(chan struct{}),
		debounceMap:  make(map[string]*time.Timer),
	}

	for _, path := range config.Paths {
		if err := fw.AddPath(path); err != nil {
			w.Close()
			return nil, err
		}
	}

	return fw, nil
}

// IsSource indica se il file va seguito dal watcher
func IsSource(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".twee", ".tw":
		return true
	}
	return false
}

func eventType(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return EventCreated
	case op.Has(fsnotify.Write):
		return EventModified
	case op.Has(fsnotify.Remove):
		return EventDeleted
	case op.Has(fsnotify.Rename):
		return EventRenamed
	}
	return ""
}

// Start avvia il file watcher
func (fw *FileWatcher) Start() error {
	fw.mu.Lock()
	if fw.isRunning {
		fw.mu.Unlock()
		return fmt.Errorf("watcher già in esecuzione")
	}
	fw.isRunning = true
	fw.mu.Unlock()

	fw.logger.Info("file watcher avviato", zap.Strings("paths", fw.Paths()))
	go fw.loop()
	return nil
}

func (fw *FileWatcher) loop() {
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !IsSource(event.Name) {
				continue
			}
			kind := eventType(event.Op)
			if kind == "" {
				continue
			}

			fw.logger.Debug("evento file", zap.String("type", kind), zap.String("file", filepath.Base(event.Name)))
			fw.emit(WatchEvent{Type: kind, Path: event.Name, Timestamp: time.Now()})

			if fw.autoCompile && (kind == EventModified || kind == EventCreated) {
				fw.schedule(event.Name)
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Error("errore watcher", zap.Error(err))

		case <-fw.stopChan:
			fw.logger.Info("file watcher fermato")
			return
		}
	}
}

// schedule ricompila il file dopo debounceTime senza nuovi eventi
func (fw *FileWatcher) schedule(path string) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if timer, exists := fw.debounceMap[path]; exists {
		timer.Stop()
	}
	fw.debounceMap[path] = time.AfterFunc(fw.debounceTime, func() {
		fw.mu.Lock()
		delete(fw.debounceMap, path)
		fw.mu.Unlock()
		fw.Recompile(path)
	})
}

// emit non blocca mai: se il canale è pieno l'evento va solo alla callback
func (fw *FileWatcher) emit(ev WatchEvent) {
	if fw.onEvent != nil {
		fw.onEvent(ev)
	}
	select {
	case fw.eventChan <- ev:
	default:
		fw.logger.Warn("canale eventi pieno, evento scartato", zap.String("type", ev.Type))
	}
}

// Stop ferma il file watcher
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if !fw.isRunning {
		fw.mu.Unlock()
		return fmt.Errorf("watcher non in esecuzione")
	}
	fw.isRunning = false
	for path, timer := range fw.debounceMap {
		timer.Stop()
		delete(fw.debounceMap, path)
	}
	fw.mu.Unlock()

	close(fw.stopChan)
	if err := fw.watcher.Close(); err != nil {
		return fmt.Errorf("errore chiusura watcher: %w", err)
	}
	return nil
}

// Events restituisce il canale degli eventi
func (fw *FileWatcher) Events() <-chan WatchEvent {
	return fw.eventChan
}

// IsRunning verifica se il watcher è attivo
func (fw *FileWatcher) IsRunning() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.isRunning
}

// Paths restituisce i path monitorati
func (fw *FileWatcher) Paths() []string {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return append([]string(nil), fw.watchedPaths...)
}

// AddPath aggiunge un path da monitorare
func (fw *FileWatcher) AddPath(path string) error {
	if err := fw.watcher.Add(path); err != nil {
		return fmt.Errorf("errore aggiunta path %s: %w", path, err)
	}
	fw.mu.Lock()
	fw.watchedPaths = append(fw.watchedPaths, path)
	fw.mu.Unlock()
	fw.logger.Info("watching", zap.String("path", path))
	return nil
}

// RemovePath rimuove un path dal monitoraggio
func (fw *FileWatcher) RemovePath(path string) error {
	if err := fw.watcher.Remove(path); err != nil {
		return fmt.Errorf("errore rimozione path: %w", err)
	}

	fw.mu.Lock()
	for i, p := range fw.watchedPaths {
		if p == path {
			fw.watchedPaths = append(fw.watchedPaths[:i], fw.watchedPaths[i+1:]...)
			break
		}
	}
	fw.mu.Unlock()

	fw.logger.Info("stopped watching", zap.String("path", path))
	return nil
}

// Recompile valida e ricompila un file, emettendo l'esito come evento
func (fw *FileWatcher) Recompile(filePath string) {
	if fw.compiler == nil {
		return
	}
	name := filepath.Base(filePath)
	fw.logger.Info("ricompilazione", zap.String("file", name))

	validation := parser.NewTweeParser(filePath).Validate()
	if !validation.Valid {
		msgs := make([]string, 0, len(validation.Errors))
		for _, issue := range validation.Errors {
			msgs = append(msgs, issue.Message)
		}
		fw.logger.Error("validazione fallita", zap.String("file", name), zap.Strings("errors", msgs))
		fw.emit(WatchEvent{
			Type:      EventValidationError,
			Path:      filePath,
			Timestamp: time.Now(),
			Message:   strings.Join(msgs, "; "),
		})
		return
	}
	for _, warn := range validation.Warnings {
		fw.logger.Warn(warn.Message, zap.String("file", name), zap.String("passage", warn.Passage))
	}

	opts := compiler.CompileOptions{}
	if fw.compileOpts != nil {
		opts = *fw.compileOpts
	}

	start := time.Now()
	result, err := fw.compiler.Compile(filePath, &opts)
	elapsed := time.Since(start)

	if err != nil {
		fw.logger.Error("compilazione fallita", zap.String("file", name), zap.Duration("elapsed", elapsed), zap.Error(err))
		fw.emit(WatchEvent{
			Type:      EventCompileError,
			Path:      filePath,
			Timestamp: time.Now(),
			Message:   err.Error(),
		})
		return
	}

	fw.logger.Info("compilato con successo",
		zap.String("file", name),
		zap.String("output", result.OutputFile),
		zap.Duration("elapsed", elapsed),
		zap.Int("warnings", len(result.Warnings)))
	fw.emit(WatchEvent{
		Type:      EventCompileSuccess,
		Path:      filePath,
		Timestamp: time.Now(),
		Message:   result.OutputFile,
	})
}
