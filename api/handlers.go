package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"twee-kit/compiler"
	"twee-kit/ifid"
	"twee-kit/parser"
	"twee-kit/story"
	"twee-kit/watcher"
)

// SourceRequest indica la storia da leggere: un file sul server oppure
// il contenuto inline con un nome file usato per riconoscerne il tipo
type SourceRequest struct {
	FilePath string `json:"file_path" binding:"required_without=Source"`
	Source   string `json:"source" binding:"required_without=FilePath"`
	Filename string `json:"filename"`
}

func (r *SourceRequest) read() (string, []byte, error) {
	if r.FilePath != "" {
		data, err := os.ReadFile(r.FilePath)
		if err != nil {
			return "", nil, fmt.Errorf("errore apertura file: %w", err)
		}
		return r.FilePath, data, nil
	}
	return r.Filename, []byte(r.Source), nil
}

func loadStories(req *SourceRequest) ([]*story.Story, story.Diagnostics, error) {
	name, data, err := req.read()
	if err != nil {
		return nil, nil, err
	}
	kind, err := compiler.DetectKind(name, data)
	if err != nil {
		return nil, nil, err
	}
	return compiler.Load(kind, data)
}

// statusFor distingue gli errori dei dati in ingresso da quelli interni
func statusFor(err error) int {
	var se *story.Error
	if errors.As(err, &se) || errors.Is(err, os.ErrNotExist) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// ============================================
// Handlers
// ============================================

// healthCheck verifica lo stato del server
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": compiler.Version,
	})
}

// validateStory valida un file .twee
func (s *Server) validateStory(c *gin.Context) {
	var req SourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.FilePath != "" {
		c.JSON(http.StatusOK, parser.NewTweeParser(req.FilePath).Validate())
		return
	}

	flat, diags, err := parser.Parse(req.Source)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{
			"valid":         false,
			"passage_count": 0,
			"errors":        []parser.ValidationIssue{{Message: err.Error()}},
			"warnings":      []parser.ValidationIssue{},
		})
		return
	}
	c.JSON(http.StatusOK, parser.ValidateStory(flat, diags))
}

// parseStory restituisce la storia come documento Twine 2 JSON
func (s *Server) parseStory(c *gin.Context) {
	var req SourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stories, diags, err := loadStories(&req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"success": false, "error": err.Error(), "warnings": diags.Messages()})
		return
	}

	docs := make([]json.RawMessage, 0, len(stories))
	for _, st := range stories {
		doc, err := st.ToJSON()
		if err != nil {
			c.JSON(statusFor(err), gin.H{"success": false, "error": err.Error()})
			return
		}
		docs = append(docs, json.RawMessage(doc))
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"story":    docs[0],
		"stories":  docs,
		"count":    stories[0].Len(),
		"warnings": diags.Messages(),
	})
}

// ConvertStoryRequest richiesta di conversione in memoria
type ConvertStoryRequest struct {
	SourceRequest
	Target    string `json:"target" binding:"omitempty,oneof=html twine2 twine1 twee json archive"`
	Format    string `json:"format"`
	StartNode string `json:"start_node"`
}

// convertStory converte la storia e restituisce il risultato nella risposta
func (s *Server) convertStory(c *gin.Context) {
	var req ConvertStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	name, data, err := req.read()
	if err != nil {
		c.JSON(statusFor(err), gin.H{"success": false, "error": err.Error()})
		return
	}

	result, err := s.compiler.CompileSource(name, data, &compiler.CompileOptions{
		Format:    req.Format,
		Target:    compiler.Target(req.Target),
		StartNode: req.StartNode,
	})
	if err != nil {
		c.JSON(statusFor(err), result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CompileStoryRequest richiesta di compilazione su file
type CompileStoryRequest struct {
	FilePath  string `json:"file_path" binding:"required"`
	Format    string `json:"format"`
	Target    string `json:"target" binding:"omitempty,oneof=html twine2 twine1 twee json archive"`
	Output    string `json:"output"`
	StartNode string `json:"start_node"`
}

// compileStory compila un file e scrive l'output nella workDir
func (s *Server) compileStory(c *gin.Context) {
	var req CompileStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.compiler.Compile(req.FilePath, &compiler.CompileOptions{
		Format:    req.Format,
		Target:    compiler.Target(req.Target),
		Output:    req.Output,
		StartNode: req.StartNode,
	})
	if err != nil {
		c.JSON(statusFor(err), gin.H{
			"success":  false,
			"error":    err.Error(),
			"warnings": result.Warnings,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     result.Success,
		"output_file": result.OutputFile,
		"warnings":    result.Warnings,
	})
}

// getPassages restituisce i passaggi della storia in ordine
func (s *Server) getPassages(c *gin.Context) {
	req := SourceRequest{FilePath: c.Query("file")}
	if req.FilePath == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "parametro file mancante"})
		return
	}

	stories, _, err := loadStories(&req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"passages": stories[0].Passages(),
	})
}

// getPassage restituisce un singolo passaggio per nome
func (s *Server) getPassage(c *gin.Context) {
	req := SourceRequest{FilePath: c.Query("file")}
	name := c.Query("name")
	if req.FilePath == "" || name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "parametri file e name obbligatori"})
		return
	}

	stories, _, err := loadStories(&req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	p, err := stories[0].GetPassageByName(name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"passage": p,
	})
}

// StartWatcherRequest richiesta avvio watcher
type StartWatcherRequest struct {
	Paths       []string `json:"paths" binding:"required,min=1"`
	Format      string   `json:"format"`
	Target      string   `json:"target" binding:"omitempty,oneof=html twine2 twine1 twee json archive"`
	Output      string   `json:"output"`
	AutoCompile bool     `json:"auto_compile"`
}

// startWatcher avvia il file watcher
func (s *Server) startWatcher(c *gin.Context) {
	s.watcherMutex.Lock()
	defer s.watcherMutex.Unlock()

	if s.watcher != nil && s.watcher.IsRunning() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Watcher già in esecuzione"})
		return
	}

	var req StartWatcherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fw, err := watcher.NewFileWatcher(watcher.WatcherConfig{
		Paths:    req.Paths,
		Compiler: s.compiler,
		CompileOpts: &compiler.CompileOptions{
			Format: req.Format,
			Target: compiler.Target(req.Target),
			Output: req.Output,
		},
		AutoCompile: req.AutoCompile,
		OnEvent:     s.broadcast,
		Logger:      s.logger,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := fw.Start(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.watcher = fw

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Watcher avviato",
		"paths":   req.Paths,
	})
}

// stopWatcher ferma il file watcher
func (s *Server) stopWatcher(c *gin.Context) {
	s.watcherMutex.Lock()
	defer s.watcherMutex.Unlock()

	if s.watcher == nil || !s.watcher.IsRunning() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Watcher non in esecuzione"})
		return
	}

	if err := s.watcher.Stop(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.watcher = nil

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Watcher fermato",
	})
}

// getWatcherStatus ottiene lo stato del watcher
func (s *Server) getWatcherStatus(c *gin.Context) {
	s.watcherMutex.Lock()
	defer s.watcherMutex.Unlock()

	running := s.watcher != nil && s.watcher.IsRunning()
	paths := []string{}
	if running {
		paths = s.watcher.Paths()
	}

	c.JSON(http.StatusOK, gin.H{
		"running": running,
		"paths":   paths,
	})
}

// getFormats elenca i formati di storia registrati
func (s *Server) getFormats(c *gin.Context) {
	available := s.compiler.Registry().Available()
	list := make([]gin.H, 0, len(available))
	for _, f := range available {
		list = append(list, gin.H{
			"id":       f.ID(),
			"name":     f.Name,
			"version":  f.Version,
			"author":   f.Author,
			"proofing": f.Proofing,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"formats": list,
	})
}

// getVersion restituisce la versione del compilatore
func (s *Server) getVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"version": s.compiler.GetVersion(),
	})
}

// newIFID genera un nuovo IFID
func (s *Server) newIFID(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ifid": ifid.Generate()})
}

// ValidateIFIDRequest richiesta di validazione IFID
type ValidateIFIDRequest struct {
	IFID string `json:"ifid"`
}

// validateIFID controlla il formato di un IFID
func (s *Server) validateIFID(c *gin.Context) {
	var req ValidateIFIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := story.ValidateIFID(req.IFID); err != nil {
		c.JSON(http.StatusOK, gin.H{"ifid": req.IFID, "valid": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ifid": req.IFID, "valid": true})
}

// ============================================
// WebSocket
// ============================================

// handleWebSocket registra il client e lo tiene aperto fino alla disconnessione
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("errore upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	s.wsMutex.Lock()
	s.wsClients[conn] = true
	total := len(s.wsClients)
	s.wsMutex.Unlock()
	s.logger.Info("client WebSocket connesso", zap.Int("total", total))

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.wsMutex.Lock()
			delete(s.wsClients, conn)
			total = len(s.wsClients)
			s.wsMutex.Unlock()
			s.logger.Info("client WebSocket disconnesso", zap.Int("total", total))
			return
		}
	}
}

// broadcast invia un evento del watcher a tutti i client connessi
func (s *Server) broadcast(event watcher.WatchEvent) {
	message := gin.H{
		"type":      event.Type,
		"path":      filepath.Base(event.Path),
		"full_path": event.Path,
		"timestamp": event.Timestamp,
		"message":   event.Message,
	}

	s.wsMutex.Lock()
	defer s.wsMutex.Unlock()
	for client := range s.wsClients {
		if err := client.WriteJSON(message); err != nil {
			s.logger.Warn("errore invio WebSocket", zap.Error(err))
			client.Close()
			delete(s.wsClients, client)
		}
	}
}
