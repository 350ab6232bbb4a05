package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"codename.dev/cnels"
	"codename.dev/cnels/catalog"
	"codename.dev/cnels/internal/config"
	"codename.dev/cnels/stagexml"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	helloCommand = "codename-autocomplete.helloWorld"
	helloMessage = "Hello World from codename-autocomplete!"
)

// Server

type options struct {
	cfg    *config.Config // starting configuration, flags applied
	pinned bool           // cfg came from --config; skip the workspace file
	flags  *globalFlags   // reapplied over workspace configuration
	level  *slog.LevelVar // set from the configured log level, if non-nil
	logger *slog.Logger
}

type server struct {
	t      transport
	opts   options
	logger *slog.Logger

	root       string // workspace root directory, if known
	cfg        *config.Config
	classifier *config.Classifier
	detector   cnels.Detector
	rules      []stagexml.Rule
	docs       *lru.Cache[string, *document]
	warnings   []string // shown once the client is initialized

	// catalog is swapped by the watcher goroutine.
	catalog    atomic.Pointer[catalog.Catalog]
	catalogMu  sync.Mutex // guards catalogGen and stores to catalog
	catalogGen uint64
	catalogDir string
	stopWatch  context.CancelFunc

	shutdown bool
}

type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit %d", e.code) }

func newServer(t transport, opts options) (*server, error) {
	if opts.logger == nil {
		opts.logger = slog.New(slog.DiscardHandler)
	}
	docs, err := lru.New[string, *document](opts.cfg.MaxDocuments)
	if err != nil {
		return nil, err
	}
	s := &server{t: t, opts: opts, logger: opts.logger, docs: docs}
	s.catalog.Store(catalog.Default())
	return s, nil
}

func (s *server) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := s.apply(ctx, s.opts.cfg); err != nil {
		return err
	}
	for {
		data, err := s.t.readMessage()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		var msg request
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("malformed message", "err", err)
			s.sendError(nil, codeParseError, err.Error())
			continue
		}
		if err := s.dispatch(ctx, &msg); err != nil {
			return err
		}
	}
}

func (s *server) dispatch(ctx context.Context, msg *request) error {
	switch msg.Method {
	case "initialize":
		return s.handleInitialize(ctx, msg)
	case "initialized":
		return s.handleInitialized()
	case "shutdown":
		return s.handleShutdown(msg)
	case "exit":
		return s.handleExit()
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "textDocument/completion":
		return s.handleCompletion(msg)
	case "textDocument/hover":
		return s.handleHover(msg)
	case "workspace/executeCommand":
		return s.handleExecuteCommand(msg)
	case "workspace/didChangeConfiguration":
		return s.handleDidChangeConfiguration(ctx, msg)
	case "$/cancelRequest":
		return nil
	default:
		if msg.ID != nil {
			return s.sendError(msg.ID, codeMethodNotFound, fmt.Sprintf("unsupported method %q", msg.Method))
		}
		return nil
	}
}

// apply makes cfg the server's configuration.
func (s *server) apply(ctx context.Context, cfg *config.Config) error {
	classifier, err := cfg.Classifier()
	if err != nil {
		return err
	}
	rules := stagexml.DefaultRules()
	if cfg.RulesFile != "" {
		rules, err = loadRules(s.resolve(cfg.RulesFile))
		if err != nil {
			return err
		}
	}
	if dir := s.resolve(cfg.CatalogDir); dir != s.catalogDir {
		if err := s.watchCatalog(ctx, dir); err != nil {
			return err
		}
	}
	if s.opts.level != nil {
		if l, err := cfg.Level(); err == nil {
			s.opts.level.Set(l)
		}
	}
	s.docs.Resize(cfg.MaxDocuments)
	s.cfg = cfg
	s.classifier = classifier
	s.rules = rules
	s.detector = cnels.Detector{CountLiteralBraces: cfg.Scope.CountLiteralBraces}
	s.logger.Debug("configured", "root", s.root, "catalog", s.catalogDir, "rules", len(rules))
	return nil
}

// watchCatalog loads the catalog from dir and keeps it current.
// An empty dir restores the embedded catalog.
func (s *server) watchCatalog(ctx context.Context, dir string) error {
	c := catalog.Default()
	if dir != "" {
		var err error
		if c, err = catalog.Load(os.DirFS(dir)); err != nil {
			return err
		}
	}
	if s.stopWatch != nil {
		s.stopWatch()
		s.stopWatch = nil
	}
	s.catalogDir = dir
	store := s.catalogStore()
	store(c)
	if dir == "" {
		return nil
	}

	ctx, s.stopWatch = context.WithCancel(ctx)
	go func() {
		if err := catalog.Watch(ctx, dir, s.logger, store); err != nil {
			s.logger.Warn("catalog not watched", "dir", dir, "err", err)
		}
	}()
	return nil
}

// catalogStore returns a function that installs catalogs until the next
// call to catalogStore. A stopped watcher may still be reloading, and its
// catalog must not replace a newer one.
func (s *server) catalogStore() func(*catalog.Catalog) {
	s.catalogMu.Lock()
	s.catalogGen++
	gen := s.catalogGen
	s.catalogMu.Unlock()
	return func(c *catalog.Catalog) {
		s.catalogMu.Lock()
		defer s.catalogMu.Unlock()
		if s.catalogGen == gen {
			s.catalog.Store(c)
		}
	}
}

// resolve interprets a configured path relative to the workspace root.
func (s *server) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || s.root == "" {
		return p
	}
	return filepath.Join(s.root, p)
}

func loadRules(path string) ([]stagexml.Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rules, err := stagexml.ParseRules(f)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", path, err)
	}
	return rules, nil
}

// Handlers

func (s *server) handleInitialize(ctx context.Context, msg *request) error {
	var p struct {
		RootURI          string `json:"rootUri"`
		RootPath         string `json:"rootPath"`
		WorkspaceFolders []struct {
			URI string `json:"uri"`
		} `json:"workspaceFolders"`
		InitializationOptions json.RawMessage `json:"initializationOptions"`
	}
	if err := json.Unmarshal(msg.Params, &p); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, err.Error())
	}
	switch {
	case p.RootURI != "":
		s.root = uriPath(p.RootURI)
	case len(p.WorkspaceFolders) > 0:
		s.root = uriPath(p.WorkspaceFolders[0].URI)
	default:
		s.root = p.RootPath
	}

	cfg := s.opts.cfg
	if !s.opts.pinned && s.root != "" {
		wcfg, err := config.LoadDir(s.root)
		if err != nil {
			s.logger.Warn("workspace configuration ignored", "err", err)
			s.warnings = append(s.warnings, err.Error())
		} else {
			s.opts.flags.apply(wcfg)
			cfg = wcfg
		}
	}
	cfg, err := cfg.Merge(p.InitializationOptions)
	if err == nil {
		err = s.apply(ctx, cfg)
	}
	if err != nil {
		return s.sendError(msg.ID, codeInvalidParams, err.Error())
	}

	// Static response apart from the version
	const result = `{
		"capabilities": {
			"textDocumentSync": {"openClose": true, "change": 1},
			"completionProvider": {"triggerCharacters": ["<", " "]},
			"hoverProvider": true,
			"executeCommandProvider": {"commands": [%q]}
		},
		"serverInfo": {"name": "cnels", "version": %q}
	}`
	return s.replyRaw(msg.ID, json.RawMessage(fmt.Sprintf(result, helloCommand, version)))
}

func (s *server) handleInitialized() error {
	if err := s.showMessage(messageInfo, "Codename Autocomplete is Running! | Server Version: "+version); err != nil {
		return err
	}
	for _, w := range s.warnings {
		if err := s.showMessage(messageWarning, w); err != nil {
			return err
		}
	}
	s.warnings = nil
	return nil
}

func (s *server) handleShutdown(msg *request) error {
	s.shutdown = true
	return s.reply(msg.ID, nil)
}

func (s *server) handleExit() error {
	if s.shutdown {
		return exitError{0}
	}
	return exitError{1}
}

func (s *server) handleDidOpen(msg *request) error {
	var p struct {
		TextDocument struct {
			URI        string `json:"uri"`
			LanguageID string `json:"languageId"`
			Text       string `json:"text"`
		} `json:"textDocument"`
	}
	if err := json.Unmarshal(msg.Params, &p); err != nil {
		return nil
	}
	uri := p.TextDocument.URI
	lang := s.classifier.ClassifyLanguageID(p.TextDocument.LanguageID, uriPath(uri))
	doc := newDocument(uri, lang, p.TextDocument.Text)
	s.docs.Add(uri, doc)
	s.logger.Debug("open", "uri", uri, "lang", lang)
	return s.publishDiagnostics(doc)
}

func (s *server) handleDidChange(msg *request) error {
	var p struct {
		TextDocument   textDocumentIdentifier `json:"textDocument"`
		ContentChanges []struct {
			Text string `json:"text"`
		} `json:"contentChanges"`
	}
	if err := json.Unmarshal(msg.Params, &p); err != nil {
		return nil
	}
	if len(p.ContentChanges) == 0 {
		return nil
	}
	uri := p.TextDocument.URI
	text := p.ContentChanges[len(p.ContentChanges)-1].Text
	doc, ok := s.docs.Get(uri)
	if ok {
		doc.setText(text)
	} else {
		// Evicted; the full text is enough to start over.
		doc = newDocument(uri, s.classifier.Classify(uriPath(uri)), text)
		s.docs.Add(uri, doc)
		s.logger.Debug("reopen", "uri", uri, "lang", doc.lang)
	}
	return s.publishDiagnostics(doc)
}

func (s *server) handleDidClose(msg *request) error {
	var p struct {
		TextDocument textDocumentIdentifier `json:"textDocument"`
	}
	if err := json.Unmarshal(msg.Params, &p); err != nil {
		return nil
	}
	doc, ok := s.docs.Peek(p.TextDocument.URI)
	s.docs.Remove(p.TextDocument.URI)
	s.logger.Debug("close", "uri", p.TextDocument.URI)
	if ok && doc.lang == config.Stage {
		return s.notifyDiagnostics(doc.uri, []diagnostic{})
	}
	return nil
}

func (s *server) handleCompletion(msg *request) error {
	if msg.ID == nil {
		return nil
	}
	var p textDocumentPosition
	if err := json.Unmarshal(msg.Params, &p); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, err.Error())
	}
	list := completionList{Items: []completionItem{}}
	if doc, ok := s.docs.Get(p.TextDocument.URI); ok {
		if prov := s.providerFor(doc); prov != nil {
			list.Items = append(list.Items, prov.completions(doc, p.Position)...)
		}
	}
	return s.reply(msg.ID, list)
}

func (s *server) handleHover(msg *request) error {
	if msg.ID == nil {
		return nil
	}
	var p textDocumentPosition
	if err := json.Unmarshal(msg.Params, &p); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, err.Error())
	}
	doc, ok := s.docs.Get(p.TextDocument.URI)
	if !ok {
		return s.reply(msg.ID, nil)
	}
	prov := s.providerFor(doc)
	if prov == nil {
		return s.reply(msg.ID, nil)
	}
	h, ok := prov.hover(doc, p.Position)
	if !ok {
		return s.reply(msg.ID, nil)
	}
	return s.reply(msg.ID, h)
}

func (s *server) handleExecuteCommand(msg *request) error {
	var p struct {
		Command   string            `json:"command"`
		Arguments []json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(msg.Params, &p); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, err.Error())
	}
	switch p.Command {
	case helloCommand:
		if err := s.showMessage(messageInfo, helloMessage); err != nil {
			return err
		}
		return s.reply(msg.ID, nil)
	default:
		return s.sendError(msg.ID, codeInvalidParams, fmt.Sprintf("unknown command %q", p.Command))
	}
}

// handleDidChangeConfiguration merges the "cnels" section of the editor's
// settings into the current configuration.
func (s *server) handleDidChangeConfiguration(ctx context.Context, msg *request) error {
	var p struct {
		Settings struct {
			Cnels json.RawMessage `json:"cnels"`
		} `json:"settings"`
	}
	if err := json.Unmarshal(msg.Params, &p); err != nil || len(p.Settings.Cnels) == 0 {
		return nil
	}
	cfg, err := s.cfg.Merge(p.Settings.Cnels)
	if err == nil {
		err = s.apply(ctx, cfg)
	}
	if err != nil {
		s.logger.Warn("settings ignored", "err", err)
		return s.showMessage(messageWarning, err.Error())
	}
	for _, doc := range s.docs.Values() {
		if err := s.publishDiagnostics(doc); err != nil {
			return err
		}
	}
	return nil
}

func (s *server) publishDiagnostics(doc *document) error {
	switch doc.lang {
	case config.Haxe:
		return s.notifyDiagnostics(doc.uri, []diagnostic{})
	case config.Stage:
		problems := stagexml.Lint(doc.stage, s.rules)
		diags := make([]diagnostic, len(problems))
		for i, p := range problems {
			severity := severityWarning
			if p.Rule == 0 {
				severity = severityError
			}
			diags[i] = diagnostic{
				Range:    doc.lineRange(p.Line, p.Col),
				Severity: severity,
				Source:   "cnels",
				Message:  p.Message,
			}
		}
		return s.notifyDiagnostics(doc.uri, diags)
	}
	return nil
}

func (s *server) notifyDiagnostics(uri string, diags []diagnostic) error {
	return s.notify("textDocument/publishDiagnostics", struct {
		URI         string       `json:"uri"`
		Diagnostics []diagnostic `json:"diagnostics"`
	}{
		URI:         uri,
		Diagnostics: diags,
	})
}

func (s *server) showMessage(typ int, message string) error {
	return s.notify("window/showMessage", struct {
		Type    int    `json:"type"`
		Message string `json:"message"`
	}{Type: typ, Message: message})
}

// Protocol I/O

func (s *server) reply(id json.RawMessage, result any) error {
	data := json.RawMessage("null")
	if result != nil {
		var err error
		if data, err = json.Marshal(result); err != nil {
			return err
		}
	}
	return s.replyRaw(id, data)
}

func (s *server) replyRaw(id json.RawMessage, result json.RawMessage) error {
	data, err := json.Marshal(struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Result  json.RawMessage `json:"result"`
	}{JSONRPC: "2.0", ID: id, Result: result})
	if err != nil {
		return err
	}
	return s.t.writeMessage(data)
}

func (s *server) sendError(id json.RawMessage, code int, message string) error {
	if id == nil {
		id = json.RawMessage("null")
	}
	data, err := json.Marshal(struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Error   responseError   `json:"error"`
	}{
		JSONRPC: "2.0",
		ID:      id,
		Error:   responseError{Code: code, Message: message},
	})
	if err != nil {
		return err
	}
	return s.t.writeMessage(data)
}

func (s *server) notify(method string, params any) error {
	data, err := json.Marshal(struct {
		JSONRPC string `json:"jsonrpc"`
		Method  string `json:"method"`
		Params  any    `json:"params,omitempty"`
	}{JSONRPC: "2.0", Method: method, Params: params})
	if err != nil {
		return err
	}
	return s.t.writeMessage(data)
}

// uriPath returns the file path of a file URI, or uri unchanged.
func uriPath(uri string) string {
	if u, err := url.Parse(uri); err == nil && u.Scheme == "file" && u.Path != "" {
		return u.Path
	}
	return uri
}
