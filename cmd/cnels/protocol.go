package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// JSON-RPC error codes
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

// A transport carries whole JSON-RPC messages.
type transport interface {
	readMessage() ([]byte, error)
	writeMessage(data []byte) error
}

// streamTransport frames messages with Content-Length headers, as editors
// do over stdin and stdout.
type streamTransport struct {
	r *bufio.Reader
	w *bufio.Writer
}

func newStreamTransport(r io.Reader, w io.Writer) *streamTransport {
	return &streamTransport{r: bufio.NewReader(r), w: bufio.NewWriter(w)}
}

func (t *streamTransport) readMessage() ([]byte, error) {
	var contentLen int
	for {
		line, err := t.r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if k, v, ok := strings.Cut(line, ":"); ok && strings.ToLower(strings.TrimSpace(k)) == "content-length" {
			contentLen, _ = strconv.Atoi(strings.TrimSpace(v))
		}
	}
	if contentLen <= 0 {
		return nil, errors.New("missing Content-Length")
	}
	data := make([]byte, contentLen)
	_, err := io.ReadFull(t.r, data)
	return data, err
}

func (t *streamTransport) writeMessage(data []byte) error {
	fmt.Fprintf(t.w, "Content-Length: %d\r\n\r\n", len(data))
	t.w.Write(data)
	return t.w.Flush()
}

// LSP Protocol Types

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type responseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type textDocumentIdentifier struct {
	URI string `json:"uri"`
}

type textDocumentPosition struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
	Position     position               `json:"position"`
}

type position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

type lspRange struct {
	Start position `json:"start"`
	End   position `json:"end"`
}

type markupContent struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

func markdown(s string) *markupContent {
	return &markupContent{Kind: "markdown", Value: s}
}

type diagnostic struct {
	Range    lspRange `json:"range"`
	Severity int      `json:"severity"`
	Source   string   `json:"source,omitempty"`
	Message  string   `json:"message"`
}

// Diagnostic severities
const (
	severityError   = 1
	severityWarning = 2
)

// Message types for window/showMessage
const (
	messageError   = 1
	messageWarning = 2
	messageInfo    = 3
)

type completionItem struct {
	Label            string         `json:"label"`
	Kind             int            `json:"kind,omitempty"`
	Detail           string         `json:"detail,omitempty"`
	Documentation    *markupContent `json:"documentation,omitempty"`
	SortText         string         `json:"sortText,omitempty"`
	FilterText       string         `json:"filterText,omitempty"`
	InsertText       string         `json:"insertText,omitempty"`
	InsertTextFormat int            `json:"insertTextFormat,omitempty"`
}

// Completion item kinds
const (
	kindProperty = 10
	kindClass    = 7
	kindEvent    = 23
	kindSnippet  = 15
)

const formatSnippet = 2

type completionList struct {
	IsIncomplete bool             `json:"isIncomplete"`
	Items        []completionItem `json:"items"`
}

type hoverResult struct {
	Contents markupContent `json:"contents"`
	Range    *lspRange     `json:"range,omitempty"`
}
