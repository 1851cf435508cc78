// Package serve exposes a scanner.Core over newline-delimited JSON.
package serve

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/praetorian-inc/hsfilter/pkg/scanner"
)

// Version is the server protocol version
const Version = "1.0.0"

// Server manages the streaming scanner
type Server struct {
	core    *scanner.Core
	encoder *json.Encoder
	decoder *json.Decoder
	logger  *slog.Logger
}

// NewServer creates a new streaming server
func NewServer(core *scanner.Core, in io.Reader, out io.Writer) *Server {
	return &Server{
		core:    core,
		encoder: json.NewEncoder(out),
		decoder: json.NewDecoder(bufio.NewReader(in)),
		logger:  slog.Default(),
	}
}

// WithLogger replaces the server logger.
func (s *Server) WithLogger(logger *slog.Logger) *Server {
	s.logger = logger
	return s
}

// Run answers requests until the input ends, a close request arrives or ctx
// is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.sendReady()

	reqChan := make(chan Request, 1)
	errChan := make(chan error, 1)

	go func() {
		for {
			var req Request
			if err := s.decoder.Decode(&req); err != nil {
				errChan <- err
				return
			}
			select {
			case reqChan <- req:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errChan:
			// the last request may still be queued behind the decode error
			for {
				select {
				case req := <-reqChan:
					if s.processRequest(req) {
						return nil
					}
				default:
					if err == io.EOF {
						return nil
					}
					s.sendError("decode", err.Error())
					return nil
				}
			}
		case req := <-reqChan:
			if s.processRequest(req) {
				return nil
			}
		}
	}
}

// processRequest handles a single request and returns true if the server should exit
func (s *Server) processRequest(req Request) bool {
	s.logger.Debug("request", "type", req.Type)

	switch req.Type {
	case TypeScan:
		var p ScanPayload
		if s.decode(req.Type, req.Payload, &p) {
			s.reply(req.Type, func() (any, error) { return s.core.Scan(p.Content, p.Source) })
		}
	case TypeScanBatch:
		var p ScanBatchPayload
		if s.decode(req.Type, req.Payload, &p) {
			s.reply(req.Type, func() (any, error) { return s.core.ScanBatch(p.Items) })
		}
	case TypeFilter:
		var p ScanPayload
		if s.decode(req.Type, req.Payload, &p) {
			s.reply(req.Type, func() (any, error) { return s.core.Filter(p.Content, p.Source) })
		}
	case TypeClose:
		return true
	default:
		s.sendError("unknown", "unknown request type: "+req.Type)
	}
	return false
}

func (s *Server) decode(reqType string, payload json.RawMessage, v any) bool {
	if err := json.Unmarshal(payload, v); err != nil {
		s.sendError(reqType, err.Error())
		return false
	}
	return true
}

func (s *Server) reply(reqType string, fn func() (any, error)) {
	result, err := fn()
	if err != nil {
		s.sendError(reqType, err.Error())
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		s.sendError(reqType, err.Error())
		return
	}
	s.send(Response{Success: true, Type: reqType, Data: data})
}

func (s *Server) sendReady() {
	data, _ := json.Marshal(ReadyData{Version: Version, Engine: s.core.Engine(), Rules: s.core.Len()})
	s.send(Response{Success: true, Type: "ready", Data: data})
}

func (s *Server) sendError(reqType, msg string) {
	s.send(Response{Success: false, Type: reqType, Error: msg})
}

func (s *Server) send(resp Response) {
	if err := s.encoder.Encode(resp); err != nil {
		s.logger.Warn("writing response", "type", resp.Type, "error", err)
	}
}
