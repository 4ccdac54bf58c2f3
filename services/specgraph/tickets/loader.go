// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tickets

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/jsonc"
)

// ticketFile is the object form of a ticket file.
type ticketFile struct {
	Tickets []json.RawMessage `json:"tickets"`
}

// LoaderOptions configures a Loader.
type LoaderOptions struct {
	// Logger receives a warning per rejected record.
	// Default: slog.Default()
	Logger *slog.Logger
}

// LoaderOption is a functional option for configuring a Loader.
type LoaderOption func(*LoaderOptions)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(o *LoaderOptions) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// Loader parses and validates ticket files.
//
// Thread Safety:
//
//	Loader is safe for concurrent use.
type Loader struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewLoader creates a Loader.
func NewLoader(opts ...LoaderOption) *Loader {
	options := LoaderOptions{Logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	return &Loader{
		validate: validator.New(),
		logger:   options.Logger,
	}
}

// Parse decodes the tickets of one file.
//
// Description:
//
//	Accepts either {"tickets": [...]} or a bare array, with // and /* */
//	comments and trailing commas. Each record is decoded and validated
//	on its own: a bad record is skipped and reported, the rest load.
//
// Inputs:
//
//	source - The file name, recorded on each ticket and in errors.
//	data - File contents.
//
// Outputs:
//
//	[]Ticket - The valid tickets, in file order. Never nil on success.
//	error - ErrInvalidTicketFile when the file cannot be decoded at all
//	        (tickets is nil then), or a *LoadError listing the rejected
//	        records alongside the valid tickets.
func (l *Loader) Parse(source string, data []byte) ([]Ticket, error) {
	stripped := bytes.TrimSpace(jsonc.ToJSON(data))

	var records []json.RawMessage
	if bytes.HasPrefix(stripped, []byte("[")) {
		if err := json.Unmarshal(stripped, &records); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTicketFile, source, err)
		}
	} else {
		var file ticketFile
		if err := json.Unmarshal(stripped, &file); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTicketFile, source, err)
		}
		if file.Tickets == nil {
			return nil, fmt.Errorf("%w: %s: missing \"tickets\" array", ErrInvalidTicketFile, source)
		}
		records = file.Tickets
	}

	tickets := make([]Ticket, 0, len(records))
	var errs []error
	for i, raw := range records {
		t, err := l.decodeRecord(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: ticket[%d]: %v", ErrInvalidTicket, i, err))
			l.logger.Warn("skipping invalid ticket",
				slog.String("source", source),
				slog.Int("index", i),
				slog.String("error", err.Error()),
			)
			continue
		}
		t.Source = source
		tickets = append(tickets, t)
	}

	if len(errs) > 0 {
		return tickets, &LoadError{Source: source, Errors: errs}
	}
	return tickets, nil
}

func (l *Loader) decodeRecord(raw json.RawMessage) (Ticket, error) {
	var t Ticket
	if err := json.Unmarshal(raw, &t); err != nil {
		return Ticket{}, err
	}
	if err := l.validate.Struct(t); err != nil {
		return Ticket{}, err
	}
	return t, nil
}

// LoadFile reads and parses one ticket file. See Parse.
func (l *Loader) LoadFile(path string) ([]Ticket, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ticket file %s: %w", path, err)
	}
	return l.Parse(path, data)
}
