package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hyperifyio/minutewatch/internal/aggregate"
	"github.com/hyperifyio/minutewatch/internal/locate"
)

// ErrorObject is written in place of the result list when a run fails
// outright.
type ErrorObject struct {
	Error string `json:"error"`
	Stage string `json:"stage"`
}

// NewErrorObject classifies err by the stage that produced it.
func NewErrorObject(err error) ErrorObject {
	stage := "run"
	switch {
	case errors.Is(err, ErrConfig):
		stage = "config"
	case errors.Is(err, locate.ErrOrigin):
		stage = "locate"
	}
	return ErrorObject{Error: err.Error(), Stage: stage}
}

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// WriteOutput writes v as JSON to path, or to stdout when path is empty or "-".
func WriteOutput(path string, v any) error {
	if p := strings.TrimSpace(path); p != "" && p != "-" {
		f, err := os.Create(p)
		if err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		if err := WriteJSON(f, v); err != nil {
			_ = f.Close()
			return fmt.Errorf("write output: %w", err)
		}
		return f.Close()
	}
	return WriteJSON(os.Stdout, v)
}

// WriteResults writes the summaries to the configured outputs: JSON always,
// plus a PDF digest when OutputPDFPath is set.
func (a *App) WriteResults(summaries []aggregate.MeetingSummary) error {
	if summaries == nil {
		summaries = []aggregate.MeetingSummary{}
	}
	if err := WriteOutput(a.cfg.OutputPath, summaries); err != nil {
		return err
	}
	if trim(a.cfg.OutputPDFPath) != "" {
		if err := writeDigestPDF(summaries, a.cfg.Topic, a.now(), a.cfg.OutputPDFPath); err != nil {
			return fmt.Errorf("write pdf: %w", err)
		}
	}
	return nil
}
