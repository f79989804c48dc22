// Package output renders command results as YAML, JSON or plain text.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Format defines the output format for CLI commands.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// DefaultFormat is the default output format.
var DefaultFormat Format = FormatText

// globalFormat is set by the root command's --output flag.
var globalFormat = DefaultFormat

// TextWriter is implemented by values that have a line-oriented text form.
// Values that don't implement it are printed with fmt in text mode.
type TextWriter interface {
	WriteText(w io.Writer) error
}

// ParseFormat maps a flag value to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatYAML, FormatJSON, FormatText:
		return Format(s), nil
	case "":
		return DefaultFormat, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want yaml, json or text)", s)
	}
}

// SetFormat sets the global output format.
func SetFormat(s string) error {
	f, err := ParseFormat(s)
	if err != nil {
		return err
	}
	globalFormat = f
	return nil
}

// GetFormat returns the current global output format.
func GetFormat() Format {
	return globalFormat
}

// Print writes data to stdout in the configured format.
func Print(data any) error {
	return To(os.Stdout, globalFormat, data)
}

// To writes data to the given writer in the specified format.
func To(w io.Writer, format Format, data any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(data)
	case FormatText:
		if tw, ok := data.(TextWriter); ok {
			return tw.WriteText(w)
		}
		_, err := fmt.Fprintln(w, data)
		return err
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

// IsStructured returns true if the output format is structured (JSON/YAML).
// Commands use it to decide whether human-friendly messages are printed.
func IsStructured() bool {
	return globalFormat == FormatJSON || globalFormat == FormatYAML
}
