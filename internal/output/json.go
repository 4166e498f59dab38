package output

import (
	"encoding/json"
	"io"
	"os"
)

// Response represents a standard JSON response
type Response struct {
	SchemaVersion string `json:"schema_version"`
	Success       bool   `json:"success"`
	Data          any    `json:"data,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Config controls where and how responses are encoded.
type Config struct {
	Writer io.Writer
	Pretty bool
}

// DefaultConfig writes to stdout, compact unless KEYWARD_PRETTY_JSON is 1 or true.
func DefaultConfig() Config {
	pretty := os.Getenv("KEYWARD_PRETTY_JSON")
	return Config{Writer: os.Stdout, Pretty: pretty == "1" || pretty == "true"}
}

// Success wraps a successful response with data
func Success(data any) Response {
	return Response{
		SchemaVersion: "v1",
		Success:       true,
		Data:          data,
	}
}

// Error wraps an error in a response
func Error(err error) Response {
	return Response{
		SchemaVersion: "v1",
		Success:       false,
		Error:         err.Error(),
	}
}

// PrintWith encodes v as JSON using cfg.
func PrintWith(cfg Config, v any) error {
	enc := json.NewEncoder(cfg.Writer)
	if cfg.Pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// Print prints a value as JSON to stdout
func Print(v any) error {
	return PrintWith(DefaultConfig(), v)
}

// PrintSuccess prints a success response
func PrintSuccess(data any) error {
	return Print(Success(data))
}

// PrintError prints an error response
func PrintError(err error) error {
	return Print(Error(err))
}
