package common

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"
)

const (
	stdinFileIndicator = "-"
	maxInputBytes      = 4 << 20
)

// ReadOptionalInput returns the options file content, or nil when no
// --payload was given.
func ReadOptionalInput(command *cobra.Command, flags InputFlags) ([]byte, error) {
	switch flags.Payload {
	case "":
		return nil, nil
	case stdinFileIndicator:
		data, err := readAllWithLimit(command.InOrStdin(), maxInputBytes)
		if err != nil {
			return nil, err
		}
		if len(bytes.TrimSpace(data)) == 0 {
			return nil, ValidationError("input is empty", nil)
		}
		return data, nil
	}

	file, err := os.Open(flags.Payload)
	if err != nil {
		return nil, ValidationError(fmt.Sprintf("options file %q could not be read", flags.Payload), err)
	}
	defer file.Close()

	data, err := readAllWithLimit(file, maxInputBytes)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ValidationError("input is empty", nil)
	}
	return data, nil
}

// DecodeInto decodes data over target. Fields absent from data keep their
// current value.
func DecodeInto(data []byte, format string, target any) error {
	switch format {
	case "", OutputYAML:
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(target); err != nil && !errors.Is(err, io.EOF) {
			return ValidationError("invalid yaml input", err)
		}
	case OutputJSON:
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(target); err != nil {
			return ValidationError("invalid json input", err)
		}
	default:
		return ValidationError("invalid input format: use json or yaml", nil)
	}
	return nil
}

func readAllWithLimit(reader io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(reader, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, ValidationError("input exceeds maximum supported size", errors.New("input too large"))
	}
	return data, nil
}
