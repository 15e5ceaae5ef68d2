package common

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"

	"github.com/itchyny/gojq"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"
)

const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

func ValidateOutputFormat(format string) error {
	switch format {
	case OutputText, OutputJSON, OutputYAML:
		return nil
	default:
		return ValidationError("invalid output format: use text, json, or yaml", nil)
	}
}

func WriteOutput[T any](command *cobra.Command, format string, value T, renderText func(io.Writer, T) error) error {
	if isNilOutputValue(value) {
		return nil
	}

	switch format {
	case "", OutputText:
		if renderText != nil {
			return renderText(command.OutOrStdout(), value)
		}
		_, err := fmt.Fprintln(command.OutOrStdout(), value)
		return err
	case OutputJSON:
		encoded, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(command.OutOrStdout(), string(encoded))
		return err
	case OutputYAML:
		encoded, err := yaml.Marshal(value)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(command.OutOrStdout(), string(encoded))
		return err
	default:
		return ValidationError("invalid output format: use text, json, or yaml", nil)
	}
}

// WriteResult prints a module result, filtered through query when set.
func WriteResult(command *cobra.Command, flags *GlobalFlags, result map[string]any) error {
	format := OutputText
	query := ""
	if flags != nil {
		format = flags.Output
		query = flags.Query
	}

	if strings.TrimSpace(query) == "" {
		return WriteOutput(command, format, result, renderResultText)
	}

	filtered, err := ApplyQuery(query, result)
	if err != nil {
		return err
	}
	return WriteOutput(command, format, filtered, renderQueryText)
}

// ApplyQuery runs a jq expression over value. A single result is returned
// as is; several results come back as a list.
func ApplyQuery(expression string, value any) (any, error) {
	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, ValidationError(fmt.Sprintf("invalid query %q", expression), err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, ValidationError(fmt.Sprintf("invalid query %q", expression), err)
	}

	input, err := jqInput(value)
	if err != nil {
		return nil, err
	}

	results := make([]any, 0, 1)
	iter := code.Run(input)
	for {
		item, ok := iter.Next()
		if !ok {
			break
		}
		if failure, isErr := item.(error); isErr {
			return nil, ValidationError(fmt.Sprintf("query %q failed", expression), failure)
		}
		results = append(results, item)
	}

	if len(results) == 1 {
		return results[0], nil
	}
	return results, nil
}

// jqInput converts value to the plain JSON types gojq accepts.
func jqInput(value any) (any, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var decoded any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}

func renderResultText(w io.Writer, result map[string]any) error {
	keys := make([]string, 0, len(result))
	for key := range result {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if _, err := fmt.Fprintf(w, "%s: %s\n", key, textValue(result[key])); err != nil {
			return err
		}
	}
	return nil
}

func renderQueryText(w io.Writer, value any) error {
	_, err := fmt.Fprintln(w, textValue(value))
	return err
}

func textValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return "null"
	case string:
		return typed
	case bool, int, int64, float64, json.Number:
		return fmt.Sprint(typed)
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return fmt.Sprint(typed)
		}
		return string(encoded)
	}
}

func isNilOutputValue[T any](value T) bool {
	anyValue := any(value)
	if anyValue == nil {
		return true
	}

	reflected := reflect.ValueOf(anyValue)
	switch reflected.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return reflected.IsNil()
	default:
		return false
	}
}
