package common

import (
	"strings"
	"testing"

	"github.com/crmarques/quayconf/faults"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
)

type sampleRequest struct {
	Name        string   `yaml:"name" json:"name"`
	Description *string  `yaml:"description,omitempty" json:"description,omitempty"`
	Public      *bool    `yaml:"public,omitempty" json:"public,omitempty"`
	Tags        []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	Pairs       []string `yaml:"pairs,omitempty" json:"pairs,omitempty"`
}

func newSampleOptions(request *sampleRequest) (*cobra.Command, *OptionSet) {
	command := &cobra.Command{Use: "sample"}
	options := NewOptionSet(command)
	options.String(&request.Name, "name", "")
	options.OptionalString(&request.Description, "description", "")
	options.OptionalBool(&request.Public, "public", "")
	options.StringSlice(&request.Tags, "tags", "")
	options.Custom("pair", "", func(values []string) error {
		for _, value := range values {
			if !strings.Contains(value, "=") {
				return ValidationError("invalid pair "+value, nil)
			}
		}
		request.Pairs = values
		return nil
	})
	return command, options
}

func TestOptionSetOverridesOnlyChangedFlags(t *testing.T) {
	t.Parallel()

	var request sampleRequest
	command, options := newSampleOptions(&request)

	payload := "name: from-file\ndescription: from file\ntags: [a]\n"
	if err := DecodeInto([]byte(payload), OutputYAML, &request); err != nil {
		t.Fatalf("DecodeInto returned error: %v", err)
	}
	if err := command.Flags().Parse([]string{"--public=false", "--tags", "b,c", "--pair", "k=v"}); err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if err := options.Apply(); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}

	description := "from file"
	public := false
	want := sampleRequest{
		Name:        "from-file",
		Description: &description,
		Public:      &public,
		Tags:        []string{"b", "c"},
		Pairs:       []string{"k=v"},
	}
	if diff := cmp.Diff(want, request); diff != "" {
		t.Fatalf("unexpected request (-want +got):\n%s", diff)
	}
}

func TestOptionSetCustomParseError(t *testing.T) {
	t.Parallel()

	var request sampleRequest
	command, options := newSampleOptions(&request)
	if err := command.Flags().Parse([]string{"--pair", "broken"}); err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if err := options.Apply(); !faults.IsCategory(err, faults.ValidationError) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeIntoRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	var request sampleRequest
	if err := DecodeInto([]byte("nmae: typo\n"), OutputYAML, &request); !faults.IsCategory(err, faults.ValidationError) {
		t.Fatalf("expected validation error for yaml, got %v", err)
	}
	if err := DecodeInto([]byte(`{"nmae":"typo"}`), OutputJSON, &request); !faults.IsCategory(err, faults.ValidationError) {
		t.Fatalf("expected validation error for json, got %v", err)
	}
	if err := DecodeInto([]byte(`{}`), "toml", &request); !faults.IsCategory(err, faults.ValidationError) {
		t.Fatalf("expected validation error for format, got %v", err)
	}
}
