package reconciler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/crmarques/quayconf/faults"
)

var (
	durationPattern   = regexp.MustCompile(`^([0-9]+)([smhdw])$`)
	pruneDatePattern  = regexp.MustCompile(`^[1-9][0-9]*[smhdw]$`)
	durationUnitScale = map[string]int64{
		"s": 1,
		"m": 60,
		"h": 3600,
		"d": 86400,
		"w": 604800,
	}
)

const (
	PruneMethodTags = "tags"
	PruneMethodDate = "date"
	PruneMethodNone = "none"

	PolicyMethodNumberOfTags = "number_of_tags"
	PolicyMethodCreationDate = "creation_date"
)

// ParseDuration converts "<integer><unit>" into seconds, with unit one of
// s, m, h, d or w. White space anywhere in the value is ignored. option
// names the setting in the validation message.
func ParseDuration(option string, value string) (int64, error) {
	compact := removeSpaces(value)
	match := durationPattern.FindStringSubmatch(compact)
	if match == nil {
		return 0, faults.Validation(
			fmt.Sprintf(
				"Wrong format for the `%s' parameter: %s is not an integer followed by the s, m, h, d, or w suffix.",
				option,
				value,
			),
			nil,
		)
	}

	amount, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, faults.Validation(fmt.Sprintf("Wrong format for the `%s' parameter: %s is too large.", option, value), err)
	}
	scale := durationUnitScale[match[2]]
	if amount > (1<<63-1)/scale {
		return 0, faults.Validation(fmt.Sprintf("Wrong format for the `%s' parameter: %s is too large.", option, value), nil)
	}
	return amount * scale, nil
}

// ParsePruneValue checks an auto-prune value against its method and returns
// the method and value in the form the registry API expects: a positive
// tag count for "tags", a positive duration string for "date". option names
// the setting in the validation message.
func ParsePruneValue(option string, method string, value string) (string, any, error) {
	switch method {
	case PruneMethodTags:
		count, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || count <= 0 {
			return "", nil, faults.Validation(
				fmt.Sprintf("Wrong format for the `%s' parameter: %s is not a positive integer.", option, value),
				err,
			)
		}
		return PolicyMethodNumberOfTags, count, nil
	case PruneMethodDate:
		compact := removeSpaces(value)
		if !pruneDatePattern.MatchString(compact) {
			return "", nil, faults.Validation(
				fmt.Sprintf(
					"Wrong format for the `%s' parameter: %s is not a positive integer followed by the s, m, h, d, or w suffix.",
					option,
					value,
				),
				nil,
			)
		}
		return PolicyMethodCreationDate, compact, nil
	default:
		return "", nil, faults.Validation(fmt.Sprintf("unsupported auto-prune method %q: use tags or date", method), nil)
	}
}

func removeSpaces(value string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, value)
}
