package common

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// OptionSet binds module flags onto a request that may also be decoded from
// an options file. Only flags set on the command line are copied, so they
// override the file and leave every other field untouched.
type OptionSet struct {
	flags   *pflag.FlagSet
	setters []func() error
}

func NewOptionSet(command *cobra.Command) *OptionSet {
	return &OptionSet{flags: command.Flags()}
}

func (o *OptionSet) String(target *string, name string, usage string) {
	value := o.flags.String(name, "", usage)
	o.onChange(name, func() error {
		*target = *value
		return nil
	})
}

func (o *OptionSet) OptionalString(target **string, name string, usage string) {
	value := o.flags.String(name, "", usage)
	o.onChange(name, func() error {
		copied := *value
		*target = &copied
		return nil
	})
}

func (o *OptionSet) Bool(target *bool, name string, usage string) {
	value := o.flags.Bool(name, false, usage)
	o.onChange(name, func() error {
		*target = *value
		return nil
	})
}

func (o *OptionSet) OptionalBool(target **bool, name string, usage string) {
	value := o.flags.Bool(name, false, usage)
	o.onChange(name, func() error {
		copied := *value
		*target = &copied
		return nil
	})
}

func (o *OptionSet) StringSlice(target *[]string, name string, usage string) {
	value := o.flags.StringSlice(name, nil, usage)
	o.onChange(name, func() error {
		*target = append([]string{}, (*value)...)
		return nil
	})
}

// Custom registers a repeatable flag whose values are converted by parse.
func (o *OptionSet) Custom(name string, usage string, parse func([]string) error) {
	value := o.flags.StringArray(name, nil, usage)
	o.onChange(name, func() error {
		return parse(*value)
	})
}

// Apply copies every flag set on the command line onto its target.
func (o *OptionSet) Apply() error {
	for _, setter := range o.setters {
		if err := setter(); err != nil {
			return err
		}
	}
	return nil
}

func (o *OptionSet) onChange(name string, apply func() error) {
	o.setters = append(o.setters, func() error {
		if !o.flags.Changed(name) {
			return nil
		}
		return apply()
	})
}
