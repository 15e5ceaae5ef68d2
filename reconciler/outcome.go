package reconciler

// Outcome is what one module invocation reports to its caller.
type Outcome struct {
	Changed  bool
	Skipped  bool
	Message  string
	Data     map[string]any
	Warnings []string
}

// Map flattens the outcome into the result document printed by the CLI:
// module data at the top level next to changed, skipped, msg and warnings.
func (o Outcome) Map() map[string]any {
	result := make(map[string]any, len(o.Data)+4)
	for key, value := range o.Data {
		result[key] = value
	}
	result["changed"] = o.Changed
	if o.Skipped {
		result["skipped"] = true
	}
	if o.Message != "" {
		result["msg"] = o.Message
	}
	if len(o.Warnings) > 0 {
		warnings := make([]any, len(o.Warnings))
		for idx, warning := range o.Warnings {
			warnings[idx] = warning
		}
		result["warnings"] = warnings
	}
	return result
}
