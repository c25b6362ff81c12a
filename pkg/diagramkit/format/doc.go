// Package format converts diagrams to and from their textual formats.
//
// Four converters ship with the package:
//
//   - native: JSON with every collection keyed by id
//   - light: plain YAML with a workflow list, ids preserved
//   - readable: the label-addressed document from package labels
//   - llm: compact YAML with flow, prompts and agents sections
//
// A Registry holds them by name, detects the format of unknown input and
// converts between any two:
//
//	reg := format.NewRegistry(format.WithLogger(logger))
//	out, err := reg.Convert(ctx, data, "", format.Light)
//
// An empty source format asks Detect to pick the converter whose
// Confidence is highest.
package format
