// Package labels converts diagrams to and from a label-addressed document
// meant for people to read and edit.
//
// Export swaps every id for a label that is unique within its category:
//
//	r := labels.NewRemapper()
//	doc := r.Export(d)
//	// doc.Arrows[0].SourceHandle == "Start-default"
//
// Import does the reverse into any Target, assigning fresh ids:
//
//	s := store.New()
//	report, err := labels.NewRemapper(labels.WithLogger(logger)).Import(data, s)
//
// Structural problems abort the import before the target is touched.
// Arrows whose endpoints do not resolve are dropped and listed in
// report.Skipped.
package labels
