// Package nodes describes the built-in node kinds: their default handles,
// required fields, and prompt-bearing fields, plus a typed view of each
// kind's data.
//
// A Catalog is an ordinary value. Construct it once and hand it to the
// converters and the label remapper:
//
//	cat := nodes.NewCatalog()
//	handles := cat.DefaultHandles("condition-1", diagramkit.KindCondition)
//
// Decode turns a node's data map into one of the *Props structs:
//
//	props, err := nodes.Decode(n.Type, n.Data)
//	switch p := props.(type) {
//	case *nodes.PersonJobProps:
//	    use(p.DefaultPrompt)
//	}
package nodes
