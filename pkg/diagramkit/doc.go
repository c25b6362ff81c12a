/*
Package diagramkit defines the diagram domain model shared by the
converters, stores and services in this module.

# Overview

A diagram is a set of nodes connected by arrows. Arrows do not point at
nodes directly: each node owns typed handles (input or output connection
points) and an arrow joins one output handle to one input handle. Prompt
executing nodes reference a Person (an LLM agent configuration), and
persons reference an APIKey by id.

Two physical shapes exist for the same logical diagram:
  - Diagram: the array form used on the wire and in exports
  - store.Store: the map form used in memory, keyed by id

# Identifiers

Every element kind has its own string type (NodeID, HandleID, ArrowID,
PersonID, APIKeyID, DiagramID, ExecutionID). Handle ids are derived, not
assigned:

	id := diagramkit.CreateHandleID("start-1", "default", diagramkit.Output)
	// "start-1:default:output"

	ref, err := diagramkit.ParseHandleID(id)
	// ref.NodeID == "start-1", ref.Label == "default", ref.Direction == Output

# Connections

AreHandlesCompatible is the only admission rule for a new arrow: output to
input, with matching data types unless one side is TypeAny.
*/
package diagramkit
