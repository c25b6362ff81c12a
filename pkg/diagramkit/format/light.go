package format

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/nodes"
)

// LightVersion is written to the version field of light documents.
const LightVersion = "1.0"

// LightConverter reads and writes the plain YAML form: api keys and
// persons keyed by id, and a workflow list with one step per node whose
// outgoing arrows are inlined as connections. Ids and positions survive a
// round trip; handles are written only when they differ from the node
// kind's defaults.
type LightConverter struct {
	opts options
}

// NewLight returns the light YAML converter.
func NewLight(opts ...Option) *LightConverter {
	return &LightConverter{opts: buildOptions(opts)}
}

// Format implements Converter.
func (c *LightConverter) Format() string { return Light }

type lightDoc struct {
	Version  string         `yaml:"version"`
	Metadata *lightMetadata `yaml:"metadata,omitempty"`
	APIKeys  yaml.Node      `yaml:"apiKeys,omitempty"`
	Persons  yaml.Node      `yaml:"persons,omitempty"`
	Workflow []lightStep    `yaml:"workflow"`
}

type lightMetadata struct {
	ID          string `yaml:"id,omitempty"`
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`
}

type lightAPIKey struct {
	ID        string `yaml:"-"`
	Service   string `yaml:"service"`
	Name      string `yaml:"name,omitempty"`
	MaskedKey string `yaml:"masked_key,omitempty"`
}

type lightPerson struct {
	ID             string   `yaml:"id"`
	Label          string   `yaml:"label,omitempty"`
	Model          string   `yaml:"model"`
	Service        string   `yaml:"service"`
	APIKeyID       string   `yaml:"apiKeyId,omitempty"`
	System         string   `yaml:"system,omitempty"`
	Temperature    *float64 `yaml:"temperature,omitempty"`
	MaxTokens      *int     `yaml:"max_tokens,omitempty"`
	ForgettingMode string   `yaml:"forgetting_mode,omitempty"`
}

type lightStep struct {
	ID            string            `yaml:"id"`
	Type          string            `yaml:"type"`
	Label         string            `yaml:"label,omitempty"`
	Position      diagramkit.Vec2   `yaml:"position"`
	Person        string            `yaml:"person,omitempty"`
	Prompt        string            `yaml:"prompt,omitempty"`
	FirstPrompt   string            `yaml:"first_prompt,omitempty"`
	Source        string            `yaml:"source,omitempty"`
	Code          string            `yaml:"code,omitempty"`
	Expression    string            `yaml:"expression,omitempty"`
	File          string            `yaml:"file,omitempty"`
	FileFormat    string            `yaml:"file_format,omitempty"`
	Forget        string            `yaml:"forget,omitempty"`
	MaxIterations int               `yaml:"max_iterations,omitempty"`
	Mode          string            `yaml:"mode,omitempty"`
	ConditionType string            `yaml:"condition_type,omitempty"`
	SubType       string            `yaml:"sub_type,omitempty"`
	Data          map[string]any    `yaml:"data,omitempty"`
	Handles       []lightHandle     `yaml:"handles,omitempty"`
	Connections   []lightConnection `yaml:"connections,omitempty"`
}

type lightHandle struct {
	Label          string `yaml:"label"`
	Direction      string `yaml:"direction"`
	DataType       string `yaml:"data_type,omitempty"`
	Position       string `yaml:"position,omitempty"`
	MaxConnections *int   `yaml:"max_connections,omitempty"`
}

type lightConnection struct {
	ID            string           `yaml:"id,omitempty"`
	To            string           `yaml:"to"`
	Label         string           `yaml:"label,omitempty"`
	ContentType   string           `yaml:"content_type,omitempty"`
	Branch        *bool            `yaml:"branch,omitempty"`
	SourceHandle  string           `yaml:"source_handle,omitempty"`
	TargetHandle  string           `yaml:"target_handle,omitempty"`
	ControlOffset *diagramkit.Vec2 `yaml:"control_offset,omitempty"`
	Data          map[string]any   `yaml:"data,omitempty"`
}

// stepField ties a string step field to its node data key.
type stepField struct {
	key string
	dst *string
}

func (s *lightStep) stringFields(kind diagramkit.NodeKind) []stepField {
	return []stepField{
		{diagramkit.DataLabel, &s.Label},
		{diagramkit.DataPersonID, &s.Person},
		{promptKey(kind), &s.Prompt},
		{nodes.KeyFirstOnlyPrompt, &s.FirstPrompt},
		{nodes.KeySourceDetails, &s.Source},
		{nodes.KeyCode, &s.Code},
		{nodes.KeyExpression, &s.Expression},
		{nodes.KeyFilePath, &s.File},
		{nodes.KeyFileFormat, &s.FileFormat},
		{nodes.KeyForgettingMode, &s.Forget},
		{nodes.KeyOperation, &s.Mode},
		{nodes.KeyConditionType, &s.ConditionType},
		{nodes.KeySubType, &s.SubType},
	}
}

// promptKey is the data key behind a step's prompt field.
func promptKey(kind diagramkit.NodeKind) string {
	if kind == diagramkit.KindPersonJob {
		return nodes.KeyDefaultPrompt
	}
	return nodes.KeyPrompt
}

// iterationKey is the data key behind a step's max_iterations field.
func iterationKey(kind diagramkit.NodeKind) string {
	if kind == diagramkit.KindCondition {
		return nodes.KeyMaxIterations
	}
	return nodes.KeyMaxIteration
}

// Serialize implements Converter.
func (c *LightConverter) Serialize(d diagramkit.Diagram) ([]byte, error) {
	d, err := c.opts.normalize(d)
	if err != nil {
		return nil, err
	}

	doc := lightDoc{Version: LightVersion, Workflow: make([]lightStep, 0, len(d.Nodes))}
	if md := d.Metadata; md != nil && (md.ID != "" || md.Name != "" || md.Description != "") {
		doc.Metadata = &lightMetadata{ID: string(md.ID), Name: md.Name, Description: md.Description}
	}

	keys := make([]lightAPIKey, 0, len(d.APIKeys))
	for _, k := range d.APIKeys {
		keys = append(keys, lightAPIKey{ID: string(k.ID), Service: k.Service, Name: k.Label, MaskedKey: k.MaskedKey})
	}
	if doc.APIKeys, err = mappingOf(keys, func(k lightAPIKey) string { return k.ID }); err != nil {
		return nil, err
	}

	persons := make([]lightPerson, 0, len(d.Persons))
	for _, p := range d.Persons {
		persons = append(persons, lightPerson{
			ID:             string(p.ID),
			Label:          p.Label,
			Model:          p.LLMConfig.Model,
			Service:        p.LLMConfig.Service,
			APIKeyID:       string(p.LLMConfig.APIKeyID),
			System:         p.LLMConfig.SystemPrompt,
			Temperature:    p.LLMConfig.Temperature,
			MaxTokens:      p.LLMConfig.MaxTokens,
			ForgettingMode: p.LLMConfig.ForgettingMode,
		})
	}
	if doc.Persons, err = mappingOf(persons, func(p lightPerson) string { return p.ID }); err != nil {
		return nil, err
	}

	known := make(map[diagramkit.NodeID]bool, len(d.Nodes))
	for _, n := range d.Nodes {
		known[n.ID] = true
	}
	outgoing := make(map[diagramkit.NodeID][]lightConnection)
	for _, a := range d.Arrows {
		src, srcErr := diagramkit.ParseHandleID(a.Source)
		dst, dstErr := diagramkit.ParseHandleID(a.Target)
		if srcErr != nil || dstErr != nil || !known[src.NodeID] || !known[dst.NodeID] {
			c.warn("arrow dropped: endpoint does not resolve", a)
			continue
		}
		outgoing[src.NodeID] = append(outgoing[src.NodeID], toConnection(a, src, dst))
	}

	for _, n := range d.Nodes {
		step := c.toStep(n, d.HandlesOf(n.ID))
		step.Connections = outgoing[n.ID]
		doc.Workflow = append(doc.Workflow, step)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode light yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode light yaml: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *LightConverter) warn(msg string, a diagramkit.Arrow) {
	if c.opts.logger == nil {
		return
	}
	c.opts.logger.Warn(msg,
		slog.String("format", Light),
		slog.String("arrow_id", string(a.ID)),
		slog.String("source", string(a.Source)),
		slog.String("target", string(a.Target)),
	)
}

func (c *LightConverter) toStep(n diagramkit.Node, handles []diagramkit.Handle) lightStep {
	step := lightStep{
		ID:       string(n.ID),
		Type:     string(n.Type),
		Position: c.snap(n.Position),
	}

	data := diagramkit.CloneData(n.Data)
	for _, f := range step.stringFields(n.Type) {
		if v, ok := data[f.key].(string); ok && v != "" {
			*f.dst = v
			delete(data, f.key)
		}
	}
	if v, ok := wholeInt(data[iterationKey(n.Type)]); ok && v > 0 {
		step.MaxIterations = v
		delete(data, iterationKey(n.Type))
	}
	if len(data) > 0 {
		step.Data = data
	}

	if !sameHandles(handles, c.opts.catalog.DefaultHandles(n.ID, n.Type)) {
		for _, h := range handles {
			step.Handles = append(step.Handles, lightHandle{
				Label:          h.Label,
				Direction:      string(h.Direction),
				DataType:       string(h.DataType),
				Position:       h.Position,
				MaxConnections: h.MaxConnections,
			})
		}
	}
	return step
}

func toConnection(a diagramkit.Arrow, src, dst diagramkit.HandleRef) lightConnection {
	conn := lightConnection{
		ID:          string(a.ID),
		To:          string(dst.NodeID),
		Label:       a.Label,
		ContentType: a.ContentType,
		Branch:      a.Branch,
	}
	if src.Label != nodes.HandleDefault {
		conn.SourceHandle = src.Label
	}
	if dst.Label != nodes.HandleDefault {
		conn.TargetHandle = dst.Label
	}

	data := diagramkit.CloneData(a.Data)
	x, okX := toFloat(data[diagramkit.DataControlOffsetX])
	y, okY := toFloat(data[diagramkit.DataControlOffsetY])
	if okX && okY {
		conn.ControlOffset = &diagramkit.Vec2{X: x, Y: y}
		delete(data, diagramkit.DataControlOffsetX)
		delete(data, diagramkit.DataControlOffsetY)
	}
	if len(data) > 0 {
		conn.Data = data
	}
	return conn
}

func (c *LightConverter) snap(p diagramkit.Vec2) diagramkit.Vec2 {
	if c.opts.grid <= 0 {
		return p
	}
	g := c.opts.grid
	return diagramkit.Vec2{X: math.Round(p.X/g) * g, Y: math.Round(p.Y/g) * g}
}

// Deserialize implements Converter.
func (c *LightConverter) Deserialize(data []byte) (diagramkit.Diagram, error) {
	var doc lightDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return diagramkit.Diagram{}, invalid(Light, err)
	}
	if doc.Workflow == nil {
		return diagramkit.Diagram{}, invalid(Light, errors.New("missing workflow"))
	}

	var d diagramkit.Diagram
	if doc.Metadata != nil {
		d.Metadata = &diagramkit.Metadata{
			ID:          diagramkit.DiagramID(doc.Metadata.ID),
			Name:        doc.Metadata.Name,
			Description: doc.Metadata.Description,
		}
	}

	keys, err := pairsOf(&doc.APIKeys, func(k *lightAPIKey, id string) { k.ID = id })
	if err != nil {
		return diagramkit.Diagram{}, invalid(Light, fmt.Errorf("apiKeys: %w", err))
	}
	for _, k := range keys {
		d.APIKeys = append(d.APIKeys, diagramkit.APIKey{
			ID:        diagramkit.APIKeyID(k.ID),
			Label:     k.Name,
			Service:   k.Service,
			MaskedKey: k.MaskedKey,
		})
	}

	persons, err := pairsOf(&doc.Persons, func(p *lightPerson, id string) {
		if p.ID == "" {
			p.ID = id
		}
	})
	if err != nil {
		return diagramkit.Diagram{}, invalid(Light, fmt.Errorf("persons: %w", err))
	}
	for _, p := range persons {
		d.Persons = append(d.Persons, diagramkit.Person{
			ID:    diagramkit.PersonID(p.ID),
			Label: p.Label,
			LLMConfig: diagramkit.LLMConfig{
				Service:        p.Service,
				Model:          p.Model,
				APIKeyID:       diagramkit.APIKeyID(p.APIKeyID),
				SystemPrompt:   p.System,
				Temperature:    p.Temperature,
				MaxTokens:      p.MaxTokens,
				ForgettingMode: p.ForgettingMode,
			},
		})
	}

	// Ids first so connections can point forward.
	kinds := make(map[diagramkit.NodeID]diagramkit.NodeKind, len(doc.Workflow))
	for i := range doc.Workflow {
		step := &doc.Workflow[i]
		kind := diagramkit.NodeKind(step.Type)
		if parsed, err := diagramkit.ParseNodeKind(step.Type); err == nil {
			kind = parsed
		}
		if step.ID == "" {
			step.ID = string(c.opts.ids.NodeID(kind))
		}
		kinds[diagramkit.NodeID(step.ID)] = kind
	}

	handleSet := make(map[diagramkit.HandleID]bool)
	addHandle := func(h diagramkit.Handle) {
		if handleSet[h.ID] {
			return
		}
		handleSet[h.ID] = true
		d.Handles = append(d.Handles, h)
	}

	skipped := 0
	for _, step := range doc.Workflow {
		id := diagramkit.NodeID(step.ID)
		kind := kinds[id]
		d.Nodes = append(d.Nodes, diagramkit.Node{
			ID:       id,
			Type:     kind,
			Position: step.Position,
			Data:     stepData(&step, kind),
		})
		for _, h := range c.stepHandles(id, kind, step.Handles) {
			addHandle(h)
		}
	}

	for _, step := range doc.Workflow {
		from := diagramkit.NodeID(step.ID)
		for _, conn := range step.Connections {
			to := diagramkit.NodeID(conn.To)
			if _, ok := kinds[to]; !ok {
				skipped++
				if c.opts.logger != nil {
					c.opts.logger.Warn("connection dropped: unknown target step",
						slog.String("format", Light),
						slog.String("from", string(from)),
						slog.String("to", conn.To),
					)
				}
				continue
			}

			srcLabel := conn.SourceHandle
			if srcLabel == "" {
				srcLabel = defaultSourceHandle(kinds[from], conn.Branch)
			}
			dstLabel := conn.TargetHandle
			if dstLabel == "" {
				dstLabel = nodes.HandleDefault
			}
			src := diagramkit.NewHandle(from, srcLabel, diagramkit.Output, diagramkit.TypeAny)
			dst := diagramkit.NewHandle(to, dstLabel, diagramkit.Input, diagramkit.TypeAny)
			addHandle(src)
			addHandle(dst)

			d.Arrows = append(d.Arrows, fromConnection(conn, src.ID, dst.ID, c.opts.ids.ArrowID))
		}
	}
	if skipped > 0 {
		c.opts.metrics.RecordArrowsSkipped(context.Background(), Light, skipped)
	}

	return c.opts.normalize(d)
}

func stepData(step *lightStep, kind diagramkit.NodeKind) map[string]any {
	data := diagramkit.CloneData(step.Data)
	if data == nil {
		data = make(map[string]any)
	}
	for _, f := range step.stringFields(kind) {
		if *f.dst != "" {
			data[f.key] = *f.dst
		}
	}
	if step.MaxIterations > 0 {
		data[iterationKey(kind)] = step.MaxIterations
	}
	return data
}

func (c *LightConverter) stepHandles(id diagramkit.NodeID, kind diagramkit.NodeKind, explicit []lightHandle) []diagramkit.Handle {
	if len(explicit) == 0 {
		return c.opts.catalog.DefaultHandles(id, kind)
	}
	handles := make([]diagramkit.Handle, 0, len(explicit))
	for _, lh := range explicit {
		dir, err := diagramkit.ParseDirection(lh.Direction)
		if err != nil {
			continue
		}
		dt, err := diagramkit.ParseDataType(lh.DataType)
		if err != nil {
			dt = diagramkit.TypeAny
		}
		h := diagramkit.NewHandle(id, lh.Label, dir, dt)
		h.Position = lh.Position
		h.MaxConnections = lh.MaxConnections
		handles = append(handles, h)
	}
	return handles
}

// defaultSourceHandle picks the output handle for a connection that names
// none. Conditions have no "default" output, so the branch decides.
func defaultSourceHandle(kind diagramkit.NodeKind, branch *bool) string {
	if kind != diagramkit.KindCondition {
		return nodes.HandleDefault
	}
	if branch != nil && !*branch {
		return nodes.HandleFalse
	}
	return nodes.HandleTrue
}

func fromConnection(conn lightConnection, src, dst diagramkit.HandleID, newID func() diagramkit.ArrowID) diagramkit.Arrow {
	a := diagramkit.Arrow{
		ID:          diagramkit.ArrowID(conn.ID),
		Source:      src,
		Target:      dst,
		Label:       conn.Label,
		ContentType: conn.ContentType,
		Branch:      conn.Branch,
		Data:        diagramkit.CloneData(conn.Data),
	}
	if a.ID == "" {
		a.ID = newID()
	}
	if conn.ControlOffset != nil {
		if a.Data == nil {
			a.Data = make(map[string]any)
		}
		a.Data[diagramkit.DataControlOffsetX] = conn.ControlOffset.X
		a.Data[diagramkit.DataControlOffsetY] = conn.ControlOffset.Y
	}
	return a
}

// Confidence implements Detector.
func (c *LightConverter) Confidence(data []byte) float64 {
	var sniff struct {
		Version  any   `yaml:"version"`
		Workflow []any `yaml:"workflow"`
	}
	if err := yaml.Unmarshal(data, &sniff); err != nil || sniff.Workflow == nil {
		return 0
	}
	if v, ok := sniff.Version.(string); ok && v == LightVersion {
		return 1
	}
	return 0.8
}

// mappingOf encodes items as an ordered YAML mapping keyed by key(item).
// No items yield the zero node, which omitempty leaves out.
func mappingOf[T any](items []T, key func(T) string) (yaml.Node, error) {
	if len(items) == 0 {
		return yaml.Node{}, nil
	}
	m := yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, item := range items {
		k := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key(item)}
		v := &yaml.Node{}
		if err := v.Encode(item); err != nil {
			return yaml.Node{}, fmt.Errorf("encode %q: %w", key(item), err)
		}
		m.Content = append(m.Content, k, v)
	}
	return m, nil
}

// pairsOf decodes an ordered YAML mapping, or a sequence, into items.
func pairsOf[T any](m *yaml.Node, fill func(*T, string)) ([]T, error) {
	if m == nil || m.Kind == 0 {
		return nil, nil
	}
	switch m.Kind {
	case yaml.SequenceNode:
		var items []T
		if err := m.Decode(&items); err != nil {
			return nil, err
		}
		return items, nil
	case yaml.MappingNode:
		items := make([]T, 0, len(m.Content)/2)
		for i := 0; i+1 < len(m.Content); i += 2 {
			var item T
			if err := m.Content[i+1].Decode(&item); err != nil {
				return nil, fmt.Errorf("%q: %w", m.Content[i].Value, err)
			}
			fill(&item, m.Content[i].Value)
			items = append(items, item)
		}
		return items, nil
	case yaml.ScalarNode:
		if m.Tag == "!!null" {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("line %d: expected mapping or sequence", m.Line)
}

func sameHandles(a, b []diagramkit.Handle) bool {
	return slices.EqualFunc(a, b, func(x, y diagramkit.Handle) bool {
		if x.ID != y.ID || x.DataType != y.DataType || x.Position != y.Position {
			return false
		}
		if (x.MaxConnections == nil) != (y.MaxConnections == nil) {
			return false
		}
		return x.MaxConnections == nil || *x.MaxConnections == *y.MaxConnections
	})
}

func wholeInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == math.Trunc(n) {
			return int(n), true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
