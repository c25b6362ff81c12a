package format

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/nodes"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/observability"
)

// Defaults for persons created from an llm document.
const (
	DefaultModel      = "gpt-4"
	DefaultService    = "openai"
	DefaultAgentLabel = "Default Assistant"
)

// Layout spacing for imported llm documents.
const (
	layoutColumn = 250
	layoutRow    = 150
)

// LLMConverter reads and writes the compact YAML form meant for hand or
// model authoring:
//
//	flow:
//	  - start -> analyzer: "topic"
//	  - analyzer -> writer [if technical]: "analysis"
//	prompts:
//	  analyzer: "Classify {{topic}}"
//	agents:
//	  analyzer: {model: gpt-4, system: "You categorize topics."}
//	data:
//	  loader: input.csv
//	types:
//	  writer: person_batch_job
//
// Node kinds are inferred from names, prompts and conditions unless
// types says otherwise. Ids and positions are generated on import, so
// only structure and content survive a round trip.
type LLMConverter struct {
	opts options
}

// NewLLM returns the llm YAML converter.
func NewLLM(opts ...Option) *LLMConverter {
	return &LLMConverter{opts: buildOptions(opts)}
}

// Format implements Converter.
func (c *LLMConverter) Format() string { return LLM }

// llmDoc keeps each section as a raw node. The fields are values: yaml.v3
// only captures a node in place when the target type is yaml.Node itself.
type llmDoc struct {
	Flow    yaml.Node `yaml:"flow"`
	Prompts yaml.Node `yaml:"prompts"`
	Agents  yaml.Node `yaml:"agents"`
	Data    yaml.Node `yaml:"data"`
	Types   yaml.Node `yaml:"types"`
}

type llmAgent struct {
	Model       string   `yaml:"model,omitempty"`
	Service     string   `yaml:"service,omitempty"`
	System      string   `yaml:"system,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty"`
	MaxTokens   *int     `yaml:"max_tokens,omitempty"`
}

// llmNode is the per-name state built while importing.
type llmNode struct {
	name     string
	kind     diagramkit.NodeKind
	id       diagramkit.NodeID
	incoming []flowEdge
	outgoing []flowEdge
}

// Confidence implements Detector. A flow section plus prompts or agents
// is the signature of the format.
func (c *LLMConverter) Confidence(data []byte) float64 {
	var sniff map[string]any
	if err := yaml.Unmarshal(data, &sniff); err != nil {
		return 0
	}
	if _, ok := sniff["flow"]; !ok {
		return 0
	}
	_, prompts := sniff["prompts"]
	_, agents := sniff["agents"]
	if prompts || agents {
		return 0.95
	}
	return 0.4
}

// Deserialize implements Converter.
func (c *LLMConverter) Deserialize(data []byte) (diagramkit.Diagram, error) {
	var doc llmDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return diagramkit.Diagram{}, invalid(LLM, err)
	}
	if isEmptyNode(&doc.Flow) {
		return diagramkit.Diagram{}, invalid(LLM, errors.New("missing flow"))
	}

	edges, bad, err := parseFlow(&doc.Flow)
	if err != nil {
		return diagramkit.Diagram{}, invalid(LLM, err)
	}
	for _, line := range bad {
		if c.opts.logger != nil {
			c.opts.logger.Warn("flow line ignored", slog.String("format", LLM), slog.String("line", line))
		}
	}
	if len(bad) > 0 {
		c.opts.metrics.RecordArrowsSkipped(context.Background(), LLM, len(bad))
	}

	prompts, err := scalarPairs(&doc.Prompts)
	if err != nil {
		return diagramkit.Diagram{}, invalid(LLM, fmt.Errorf("prompts: %w", err))
	}
	values, err := scalarPairs(&doc.Data)
	if err != nil {
		return diagramkit.Diagram{}, invalid(LLM, fmt.Errorf("data: %w", err))
	}
	types, err := scalarPairs(&doc.Types)
	if err != nil {
		return diagramkit.Diagram{}, invalid(LLM, fmt.Errorf("types: %w", err))
	}
	agents, err := agentPairs(&doc.Agents)
	if err != nil {
		return diagramkit.Diagram{}, invalid(LLM, fmt.Errorf("agents: %w", err))
	}

	graph := buildLLMGraph(edges, prompts, types)

	var d diagramkit.Diagram

	// Persons: one per agent, plus a shared default for prompt nodes
	// without their own agent.
	personOf := make(map[string]diagramkit.PersonID)
	for _, a := range agents.items {
		p := c.newPerson(titleCase(a.key), a.value)
		personOf[a.key] = p.ID
		d.Persons = append(d.Persons, p)
	}
	var defaultPerson diagramkit.PersonID
	for _, n := range graph.ordered {
		if n.kind != diagramkit.KindPersonJob {
			continue
		}
		if _, ok := personOf[n.name]; ok {
			continue
		}
		if defaultPerson == "" {
			p := c.newPerson(DefaultAgentLabel, llmAgent{})
			defaultPerson = p.ID
			d.Persons = append(d.Persons, p)
		}
	}

	// One API key per service.
	keyOf := make(map[string]diagramkit.APIKeyID)
	for i, p := range d.Persons {
		svc := p.LLMConfig.Service
		id, ok := keyOf[svc]
		if !ok {
			id = c.opts.ids.APIKeyID()
			keyOf[svc] = id
			d.APIKeys = append(d.APIKeys, diagramkit.APIKey{
				ID:      id,
				Label:   titleCase(svc) + " API Key",
				Service: svc,
			})
		}
		d.Persons[i].LLMConfig.APIKeyID = id
	}

	positions := layout(graph)
	handleSet := make(map[diagramkit.HandleID]bool)
	addHandle := func(h diagramkit.Handle) {
		if !handleSet[h.ID] {
			handleSet[h.ID] = true
			d.Handles = append(d.Handles, h)
		}
	}

	for _, n := range graph.ordered {
		n.id = c.opts.ids.NodeID(n.kind)
		data := map[string]any{diagramkit.DataLabel: titleCase(n.name)}

		switch n.kind {
		case diagramkit.KindPersonJob:
			if p, ok := prompts.lookup(n.name); ok {
				data[nodes.KeyDefaultPrompt] = p
			}
			if pid, ok := personOf[n.name]; ok {
				data[diagramkit.DataPersonID] = string(pid)
			} else {
				data[diagramkit.DataPersonID] = string(defaultPerson)
			}
		case diagramkit.KindPersonBatchJob, diagramkit.KindUserResponse:
			if p, ok := prompts.lookup(n.name); ok {
				data[nodes.KeyPrompt] = p
			}
			if pid, ok := personOf[n.name]; ok {
				data[diagramkit.DataPersonID] = string(pid)
			}
		case diagramkit.KindCondition:
			data[nodes.KeyConditionType] = nodes.ConditionExpression
			if v, ok := values.lookup(n.name); ok {
				data[nodes.KeyExpression] = v
			} else {
				data[nodes.KeyExpression] = n.name + "_check"
			}
		case diagramkit.KindDB:
			if v, ok := values.lookup(n.name); ok {
				data[nodes.KeySubType] = dbSubType(v)
				data[nodes.KeySourceDetails] = v
			}
		case diagramkit.KindJob:
			if v, ok := values.lookup(n.name); ok {
				data[nodes.KeyCode] = v
			}
		case diagramkit.KindEndpoint:
			if v, ok := values.lookup(n.name); ok {
				data[nodes.KeySaveToFile] = true
				data[nodes.KeyFilePath] = v
			}
		}

		d.Nodes = append(d.Nodes, diagramkit.Node{
			ID:       n.id,
			Type:     n.kind,
			Position: positions[n.name],
			Data:     data,
		})
		for _, h := range c.opts.catalog.DefaultHandles(n.id, n.kind) {
			addHandle(h)
		}
	}

	for _, e := range edges {
		src, dst := graph.byName[e.Source], graph.byName[e.Target]

		srcLabel := nodes.HandleDefault
		var branch *bool
		if e.Condition != "" {
			b := !e.negated()
			branch = &b
		}
		if src.kind == diagramkit.KindCondition {
			srcLabel = nodes.HandleTrue
			if branch != nil && !*branch {
				srcLabel = nodes.HandleFalse
			}
		}
		sh := diagramkit.NewHandle(src.id, srcLabel, diagramkit.Output, diagramkit.TypeAny)
		th := diagramkit.NewHandle(dst.id, nodes.HandleDefault, diagramkit.Input, diagramkit.TypeAny)
		addHandle(sh)
		addHandle(th)

		a := diagramkit.Arrow{
			ID:          c.opts.ids.ArrowID(),
			Source:      sh.ID,
			Target:      th.ID,
			Label:       e.Variable,
			ContentType: "raw_text",
			Branch:      branch,
		}
		if e.Variable != "" {
			a.ContentType = "variable"
		}
		d.Arrows = append(d.Arrows, a)
	}

	observability.LogImportComplete(c.opts.logger, len(d.Nodes), len(d.Arrows), len(d.Persons), len(d.APIKeys), len(bad))
	return d, nil
}

func (c *LLMConverter) newPerson(label string, a llmAgent) diagramkit.Person {
	model, service := a.Model, a.Service
	if model == "" {
		model = DefaultModel
	}
	if service == "" {
		service = DefaultService
	}
	return diagramkit.Person{
		ID:    c.opts.ids.PersonID(),
		Label: label,
		LLMConfig: diagramkit.LLMConfig{
			Service:      service,
			Model:        model,
			SystemPrompt: a.System,
			Temperature:  a.Temperature,
			MaxTokens:    a.MaxTokens,
		},
	}
}

func dbSubType(source string) string {
	for _, ext := range []string{".txt", ".json", ".csv"} {
		if strings.HasSuffix(source, ext) {
			return nodes.DBFile
		}
	}
	return nodes.DBFixedPrompt
}

// llmGraph indexes the names of an llm document in first-seen order.
type llmGraph struct {
	ordered []*llmNode
	byName  map[string]*llmNode
}

func buildLLMGraph(edges []flowEdge, prompts, types pairList) *llmGraph {
	g := &llmGraph{byName: make(map[string]*llmNode)}
	touch := func(name string) *llmNode {
		if n, ok := g.byName[name]; ok {
			return n
		}
		n := &llmNode{name: name}
		g.byName[name] = n
		g.ordered = append(g.ordered, n)
		return n
	}

	for _, e := range edges {
		src, dst := touch(e.Source), touch(e.Target)
		src.outgoing = append(src.outgoing, e)
		dst.incoming = append(dst.incoming, e)
	}
	// Names outside the flow still become nodes.
	for _, p := range types.items {
		touch(p.key)
	}
	for _, p := range prompts.items {
		touch(p.key)
	}

	for _, n := range g.ordered {
		n.kind = inferKind(n, prompts)
		if t, ok := types.lookup(n.name); ok {
			if kind, err := diagramkit.ParseNodeKind(t); err == nil {
				n.kind = kind
			}
		}
	}
	return g
}

// inferKind guesses a node kind from its name, whether it has a prompt,
// and whether its outgoing edges carry conditions.
func inferKind(n *llmNode, prompts pairList) diagramkit.NodeKind {
	for _, e := range n.outgoing {
		if e.Condition != "" {
			return diagramkit.KindCondition
		}
	}
	lower := strings.ToLower(n.name)
	_, hasPrompt := prompts.lookup(n.name)
	switch {
	case lower == "start":
		return diagramkit.KindStart
	case lower == "end":
		return diagramkit.KindEndpoint
	case hasPrompt:
		return diagramkit.KindPersonJob
	case strings.Contains(lower, "condition"), strings.Contains(lower, "check"), strings.Contains(lower, "if"):
		return diagramkit.KindCondition
	case strings.Contains(lower, "data"), strings.Contains(lower, "file"), strings.Contains(lower, "load"):
		return diagramkit.KindDB
	}
	return diagramkit.KindPersonJob
}

// layout places nodes breadth-first from the roots: one column per level,
// one row per node within a level. Nodes only reachable through cycles
// are appended to the first column.
func layout(g *llmGraph) map[string]diagramkit.Vec2 {
	type entry struct {
		name         string
		level, index int
	}

	var queue []entry
	for _, n := range g.ordered {
		if n.kind == diagramkit.KindStart || len(n.incoming) == 0 {
			queue = append(queue, entry{name: n.name})
		}
	}
	if len(queue) == 0 && len(g.ordered) > 0 {
		queue = append(queue, entry{name: g.ordered[0].name})
	}

	positions := make(map[string]diagramkit.Vec2, len(g.ordered))
	levelCounts := map[int]int{0: len(queue)}
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		if _, seen := positions[e.name]; seen {
			continue
		}
		positions[e.name] = diagramkit.Vec2{X: float64(e.level * layoutColumn), Y: float64(e.index * layoutRow)}

		for _, out := range g.byName[e.name].outgoing {
			if _, seen := positions[out.Target]; seen {
				continue
			}
			next := e.level + 1
			queue = append(queue, entry{name: out.Target, level: next, index: levelCounts[next]})
			levelCounts[next]++
		}
	}

	for _, n := range g.ordered {
		if _, ok := positions[n.name]; !ok {
			positions[n.name] = diagramkit.Vec2{X: 0, Y: float64(levelCounts[0] * layoutRow)}
			levelCounts[0]++
		}
	}
	return positions
}

// Serialize implements Converter.
func (c *LLMConverter) Serialize(d diagramkit.Diagram) ([]byte, error) {
	d, err := c.opts.normalize(d)
	if err != nil {
		return nil, err
	}

	names := make(map[diagramkit.NodeID]string, len(d.Nodes))
	kinds := make(map[diagramkit.NodeID]diagramkit.NodeKind, len(d.Nodes))
	used := make(map[string]bool, len(d.Nodes))
	for _, n := range d.Nodes {
		base := n.Label()
		if base == "" {
			base = string(n.ID)
		}
		names[n.ID] = uniqueName(flowName(base), used)
		kinds[n.ID] = n.Type
	}
	persons := make(map[diagramkit.PersonID]diagramkit.Person, len(d.Persons))
	for _, p := range d.Persons {
		persons[p.ID] = p
	}

	var edges []flowEdge
	inFlow := make(map[string]bool)
	for _, a := range d.Arrows {
		src, srcErr := diagramkit.ParseHandleID(a.Source)
		dst, dstErr := diagramkit.ParseHandleID(a.Target)
		srcName, srcOK := names[src.NodeID]
		dstName, dstOK := names[dst.NodeID]
		if srcErr != nil || dstErr != nil || !srcOK || !dstOK {
			continue
		}
		e := flowEdge{Source: srcName, Target: dstName}
		if !strings.Contains(a.Label, `"`) {
			e.Variable = a.Label
		}
		if branch, ok := arrowBranch(a, src.Label); ok {
			e.Condition = "true"
			if !branch {
				e.Condition = "not true"
			}
		}
		edges = append(edges, e)
		inFlow[srcName], inFlow[dstName] = true, true
	}

	var prompts, agents, values, types pairList
	for _, n := range d.Nodes {
		name := names[n.ID]
		if p, ok := n.Data[promptKey(n.Type)].(string); ok && p != "" {
			prompts.add(name, p)
		}
		if pid := n.PersonID(); pid != "" {
			if p, ok := persons[pid]; ok && p.Label != DefaultAgentLabel {
				agents.add(name, llmAgent{
					Model:       p.LLMConfig.Model,
					Service:     p.LLMConfig.Service,
					System:      p.LLMConfig.SystemPrompt,
					Temperature: p.LLMConfig.Temperature,
					MaxTokens:   p.LLMConfig.MaxTokens,
				})
			}
		}
		if v := nodeValue(n); v != "" {
			values.add(name, v)
		}
	}

	// Emit a type wherever inference on the written document would differ,
	// or the node would otherwise vanish.
	graph := buildLLMGraph(edges, prompts, pairList{})
	for _, n := range d.Nodes {
		name := names[n.ID]
		_, hasPrompt := prompts.lookup(name)
		inferred := graph.byName[name]
		if inferred == nil || inferred.kind != n.Type || (!inFlow[name] && !hasPrompt) {
			types.add(name, string(n.Type))
		}
	}

	root := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	flow := make([]string, 0, len(edges))
	for _, e := range edges {
		flow = append(flow, e.String())
	}
	sections := []struct {
		key   string
		value any
		empty bool
	}{
		{"flow", flow, false},
		{"prompts", prompts, len(prompts.items) == 0},
		{"agents", agents, len(agents.items) == 0},
		{"data", values, len(values.items) == 0},
		{"types", types, len(types.items) == 0},
	}
	for _, s := range sections {
		if s.empty {
			continue
		}
		v := &yaml.Node{}
		if pl, ok := s.value.(pairList); ok {
			node, err := pl.node()
			if err != nil {
				return nil, err
			}
			v = node
		} else if err := v.Encode(s.value); err != nil {
			return nil, fmt.Errorf("encode %s: %w", s.key, err)
		}
		root.Content = append(root.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s.key}, v)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return nil, fmt.Errorf("encode llm yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode llm yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// arrowBranch returns the branch an arrow stands for: its explicit Branch,
// else the true/false handle it leaves from.
func arrowBranch(a diagramkit.Arrow, sourceHandle string) (bool, bool) {
	if a.Branch != nil {
		return *a.Branch, true
	}
	switch sourceHandle {
	case nodes.HandleTrue:
		return true, true
	case nodes.HandleFalse:
		return false, true
	}
	return false, false
}

// nodeValue is the single data field the data section carries per kind.
func nodeValue(n diagramkit.Node) string {
	var key string
	switch n.Type {
	case diagramkit.KindDB:
		key = nodes.KeySourceDetails
	case diagramkit.KindCondition:
		key = nodes.KeyExpression
	case diagramkit.KindJob:
		key = nodes.KeyCode
	case diagramkit.KindEndpoint:
		key = nodes.KeyFilePath
	default:
		return ""
	}
	s, _ := n.Data[key].(string)
	return s
}

// flowName turns a label into a flow identifier: lower case, runs of
// anything but letters, digits and '_' collapsed to '_'.
func flowName(label string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(label) {
		if r == '_' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	if b.Len() == 0 {
		return "node"
	}
	return b.String()
}

func uniqueName(name string, used map[string]bool) string {
	candidate := name
	for i := 2; used[candidate]; i++ {
		candidate = fmt.Sprintf("%s_%d", name, i)
	}
	used[candidate] = true
	return candidate
}

// titleCase turns "topic_analyzer" into "Topic Analyzer".
func titleCase(name string) string {
	words := strings.Fields(strings.ReplaceAll(name, "_", " "))
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// pairList is an ordered string-keyed mapping.
type pairList struct {
	items []pair
}

type pair struct {
	key   string
	value any
}

func (p *pairList) add(key string, value any) {
	p.items = append(p.items, pair{key: key, value: value})
}

func (p pairList) lookup(key string) (string, bool) {
	for _, it := range p.items {
		if it.key == key {
			s, ok := it.value.(string)
			return s, ok
		}
	}
	return "", false
}

func (p pairList) node() (*yaml.Node, error) {
	m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, it := range p.items {
		v := &yaml.Node{}
		if err := v.Encode(it.value); err != nil {
			return nil, fmt.Errorf("encode %q: %w", it.key, err)
		}
		m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: it.key}, v)
	}
	return m, nil
}

// isEmptyNode reports whether a section is absent or explicitly null.
func isEmptyNode(n *yaml.Node) bool {
	return n == nil || n.Kind == 0 || (n.Kind == yaml.ScalarNode && n.Tag == "!!null")
}

// scalarPairs reads a mapping of names to scalar values.
func scalarPairs(n *yaml.Node) (pairList, error) {
	var out pairList
	if isEmptyNode(n) {
		return out, nil
	}
	if n.Kind != yaml.MappingNode {
		return out, fmt.Errorf("line %d: expected a mapping", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i].Value, n.Content[i+1]
		if val.Kind != yaml.ScalarNode {
			return out, fmt.Errorf("line %d: %q must be a string", val.Line, key)
		}
		out.add(key, val.Value)
	}
	return out, nil
}

// agentPairs reads the agents section. Each value is either a bare system
// prompt or an llmAgent mapping.
func agentPairs(n *yaml.Node) (agentList, error) {
	var out agentList
	if isEmptyNode(n) {
		return out, nil
	}
	if n.Kind != yaml.MappingNode {
		return out, fmt.Errorf("line %d: expected a mapping", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i].Value, n.Content[i+1]
		var a llmAgent
		switch val.Kind {
		case yaml.ScalarNode:
			a.System = val.Value
		case yaml.MappingNode:
			if err := val.Decode(&a); err != nil {
				return out, fmt.Errorf("%q: %w", key, err)
			}
		default:
			return out, fmt.Errorf("line %d: unsupported agent %q", val.Line, key)
		}
		out.items = append(out.items, agentPair{key: key, value: a})
	}
	return out, nil
}

type agentList struct {
	items []agentPair
}

type agentPair struct {
	key   string
	value llmAgent
}
