package nodes

import (
	"fmt"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/config"
)

// Data keys used by the built-in kinds.
const (
	KeyLabel             = diagramkit.DataLabel
	KeyFlipped           = diagramkit.DataFlipped
	KeyPersonID          = diagramkit.DataPersonID
	KeyFirstOnlyPrompt   = "firstOnlyPrompt"
	KeyDefaultPrompt     = "defaultPrompt"
	KeyMaxIteration      = "maxIteration"
	KeyForgettingMode    = "forgettingMode"
	KeyPrompt            = "prompt"
	KeyParallelExecution = "parallelExecution"
	KeyAggregateResults  = "aggregateResults"
	KeyConditionType     = "conditionType"
	KeyExpression        = "expression"
	KeyMaxIterations     = "maxIterations"
	KeyLanguage          = "language"
	KeyCode              = "code"
	KeyTimeout           = "timeout"
	KeySaveToFile        = "saveToFile"
	KeyFilePath          = "filePath"
	KeyFileFormat        = "fileFormat"
	KeySubType           = "subType"
	KeyOperation         = "operation"
	KeySourceDetails     = "sourceDetails"
	KeyPageID            = "pageId"
	KeyDatabaseID        = "databaseId"
	KeyCustomData        = "customData"
)

// Condition types.
const (
	ConditionExpression          = "expression"
	ConditionDetectMaxIterations = "detect_max_iterations"
)

// DB sub types.
const (
	DBFile        = "file"
	DBFixedPrompt = "fixed_prompt"
)

// Properties is the typed view of a node's data. The concrete type is
// determined by the node kind; switch on it to handle each kind.
type Properties interface {
	Kind() diagramkit.NodeKind
	isProperties()
}

// StartProps holds start node data.
type StartProps struct {
	Label      string
	CustomData map[string]any
}

// PersonJobProps holds person_job data. FirstOnlyPrompt is sent on the
// first iteration, DefaultPrompt afterwards.
type PersonJobProps struct {
	Label           string
	PersonID        diagramkit.PersonID
	FirstOnlyPrompt string
	DefaultPrompt   string
	MaxIteration    int
	ForgettingMode  string
}

// PersonBatchJobProps holds person_batch_job data.
type PersonBatchJobProps struct {
	Label             string
	PersonID          diagramkit.PersonID
	Prompt            string
	ParallelExecution bool
	AggregateResults  bool
}

// ConditionProps holds condition data.
type ConditionProps struct {
	Label         string
	ConditionType string
	Expression    string
	MaxIterations int
}

// JobProps holds code job data.
type JobProps struct {
	Label    string
	Language string
	Code     string
	Timeout  int
}

// EndpointProps holds endpoint data.
type EndpointProps struct {
	Label      string
	SaveToFile bool
	FilePath   string
	FileFormat string
}

// DBProps holds db data. SourceDetails is a path for DBFile and literal
// text for DBFixedPrompt.
type DBProps struct {
	Label         string
	SubType       string
	Operation     string
	SourceDetails string
}

// UserResponseProps holds user_response data. Timeout is in seconds.
type UserResponseProps struct {
	Label   string
	Prompt  string
	Timeout int
}

// NotionProps holds notion data.
type NotionProps struct {
	Label      string
	Operation  string
	PageID     string
	DatabaseID string
}

func (*StartProps) Kind() diagramkit.NodeKind          { return diagramkit.KindStart }
func (*PersonJobProps) Kind() diagramkit.NodeKind      { return diagramkit.KindPersonJob }
func (*PersonBatchJobProps) Kind() diagramkit.NodeKind { return diagramkit.KindPersonBatchJob }
func (*ConditionProps) Kind() diagramkit.NodeKind      { return diagramkit.KindCondition }
func (*JobProps) Kind() diagramkit.NodeKind            { return diagramkit.KindJob }
func (*EndpointProps) Kind() diagramkit.NodeKind       { return diagramkit.KindEndpoint }
func (*DBProps) Kind() diagramkit.NodeKind             { return diagramkit.KindDB }
func (*UserResponseProps) Kind() diagramkit.NodeKind   { return diagramkit.KindUserResponse }
func (*NotionProps) Kind() diagramkit.NodeKind         { return diagramkit.KindNotion }

func (*StartProps) isProperties()          {}
func (*PersonJobProps) isProperties()      {}
func (*PersonBatchJobProps) isProperties() {}
func (*ConditionProps) isProperties()      {}
func (*JobProps) isProperties()            {}
func (*EndpointProps) isProperties()       {}
func (*DBProps) isProperties()             {}
func (*UserResponseProps) isProperties()   {}
func (*NotionProps) isProperties()         {}

// Decode builds the typed view of data for kind. Missing fields take the
// kind's defaults; mistyped fields are treated as missing.
func Decode(kind diagramkit.NodeKind, data map[string]any) (Properties, error) {
	c := config.New(data)
	label := c.String(KeyLabel, "")

	switch kind {
	case diagramkit.KindStart:
		custom, _ := c.Any(KeyCustomData, nil).(map[string]any)
		return &StartProps{Label: label, CustomData: custom}, nil
	case diagramkit.KindPersonJob:
		return &PersonJobProps{
			Label:           label,
			PersonID:        diagramkit.PersonID(c.String(KeyPersonID, "")),
			FirstOnlyPrompt: c.String(KeyFirstOnlyPrompt, ""),
			DefaultPrompt:   c.String(KeyDefaultPrompt, ""),
			MaxIteration:    c.Int(KeyMaxIteration, 1),
			ForgettingMode:  c.String(KeyForgettingMode, ""),
		}, nil
	case diagramkit.KindPersonBatchJob:
		return &PersonBatchJobProps{
			Label:             label,
			PersonID:          diagramkit.PersonID(c.String(KeyPersonID, "")),
			Prompt:            c.String(KeyPrompt, ""),
			ParallelExecution: c.Bool(KeyParallelExecution, true),
			AggregateResults:  c.Bool(KeyAggregateResults, false),
		}, nil
	case diagramkit.KindCondition:
		return &ConditionProps{
			Label:         label,
			ConditionType: c.String(KeyConditionType, ""),
			Expression:    c.String(KeyExpression, ""),
			MaxIterations: c.Int(KeyMaxIterations, 0),
		}, nil
	case diagramkit.KindJob:
		return &JobProps{
			Label:    label,
			Language: c.String(KeyLanguage, "python"),
			Code:     c.String(KeyCode, ""),
			Timeout:  c.Int(KeyTimeout, 0),
		}, nil
	case diagramkit.KindEndpoint:
		return &EndpointProps{
			Label:      label,
			SaveToFile: c.Bool(KeySaveToFile, false),
			FilePath:   c.String(KeyFilePath, ""),
			FileFormat: c.String(KeyFileFormat, "text"),
		}, nil
	case diagramkit.KindDB:
		return &DBProps{
			Label:         label,
			SubType:       c.String(KeySubType, DBFixedPrompt),
			Operation:     c.String(KeyOperation, "read"),
			SourceDetails: c.String(KeySourceDetails, ""),
		}, nil
	case diagramkit.KindUserResponse:
		return &UserResponseProps{
			Label:   label,
			Prompt:  c.String(KeyPrompt, ""),
			Timeout: c.Int(KeyTimeout, 60),
		}, nil
	case diagramkit.KindNotion:
		return &NotionProps{
			Label:      label,
			Operation:  c.String(KeyOperation, "read_page"),
			PageID:     c.String(KeyPageID, ""),
			DatabaseID: c.String(KeyDatabaseID, ""),
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", diagramkit.ErrUnknownNodeKind, kind)
}

// Encode renders p back into a data map. Empty strings are omitted;
// booleans and non-zero numbers are always written.
func Encode(p Properties) map[string]any {
	m := make(map[string]any)
	put := func(key, val string) {
		if val != "" {
			m[key] = val
		}
	}
	putInt := func(key string, val int) {
		if val != 0 {
			m[key] = val
		}
	}

	switch v := p.(type) {
	case *StartProps:
		put(KeyLabel, v.Label)
		if len(v.CustomData) > 0 {
			m[KeyCustomData] = diagramkit.CloneData(v.CustomData)
		}
	case *PersonJobProps:
		put(KeyLabel, v.Label)
		put(KeyPersonID, string(v.PersonID))
		put(KeyFirstOnlyPrompt, v.FirstOnlyPrompt)
		put(KeyDefaultPrompt, v.DefaultPrompt)
		putInt(KeyMaxIteration, v.MaxIteration)
		put(KeyForgettingMode, v.ForgettingMode)
	case *PersonBatchJobProps:
		put(KeyLabel, v.Label)
		put(KeyPersonID, string(v.PersonID))
		put(KeyPrompt, v.Prompt)
		m[KeyParallelExecution] = v.ParallelExecution
		m[KeyAggregateResults] = v.AggregateResults
	case *ConditionProps:
		put(KeyLabel, v.Label)
		put(KeyConditionType, v.ConditionType)
		put(KeyExpression, v.Expression)
		putInt(KeyMaxIterations, v.MaxIterations)
	case *JobProps:
		put(KeyLabel, v.Label)
		put(KeyLanguage, v.Language)
		put(KeyCode, v.Code)
		putInt(KeyTimeout, v.Timeout)
	case *EndpointProps:
		put(KeyLabel, v.Label)
		m[KeySaveToFile] = v.SaveToFile
		put(KeyFilePath, v.FilePath)
		put(KeyFileFormat, v.FileFormat)
	case *DBProps:
		put(KeyLabel, v.Label)
		put(KeySubType, v.SubType)
		put(KeyOperation, v.Operation)
		put(KeySourceDetails, v.SourceDetails)
	case *UserResponseProps:
		put(KeyLabel, v.Label)
		put(KeyPrompt, v.Prompt)
		putInt(KeyTimeout, v.Timeout)
	case *NotionProps:
		put(KeyLabel, v.Label)
		put(KeyOperation, v.Operation)
		put(KeyPageID, v.PageID)
		put(KeyDatabaseID, v.DatabaseID)
	}
	return m
}
