package cogito

import (
	_ "embed"
	"text/template"
)

//go:embed templates/checkpoint_prompt.md
var checkpointPromptTemplate string

//go:embed templates/question_prompt.md
var questionPromptTemplate string

//go:embed templates/confidence_prompt.md
var confidencePromptTemplate string

var (
	checkpointTmpl *template.Template
	questionTmpl   *template.Template
	confidenceTmpl *template.Template
)

func init() {
	checkpointTmpl = template.Must(template.New("checkpoint").Parse(checkpointPromptTemplate))
	questionTmpl = template.Must(template.New("question").Parse(questionPromptTemplate))
	confidenceTmpl = template.Must(template.New("confidence").Parse(confidencePromptTemplate))
}

type checkpointTemplateData struct {
	Goal          string
	Executed      int
	Total         int
	Failed        int
	LastStep      string
	LastSucceeded bool
	LastError     string
}

type questionTemplateData struct {
	Goal        string
	Description string
	Error       string
	ErrorType   string
}

type confidenceTemplateData struct {
	WeightedConfidence float64
	Decision           string
	Pattern            string
	PrimaryDriver      string
	Scores             []ConfidenceScore
}
