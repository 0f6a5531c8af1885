package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/m-mizutani/cogito"
	"github.com/m-mizutani/goerr/v2"
)

const complexityJudgePrompt = `Rate the complexity of the following user query for an autonomous reasoning agent.

Query: %q
%s
Respond with a JSON object containing:
- "complexity": a number between 0.0 (trivial lookup) and 1.0 (deep multi-step analysis)
- "reasoning_passes": 1, 2, or 3 reasoning passes the query deserves
- "confidence": a number between 0.0 and 1.0 indicating how sure you are
- "explanation": a one-sentence justification

Respond with only the JSON object.`

const complexityJudgeSchema = `{
	"type": "object",
	"properties": {
		"complexity": {"type": "number", "minimum": 0, "maximum": 1},
		"reasoning_passes": {"type": "integer", "minimum": 1, "maximum": 3},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1},
		"explanation": {"type": "string"}
	},
	"required": ["complexity", "confidence"]
}`

var judgeSchema = cogito.MustSchema("complexity_judge", complexityJudgeSchema)

type judgeVerdict struct {
	Complexity      float64 `json:"complexity"`
	ReasoningPasses int     `json:"reasoning_passes"`
	Confidence      float64 `json:"confidence"`
	Explanation     string  `json:"explanation"`
}

// passes returns the judge's own pass budget when it supplied a valid one,
// falling back to the score thresholds otherwise.
func (x *judgeVerdict) passes() int {
	if x.ReasoningPasses >= 1 && x.ReasoningPasses <= 3 {
		return x.ReasoningPasses
	}
	return passesForScore(x.Complexity)
}

// LLMStrategy asks a language model to rate query complexity directly. It is
// the most expensive strategy and is only consulted when cheaper strategies
// disagree or cannot run.
type LLMStrategy struct {
	llm cogito.LLMClient
}

// NewLLMStrategy creates the LLM judge strategy. A nil client is accepted
// and makes CanUse report false.
func NewLLMStrategy(llm cogito.LLMClient) *LLMStrategy {
	return &LLMStrategy{llm: llm}
}

func (x *LLMStrategy) Kind() StrategyKind {
	return StrategyLLM
}

func (x *LLMStrategy) CanUse(ctx context.Context, dctx Context) bool {
	return x.llm != nil
}

func (x *LLMStrategy) Priority(dctx Context) int {
	return 20
}

func (x *LLMStrategy) Detect(ctx context.Context, dctx Context) (*Result, error) {
	if x.llm == nil {
		return nil, goerr.Wrap(ErrStrategyUnavailable, "llm strategy requires a client")
	}

	session, err := x.llm.NewSession(ctx, cogito.WithSessionContentType(cogito.ContentTypeJSON))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create judge session")
	}

	prompt := fmt.Sprintf(complexityJudgePrompt, dctx.Query, priorScores(dctx))
	response, err := session.GenerateContent(ctx, cogito.Text(prompt))
	if err != nil {
		return nil, goerr.Wrap(cogito.ErrLLMCallFailure, err.Error(),
			goerr.V("request_id", dctx.RequestID))
	}

	verdict, err := parseJudgeVerdict(response.Text())
	if err != nil {
		return nil, goerr.Wrap(err, "judge returned unparseable verdict")
	}

	return &Result{
		Score:           verdict.Complexity,
		ReasoningPasses: verdict.passes(),
		Confidence:      verdict.Confidence,
		Metadata: map[string]any{
			"explanation": verdict.Explanation,
		},
	}, nil
}

// priorScores renders the scores other strategies already produced, so the
// judge acts as a tie-breaker rather than a blind rater.
func priorScores(dctx Context) string {
	var sb strings.Builder
	for _, kind := range []StrategyKind{StrategySemantic, StrategyKeyword} {
		if result, ok := dctx.Results[kind]; ok {
			fmt.Fprintf(&sb, "\nThe %s strategy scored it %.2f (confidence %.2f).\n",
				kind, result.Score, result.Confidence)
		}
	}
	return sb.String()
}

// parseJudgeVerdict decodes the judge response, first as schema-validated
// JSON and then through the free-text field extractor.
func parseJudgeVerdict(raw string) (*judgeVerdict, error) {
	trimmed := strings.TrimSpace(raw)
	if err := cogito.ValidateJSON(judgeSchema, []byte(trimmed)); err == nil {
		var verdict judgeVerdict
		if err := json.Unmarshal([]byte(trimmed), &verdict); err == nil {
			return &verdict, nil
		}
	}

	fields := cogito.ExtractFields(raw)
	complexity, err := strconv.ParseFloat(strings.TrimSuffix(fields["complexity"], ","), 64)
	if err != nil {
		return nil, goerr.New("no complexity value in response")
	}
	confidence, err := strconv.ParseFloat(strings.TrimSuffix(fields["confidence"], ","), 64)
	if err != nil {
		confidence = 0.5
	}
	passes, err := strconv.Atoi(strings.TrimSuffix(fields["reasoning_passes"], ","))
	if err != nil {
		passes = 0
	}
	return &judgeVerdict{
		Complexity:      clamp01(complexity),
		ReasoningPasses: passes,
		Confidence:      clamp01(confidence),
		Explanation:     fields["explanation"],
	}, nil
}
