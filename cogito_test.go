package cogito_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/cogito"
	"github.com/m-mizutani/cogito/detect"
	"github.com/m-mizutani/cogito/storage"
	"github.com/m-mizutani/gt"
)

type lookupTool struct {
	facilities map[string][]string
}

func (x *lookupTool) Spec() cogito.ToolSpec {
	return cogito.ToolSpec{
		Name:        "list_facility",
		Description: "lists the units of a facility",
		Parameters: map[string]*cogito.Parameter{
			"facility": {Type: cogito.TypeString, Description: "facility identifier"},
		},
		Required: []string{"facility"},
	}
}

func (x *lookupTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	name, _ := args["facility"].(string)
	return map[string]any{"units": x.facilities[name]}, nil
}

func newCoordinator(t *testing.T, store storage.Store) *cogito.Coordinator {
	t.Helper()

	detector := gt.R1(detect.NewOrchestrator(nil, detect.NewKeywordStrategy(), nil)).NoError(t)
	return cogito.New(nil,
		cogito.WithComplexityDetector(detector),
		cogito.WithStore(store),
		cogito.WithTools(&lookupTool{
			facilities: map[string][]string{"ABC": {"unit-1", "unit-2"}},
		}),
	)
}

func TestCoordinatorEndToEnd(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	coordinator := newCoordinator(t, store)
	requestID := cogito.NewRequestID()

	// A short lookup query stays in the single-pass band and resolves via the
	// keyword strategy since no other strategy is configured.
	detection := gt.R1(coordinator.DetectComplexity(ctx, requestID, "list facility ABC")).NoError(t)
	gt.Equal(t, requestID, detection.RequestID)
	gt.Equal(t, 1, detection.ReasoningPasses)
	gt.Equal(t, "keyword", detection.DetectionMethod)
	gt.B(t, detection.Score < 0.4).True()

	plan := gt.R1(cogito.NewPlan("list the units of facility ABC", []cogito.PlanStep{
		{
			ID:          "lookup",
			Description: "look up facility ABC",
			Action:      "list_facility",
			Parameters:  map[string]any{"facility": "ABC"},
		},
	})).NoError(t)

	run := gt.R1(coordinator.ExecutePlan(ctx, requestID, plan)).NoError(t)
	gt.Equal(t, cogito.RunStateCompleted, run.RunState)
	gt.B(t, run.OverallSuccess).True()
	gt.Equal(t, 1, len(run.Steps))
	gt.B(t, run.PartialResults["lookup"] != nil).True()

	confidence := coordinator.AggregateConfidence(ctx, requestID, []cogito.ConfidenceScore{
		{AgentName: "critic", Score: 0.9},
		{AgentName: "planner", Score: 0.85},
	})
	gt.Equal(t, cogito.DecisionExecute, confidence.Decision)

	// All three phases share the request ID in the audit store.
	records := gt.R1(store.GetByRequestID(ctx, requestID)).NoError(t)
	gt.Equal(t, 3, len(records))

	kinds := map[string]bool{}
	for _, record := range records {
		gt.Equal(t, requestID, record.RequestID)
		kinds[record.Kind] = true
	}
	gt.B(t, kinds["complexity"] && kinds["execution"] && kinds["confidence"]).True()
}

func TestCoordinatorRequiresDetector(t *testing.T) {
	coordinator := cogito.New(nil)
	_, err := coordinator.DetectComplexity(context.Background(), "", "anything")
	gt.Error(t, err)
}

func TestCoordinatorIssuesRequestID(t *testing.T) {
	store := storage.NewMemoryStore()
	coordinator := newCoordinator(t, store)

	detection := gt.R1(coordinator.DetectComplexity(context.Background(), "", "list facility ABC")).NoError(t)
	gt.B(t, detection.RequestID != "").True()

	ids := map[string]bool{cogito.NewRequestID(): true, cogito.NewRequestID(): true}
	gt.Equal(t, 2, len(ids))
}
