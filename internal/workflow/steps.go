package workflow

import (
	"strings"

	"github.com/zowe/zowe-cli-sub009/pkg/models"
)

const (
	jclMarker = "JCL"
	miscTSO   = "TSO"
	miscNone  = "N/A"
)

// Flatten projects a step tree into summaries in pre-order: every parent
// precedes its descendants and siblings keep document order.
func Flatten(tree []models.StepNode) []models.StepSummary {
	summaries := []models.StepSummary{}
	walk(tree, func(step *models.StepNode) bool {
		summaries = append(summaries, models.StepSummary{
			StepNumber: step.StepNumber,
			Name:       step.Name,
			State:      step.State,
			Misc:       stepMisc(step),
		})
		return true
	})
	return summaries
}

// FindStep returns the first step named name in pre-order, or nil.
func FindStep(tree []models.StepNode, name string) *models.StepNode {
	var found *models.StepNode
	walk(tree, func(step *models.StepNode) bool {
		if step.Name == name {
			found = step
			return false
		}
		return true
	})
	return found
}

func stepMisc(step *models.StepNode) string {
	switch {
	case strings.Contains(step.SubmitAs, jclMarker) && step.JobInfo != nil && step.JobInfo.JobStatus != nil:
		return step.JobInfo.JobStatus.JobID
	case step.Template != "":
		return miscTSO
	case step.IsRestStep:
		return "HTTP " + step.ActualStatusCode
	default:
		return miscNone
	}
}

// walk visits the tree in pre-order using an explicit stack, so depth is
// bounded by memory rather than the goroutine stack. A node reached twice
// (aliased child slices) is skipped, which keeps a cyclic tree finite.
func walk(tree []models.StepNode, visit func(*models.StepNode) bool) {
	stack := make([]*models.StepNode, 0, len(tree))
	for i := len(tree) - 1; i >= 0; i-- {
		stack = append(stack, &tree[i])
	}

	seen := make(map[*models.StepNode]struct{})
	for len(stack) > 0 {
		step := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, ok := seen[step]; ok {
			continue
		}
		seen[step] = struct{}{}

		if !visit(step) {
			return
		}
		for i := len(step.Children) - 1; i >= 0; i-- {
			stack = append(stack, &step.Children[i])
		}
	}
}
