package output

import "context"

// ProgressPort shows a headless script run to the person at the terminal.
type ProgressPort interface {
	ShowStep(ctx context.Context, index, total int, command string)
	ShowMessage(ctx context.Context, functionName, text string, isError bool)
	ShowDebug(ctx context.Context, text string)
	ShowJump(ctx context.Context, label string)
	ShowSummary(ctx context.Context, steps, failed int, rendered string)
}
