package prompts

import (
	_ "embed"
)

// CoordinatorBase is the opening line of the tool-selection instruction.
const CoordinatorBase = "Act as coordinator and decide which tool to use based on the user's request."

//go:embed coordinator.txt
var CoordinatorPrompt string

//go:embed plan.txt
var PlanPrompt string

//go:embed check.txt
var CheckPrompt string

//go:embed describe.txt
var DescribePrompt string

//go:embed find.txt
var FindElementsPrompt string
