package entity

type ToolName string

const (
	ToolAnalyzeAndAct      ToolName = "analyzeScreenshotAndAct"
	ToolVisitURL           ToolName = "visitUrl"
	ToolComment            ToolName = "comment"
	ToolSetOutputParameter ToolName = "setOutputParameter"
	ToolResetBrowser       ToolName = "resetBrowser"
	ToolCheck              ToolName = "check"
	ToolDescribe           ToolName = "describeWhatYouSee"
	ToolFindUIElements     ToolName = "findUIElements"
	ToolEnterText          ToolName = "enterTextValue"
	ToolPressKey           ToolName = "pressKey"
	ToolClickCoordinates   ToolName = "clickCoordinates"
	ToolScrollPage         ToolName = "scrollPage"
	ToolRefreshScreen      ToolName = "refreshScreen"
	ToolReadPageText       ToolName = "readPageText"

	// ToolSetInputParameter is never registered. Assignments are handled before dispatch.
	ToolSetInputParameter ToolName = "setInputParameter"
)

func (t ToolName) String() string {
	return string(t)
}
