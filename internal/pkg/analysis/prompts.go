package analysis

// Supported analysis types
const (
	TypeSummary      = "summary"
	TypeActionItems  = "action_items"
	TypeDecisions    = "decisions"
	TypeDeepAnalysis = "deep_analysis"
)

var prompts = map[string]string{
	TypeSummary: `Provide a detailed summary of the following meeting, covering:
1. Main topics and discussion points
2. Key arguments and viewpoints
3. Consensus reached or conclusions drawn
4. Open issues left unresolved
Keep the answer objective and structured.`,

	TypeActionItems: `Extract the concrete action items from the following meeting, covering:
1. Specific tasks to be executed
2. Responsible persons (when mentioned)
3. Deadlines or schedules
4. Priority assessment
Present the answer as a list.`,

	TypeDecisions: `List all important decisions made in the following meeting, covering:
1. The exact content of each decision
2. Reasoning and background
3. Expected impact and consequences
4. Execution plan and schedule
Order the answer by importance.`,

	TypeDeepAnalysis: `Provide a deep analysis of the following meeting, covering:
1. Meeting efficiency and quality assessment
2. Participant contribution analysis
3. Discussion patterns and interaction characteristics
4. Potential problems and improvement suggestions
5. Goal completion assessment
Keep the answer objective and constructive.`,
}

const systemPrompt = "You are a professional meeting analysis assistant. " +
	"Provide clear, structured, and actionable analysis results."

// SupportedTypes returns the known analysis type names
func SupportedTypes() []string {
	return []string{TypeSummary, TypeActionItems, TypeDecisions, TypeDeepAnalysis}
}

// resolvePrompt maps the analysis type to its template.
// Unknown types fall back to the summary template - a deliberate leniency,
// a typo in the type must not fail an otherwise finished job.
func resolvePrompt(analysisType, customPrompt string) string {
	if customPrompt != "" {
		return customPrompt
	}
	if p, ok := prompts[analysisType]; ok {
		return p
	}
	return prompts[TypeSummary]
}
