package spiral

// Finding is one content-safety hit in text under review. Findings with a
// Replacement can be rewritten in place; findings without one force the
// review stage to reject the round's output.
type Finding struct {
	Rule        string
	Match       string
	Replacement string
}

func (f Finding) Rewritable() bool {
	return f.Replacement != ""
}

// OutputValidator is the rule-based content-safety collaborator consulted
// by the review stage. It sits outside the core; the engine only consumes
// its findings.
type OutputValidator interface {
	Inspect(text string) []Finding
}
