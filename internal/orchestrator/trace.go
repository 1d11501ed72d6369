package orchestrator

// Trace is the human-readable record of the decisions the saga made. It is a
// first-class output shown to the patient, not a debug log.
type Trace struct {
	Steps []TraceStep `json:"steps"`
}

type TraceStep struct {
	Name   string `json:"name"`
	Detail string `json:"detail"`
	OK     bool   `json:"ok"`
}

func (t *Trace) Add(name, detail string, ok bool) {
	t.Steps = append(t.Steps, TraceStep{Name: name, Detail: detail, OK: ok})
}

// Step returns the first step with the given name, or nil.
func (t *Trace) Step(name string) *TraceStep {
	for i := range t.Steps {
		if t.Steps[i].Name == name {
			return &t.Steps[i]
		}
	}
	return nil
}
