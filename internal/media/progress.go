package media

// Progress reports advancement of long-running steps.
type Progress interface {
	// Start begins a step. total is -1 when unknown.
	Start(label string, total int)
	// Advance reports that item was processed.
	Advance(item string)
	// Finish ends the current step.
	Finish()
}

// NopProgress reports nothing.
type NopProgress struct{}

func (NopProgress) Start(string, int) {}
func (NopProgress) Advance(string)    {}
func (NopProgress) Finish()           {}
