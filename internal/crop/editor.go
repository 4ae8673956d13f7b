package crop

// Phase is the state of a crop editing session.
type Phase int

const (
	// PhaseNone means no crop is being edited.
	PhaseNone Phase = iota
	// PhaseActive means a draft crop is being edited.
	PhaseActive
	// PhasePersisted means the last draft was applied.
	PhasePersisted
)

func (p Phase) String() string {
	switch p {
	case PhaseActive:
		return "active"
	case PhasePersisted:
		return "persisted"
	default:
		return "none"
	}
}

// Editor tracks a draft crop while crop mode is on. Edits only touch the
// draft; Apply hands it back, Cancel drops it.
type Editor struct {
	phase Phase
	draft State
}

// Enter starts editing. It resumes from the current crop, or from the full
// image when there is none.
func (e *Editor) Enter(current *State) {
	e.phase = PhaseActive
	if current != nil {
		e.draft = *current
	} else {
		e.draft = Full()
	}
}

// Phase returns the current phase.
func (e *Editor) Phase() Phase {
	return e.phase
}

// Active reports whether a draft is being edited.
func (e *Editor) Active() bool {
	return e.phase == PhaseActive
}

// Draft returns the crop being edited and whether there is one.
func (e *Editor) Draft() (State, bool) {
	return e.draft, e.phase == PhaseActive
}

// Update replaces the draft with fn(draft). It does nothing outside of crop
// mode.
func (e *Editor) Update(fn func(State) State) bool {
	if e.phase != PhaseActive {
		return false
	}
	e.draft = fn(e.draft)
	return true
}

// Apply ends editing and returns the clamped draft.
func (e *Editor) Apply() (State, bool) {
	if e.phase != PhaseActive {
		return State{}, false
	}
	e.phase = PhasePersisted
	return Clamp(e.draft), true
}

// Cancel ends editing and discards the draft.
func (e *Editor) Cancel() {
	e.phase = PhaseNone
	e.draft = State{}
}
