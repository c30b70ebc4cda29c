package domain

// Instance is the workflow snapshot for one case: exactly one current state,
// the case context, and the optimistic-concurrency version.
type Instance struct {
	CaseID  string      `json:"case_id"`
	State   State       `json:"state"`
	Context CaseContext `json:"context"`
	Version int64       `json:"version"`
}

// NewInstance creates the initial snapshot for a case, parked in idle until
// the first SUBMIT event moves it into the lifecycle.
func NewInstance(ctx CaseContext) *Instance {
	return &Instance{
		CaseID:  ctx.CaseID,
		State:   StateIdle,
		Context: ctx,
		Version: 0,
	}
}

// Clone returns a deep copy of the instance.
func (i *Instance) Clone() *Instance {
	return &Instance{
		CaseID:  i.CaseID,
		State:   i.State,
		Context: i.Context.Clone(),
		Version: i.Version,
	}
}
