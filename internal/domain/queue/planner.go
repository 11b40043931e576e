package queue

// InsertionIndex returns the 0-based position at which an entry with
// the given priority should enter the waiting list. The entry goes in
// front of the first strictly lower priority; equal priorities keep
// arrival order, so ties land behind existing entries.
func InsertionIndex(waiting []*Appointment, priority float64) int {
	for i, a := range waiting {
		if PriorityOf(a) < priority {
			return i
		}
	}
	return len(waiting)
}

// PriorityOf returns the stored triage priority, recomputing it from
// the symptom list when the stored value is missing.
func PriorityOf(a *Appointment) float64 {
	if a.TriagePriority > 0 {
		return a.TriagePriority
	}
	return Score(a.Symptoms)
}
