package service

// AssignmentResolver decides first-responder assignment for new tickets.
// Assignment is first-writer-wins: the user whose reaction created the ticket
// becomes the assignee, and later updates that do not explicitly carry a new
// assignee leave the field untouched (see domain.Ticket.Apply).
type AssignmentResolver struct {
	Enabled bool
}

// Initial returns the assignee for a freshly created ticket, or nil when the
// feature is disabled.
func (r AssignmentResolver) Initial(reactorID string) *string {
	if !r.Enabled || reactorID == "" {
		return nil
	}
	return &reactorID
}
