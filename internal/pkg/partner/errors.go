package partner

import "fmt"

// DomainStateError means the operation is not valid for the entity's
// current state (e.g. sync before onboarding). The message is actionable
// operator text; these are never retried automatically.
type DomainStateError struct {
	Message string
}

func (e *DomainStateError) Error() string {
	return e.Message
}

// UnknownEntityError means a webhook referenced an entity this platform
// never onboarded. There is nothing actionable to do: the event is logged
// and still marked processed.
type UnknownEntityError struct {
	Kind       string
	ExternalID string
}

func (e *UnknownEntityError) Error() string {
	return fmt.Sprintf("unknown %s with external id %q", e.Kind, e.ExternalID)
}
