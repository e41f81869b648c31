// Package policy decides what a requester may do with a memory. Every engine
// operation that touches a memory goes through Evaluate.
package policy

import "citymemory/domain/core/entities"

// Reason explains a denial for audit logs. It is never sent to clients.
type Reason string

const (
	ReasonNone     Reason = ""
	ReasonAbsent   Reason = "absent"
	ReasonNotOwner Reason = "not_owner"
	ReasonPrivate  Reason = "private"
)

// Capabilities is the set of actions allowed on one memory
type Capabilities struct {
	CanRead  bool
	CanWrite bool
	CanReact bool
}

// Decision pairs the granted capabilities with the reason behind the
// strongest denial.
type Decision struct {
	Capabilities
	Reason Reason
}

// Evaluate computes the capabilities of requesterID on memory. A nil memory
// grants nothing.
func Evaluate(requesterID string, memory *entities.Memory) Decision {
	if memory == nil {
		return Decision{Reason: ReasonAbsent}
	}
	if memory.IsOwnedBy(requesterID) {
		return Decision{Capabilities: Capabilities{CanRead: true, CanWrite: true, CanReact: true}}
	}
	if !memory.Privacy().IsPublic() {
		return Decision{Reason: ReasonPrivate}
	}
	return Decision{
		Capabilities: Capabilities{CanRead: true, CanReact: true},
		Reason:       ReasonNotOwner,
	}
}

// CanRead reports whether requesterID may see memory
func CanRead(requesterID string, memory *entities.Memory) bool {
	return Evaluate(requesterID, memory).CanRead
}

// Readable keeps the memories requesterID may see, preserving order
func Readable(requesterID string, memories []*entities.Memory) []*entities.Memory {
	out := make([]*entities.Memory, 0, len(memories))
	for _, m := range memories {
		if CanRead(requesterID, m) {
			out = append(out, m)
		}
	}
	return out
}
