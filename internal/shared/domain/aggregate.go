package domain

// AggregateRoot is an entity that records the domain events it raised.
type AggregateRoot interface {
	Entity
	DomainEvents() []DomainEvent
	ClearDomainEvents()
}

// BaseAggregateRoot collects uncommitted domain events for an aggregate.
type BaseAggregateRoot struct {
	BaseEntity
	events []DomainEvent
}

// NewBaseAggregateRoot creates a new aggregate root.
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: NewBaseEntity()}
}

// RehydrateBaseAggregateRoot recreates an aggregate from persisted state
// without raising events.
func RehydrateBaseAggregateRoot(entity BaseEntity) BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: entity}
}

// DomainEvents returns the uncommitted events in raise order.
func (a *BaseAggregateRoot) DomainEvents() []DomainEvent {
	return a.events
}

// ClearDomainEvents drops the uncommitted events.
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.events = nil
}

// AddDomainEvent records an event raised by the aggregate.
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.events = append(a.events, event)
}
