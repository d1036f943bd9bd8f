package sim

// A Named object is an object that has a name.
type Named interface {
	Name() string
}

// A Component is an element that is being simulated in Tsukuba. Components
// interact with each other through direct, synchronous calls and receive
// asynchronous notifications as scheduled events.
type Component interface {
	Named
	Handler
	Hookable
}

// ComponentBase carries the name and hook list shared by all components.
type ComponentBase struct {
	HookableBase

	name string
}

// NewComponentBase creates a ComponentBase and validates the name.
func NewComponentBase(name string) *ComponentBase {
	NameMustBeValid(name)

	return &ComponentBase{name: name}
}

// Name returns the name of the component.
func (c *ComponentBase) Name() string {
	return c.name
}
