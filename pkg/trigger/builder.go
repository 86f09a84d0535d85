package trigger

import "time"

// Builder provides a fluent API for creating triggers
type Builder struct {
	trigger *Trigger
}

// NewBuilder starts a trigger with the given name
func NewBuilder(name string) *Builder {
	return &Builder{trigger: New(name)}
}

// Activate adds activate bindings
func (b *Builder) Activate(bindings ...DualBinding) *Builder {
	b.trigger.activate = append(b.trigger.activate, bindings...)
	return b
}

// Ditch adds ditch bindings
func (b *Builder) Ditch(bindings ...DualBinding) *Builder {
	b.trigger.ditch = append(b.trigger.ditch, bindings...)
	return b
}

// DebounceMs sets the debounce window in milliseconds
func (b *Builder) DebounceMs(ms int) *Builder {
	b.trigger.SetDebounce(time.Duration(ms) * time.Millisecond)
	return b
}

// InputChannels sets the input channels a take records, one loop each
func (b *Builder) InputChannels(channels ...int) *Builder {
	b.trigger.channels = append([]int(nil), channels...)
	return b
}

// Clock sets the debounce time source
func (b *Builder) Clock(now func() time.Time) *Builder {
	b.trigger.SetClock(now)
	return b
}

// Receiver binds the action receiver
func (b *Builder) Receiver(r ActionReceiver) *Builder {
	b.trigger.SetReceiver(r)
	return b
}

// Build returns the configured trigger
func (b *Builder) Build() *Trigger {
	return b.trigger
}
