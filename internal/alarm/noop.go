package alarm

// Noop is an actuator for machines without a buzzer. State changes are
// tracked so tests can assert on them.
type Noop struct {
	on bool
}

// NewNoop creates a no-op actuator.
func NewNoop() *Noop {
	return &Noop{}
}

// SetOn records the indicator as on.
func (n *Noop) SetOn() error {
	n.on = true

	return nil
}

// SetOff records the indicator as off.
func (n *Noop) SetOff() error {
	n.on = false

	return nil
}

// Close is a no-op.
func (n *Noop) Close() error {
	return nil
}

// On reports the recorded indicator state.
func (n *Noop) On() bool {
	return n.on
}
