package trigger

// ActionType names what a trigger asks its receiver to do.
type ActionType int

const (
	ActionRecStart ActionType = iota
	ActionRecEnd
	ActionDitch
	ActionOverdubStart
	ActionOverdubEnd
	ActionOverdubDitch
	ActionPunchInStart
	ActionPunchInEnd
)

var actionNames = [...]string{
	ActionRecStart:     "RecStart",
	ActionRecEnd:       "RecEnd",
	ActionDitch:        "Ditch",
	ActionOverdubStart: "OverdubStart",
	ActionOverdubEnd:   "OverdubEnd",
	ActionOverdubDitch: "OverdubDitch",
	ActionPunchInStart: "PunchInStart",
	ActionPunchInEnd:   "PunchInEnd",
}

// String returns the action name.
func (a ActionType) String() string {
	if a >= 0 && int(a) < len(actionNames) {
		return actionNames[a]
	}
	return "Unknown"
}

// NoTarget is the target id used before a receiver has handed one out.
const NoTarget = -1

// Action is sent to a receiver on every state change that has a meaning
// outside the trigger.
type Action struct {
	Type ActionType
	// TargetID is the take the action applies to.
	TargetID int
	// SampleCount is the number of samples ticked since the current state
	// began.
	SampleCount int
}

// ActionReceiver performs the audio side of a trigger action. The returned id
// becomes the trigger's new target for RecStart and OverdubStart; it is
// ignored for every other action.
type ActionReceiver interface {
	OnTriggerAction(action Action) int
}

// ReceiverFunc adapts a function to ActionReceiver.
type ReceiverFunc func(action Action) int

// OnTriggerAction calls f(action).
func (f ReceiverFunc) OnTriggerAction(action Action) int {
	return f(action)
}
