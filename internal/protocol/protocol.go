package protocol

const Version = "1.0"

// Event types written to the tick log.
const (
	EventSpawn           = "SPAWN"
	EventDeath           = "DEATH"
	EventActivity        = "ACTIVITY"
	EventTaskBound       = "TASK_BOUND"
	EventTaskInterrupted = "TASK_INTERRUPTED"
	EventTaskFinished    = "TASK_FINISHED"
	EventCommandFailed   = "COMMAND_FAILED"
	EventAttack          = "ATTACK"
	EventWork            = "WORK"
	EventFall            = "FALL"
	EventAttributeUp     = "ATTRIBUTE_UP"
	EventPrint           = "PRINT"
	EventCollapse        = "COLLAPSE"
	EventCaveInScheduled = "CAVE_IN_SCHEDULED"
	EventMaterialLanded  = "MATERIAL_LANDED"
)

// Event is one log record. Every event carries "type"; unit events carry
// "unit" with the unit name.
type Event map[string]interface{}

func (e Event) Type() string {
	s, _ := e["type"].(string)
	return s
}

var knownEvents = map[string]struct{}{
	EventSpawn:           {},
	EventDeath:           {},
	EventActivity:        {},
	EventTaskBound:       {},
	EventTaskInterrupted: {},
	EventTaskFinished:    {},
	EventCommandFailed:   {},
	EventAttack:          {},
	EventWork:            {},
	EventFall:            {},
	EventAttributeUp:     {},
	EventPrint:           {},
	EventCollapse:        {},
	EventCaveInScheduled: {},
	EventMaterialLanded:  {},
}

func IsKnownEvent(typ string) bool {
	_, ok := knownEvents[typ]
	return ok
}
