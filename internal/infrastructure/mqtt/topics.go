package mqtt

// DefaultTopicPrefix is used when the config leaves topic_prefix empty.
const DefaultTopicPrefix = "gsm/input"

// Topics builds the mirror's topic names under a prefix.
//
//	topics := mqtt.Topics{Prefix: "gsm/input"}
//	topics.Event("button") // "gsm/input/event/button"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// Event returns the topic for one broadcast message type.
//
// Example: gsm/input/event/axis
func (t Topics) Event(msgType string) string {
	return t.prefix() + "/event/" + msgType
}

// AllEvents returns a single-level wildcard over every event topic.
//
// Example: gsm/input/event/+
func (t Topics) AllEvents() string {
	return t.prefix() + "/event/+"
}

// SystemStatus returns the retained online/offline status topic.
//
// Example: gsm/input/system/status
func (t Topics) SystemStatus() string {
	return t.prefix() + "/system/status"
}
