package gamepad

import "github.com/gsmoverlay/input-server/internal/protocol"

type logLevel int

const (
	levelDebug logLevel = iota
	levelInfo
	levelError
)

type logEntry struct {
	level logLevel
	msg   string
	args  []any
}

// batch collects the messages and log lines of one registry transaction.
// Nothing in it is written anywhere until the exclusion is released.
type batch struct {
	msgs []string
	logs []logEntry
}

func (b *batch) log(level logLevel, msg string, args ...any) {
	b.logs = append(b.logs, logEntry{level: level, msg: msg, args: args})
}

// emit encodes msg and queues it for broadcast.
func (b *batch) emit(msg protocol.ServerMessage) {
	encoded, err := protocol.Encode(msg)
	if err != nil {
		b.log(levelError, "dropping unencodable message", "type", msg.MessageType(), "error", err)
		return
	}
	b.msgs = append(b.msgs, encoded)
}

// flush writes the queued log lines to logger and returns the messages.
func (b *batch) flush(logger Logger) []string {
	for _, e := range b.logs {
		switch e.level {
		case levelDebug:
			logger.Debug(e.msg, e.args...)
		case levelInfo:
			logger.Info(e.msg, e.args...)
		default:
			logger.Error(e.msg, e.args...)
		}
	}
	b.logs = nil
	return b.msgs
}
