package worker

import "github.com/rawblock/inspect-gateway/pkg/models"

// MsgType tags the variants flowing between the manager and its workers.
type MsgType int

const (
	// manager -> worker
	MsgInspectItem MsgType = iota
	MsgGetStats
	MsgShutdown

	// worker -> manager
	MsgInspectResult
	MsgInspectError
	MsgStats
	MsgBotStatusChange
	MsgShutdownDone
)

func (t MsgType) String() string {
	switch t {
	case MsgInspectItem:
		return "inspectItem"
	case MsgGetStats:
		return "getStats"
	case MsgShutdown:
		return "shutdown"
	case MsgInspectResult:
		return "inspectResult"
	case MsgInspectError:
		return "inspectError"
	case MsgStats:
		return "stats"
	case MsgBotStatusChange:
		return "botStatusChange"
	case MsgShutdownDone:
		return "shutdownDone"
	}
	return "unknown"
}

// Message is the single envelope exchanged over worker channels. Only the
// fields relevant to Type are populated.
type Message struct {
	Type     MsgType
	WorkerID int

	// inspectItem / inspectResult / inspectError
	RequestID  string
	S, A, D, M string
	Item       *models.ItemPayload
	Err        string

	// stats
	Stats *Stats

	// botStatusChange: "busy" or "ready"
	BotStatus string
}
