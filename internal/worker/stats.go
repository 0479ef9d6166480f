package worker

// BotDetail is one bot's row in a stats snapshot. Username is truncated to
// 10 characters; operators see enough to find the account without the whole
// fleet roster leaking into every stats response.
type BotDetail struct {
	Username      string `json:"username"`
	Status        string `json:"status"`
	Inspects      int64  `json:"inspects"`
	Successes     int64  `json:"successes"`
	Failures      int64  `json:"failures"`
	Errors        int64  `json:"errors"`
	Cooldowns     int64  `json:"cooldowns"`
	AvgResponseMs int64  `json:"avgResponseMs"`
}

// Stats is one worker's aggregate snapshot.
type Stats struct {
	WorkerID     int         `json:"workerId"`
	TotalBots    int         `json:"totalBots"`
	ReadyBots    int         `json:"readyBots"`
	BusyBots     int         `json:"busyBots"`
	CooldownBots int         `json:"cooldownBots"`
	ErrorBots    int         `json:"errorBots"`
	OfflineBots  int         `json:"offlineBots"`
	Bots         []BotDetail `json:"bots"`
}

const botDetailNameLen = 10

func truncateName(username string) string {
	if len(username) > botDetailNameLen {
		return username[:botDetailNameLen]
	}
	return username
}
