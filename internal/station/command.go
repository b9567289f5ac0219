package station

import "fmt"

// Lifecycle commands. Anything else is a game command and only means something while a
// session is being played.
const (
	CmdGenerateAccessCode = "GenerateAccessCode"
	CmdAttachClient       = "AttachClient"
	CmdBeginGame          = "BeginGame"
)

// Topics published to the attached client through the hub.
const (
	TopicClientDetached = "ClientDetached"
	TopicClientAttached = "ClientAttached"
	TopicNewScore       = "NewScore"
	TopicGameOver       = "GameOver"
)

// Command is an inbound station command with an opaque parameter payload.
type Command struct {
	Name   string `json:"command"`
	Params string `json:"params"`
}

func (c Command) String() string {
	return fmt.Sprintf("%s(%s)", c.Name, c.Params)
}

// IsLifecycle reports whether the command drives the lifecycle rather than the game.
func (c Command) IsLifecycle() bool {
	switch c.Name {
	case CmdGenerateAccessCode, CmdAttachClient, CmdBeginGame:
		return true
	}
	return false
}

func rejectionTopic(command string) string {
	return "Response:" + command + ":Error"
}
