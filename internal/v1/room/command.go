package room

import "github.com/gala377/Auster/internal/v1/codec"

// CommandKind selects how the runtime actor dispatches a Command to the
// broker (spec.md §4.4, "Dispatch of Command to broker").
type CommandKind int

const (
	CommandSkip CommandKind = iota
	CommandAbort
	CommandRespond
)

// Command is the output of Process: either nothing, a fatal instruction to
// tear the runtime down, or a Response to publish.
type Command struct {
	Kind         CommandKind
	AbortMessage string
	Response     codec.Response
}

// Skip performs no publish.
func Skip() Command {
	return Command{Kind: CommandSkip}
}

// Abort tells the runtime to disconnect and exit its loop.
func Abort(message string) Command {
	return Command{Kind: CommandAbort, AbortMessage: message}
}

// Respond publishes r: to one player's read topic if r is a Priv response,
// to the sending player's read topic if r is an Err response, and
// otherwise as a broadcast on rt/read.
func Respond(r codec.Response) Command {
	return Command{Kind: CommandRespond, Response: r}
}

// Sender identifies who a Request came from, determined by the runtime
// from the inbound topic's third field (spec.md §4.3 step 3).
type Sender struct {
	IsRuntime bool
	PlayerID  codec.PlayerID
}

// RuntimeSender is the sender value for messages arriving on the `rt`
// topic.
func RuntimeSender() Sender {
	return Sender{IsRuntime: true}
}

// PlayerSender is the sender value for messages arriving on a numbered
// player topic.
func PlayerSender(id codec.PlayerID) Sender {
	return Sender{PlayerID: id}
}
