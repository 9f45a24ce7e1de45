package sim

import "talos/internal/book"

// CommandKind enumerates the external command interface variants
// (spec.md §6).
type CommandKind int

const (
	CmdSubmit CommandKind = iota
	CmdCancel
	CmdCancelAll
	CmdSetParam
	CmdPause
	CmdResume
	CmdTick
)

// Command is one instruction from the human-operated trader (or a
// replaying journal). Bot decisions never flow through Command — they
// use the bots.Decision contract directly. A bot's cancels are applied
// before its new orders; queued commands are applied in arrival order.
// Either way, every cancel in a tick takes effect before that tick's
// matching step.
type Command struct {
	Kind        CommandKind
	TraderID    string
	Side        book.Side
	Price       int64
	Qty         int64
	TimeInForce book.TimeInForce
	OrderID     uint64
	ParamKey    string
	ParamValue  string
}

// ResultKind is whether a command was accepted or rejected.
type ResultKind int

const (
	Accepted ResultKind = iota
	Rejected
)

// Input-level rejection reasons, additional to the risk.RejectKind
// enumeration (spec.md §6: "kind is one of the risk error enum values
// plus UnknownOrder, BadPrice, BadQty").
const (
	UnknownOrder = "UnknownOrder"
	BadPrice     = "BadPrice"
	BadQty       = "BadQty"
)

// CommandResult is returned synchronously to whoever called
// SubmitCommand, once the tick that processed it has run.
type CommandResult struct {
	Kind    ResultKind
	OrderID uint64
	Reason  string
}
