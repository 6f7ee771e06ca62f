package ledger

// Status is the auto-trade state of an opportunity.
type Status string

const (
	StatusPending      Status = "pending"
	StatusDepthCheck   Status = "depth_check"
	StatusReadyToTrade Status = "ready_to_trade"
	StatusTrading      Status = "trading"
	StatusCompleted    Status = "completed"
	StatusForbidden    Status = "forbidden"
)

// Active states hold an exclusive claim on the opportunity.
func (s Status) Active() bool {
	return s == StatusDepthCheck || s == StatusReadyToTrade || s == StatusTrading
}

// Stage tracks the leg currently being executed.
type Stage string

const (
	StageNone                Stage = ""
	StageFirstTradeStarted   Stage = "first_trade_started"
	StageFirstTradeFinished  Stage = "first_trade_finished"
	StageFirstTradeError     Stage = "first_trade_error"
	StageSecondTradeStarted  Stage = "second_trade_started"
	StageSecondTradeFinished Stage = "second_trade_finished"
	StageSecondTradeError    Stage = "second_trade_error"
	StageThirdTradeStarted   Stage = "third_trade_started"
	StageThirdTradeFinished  Stage = "third_trade_finished"
	StageThirdTradeError     Stage = "third_trade_error"
)

var legStages = [3][3]Stage{
	{StageFirstTradeStarted, StageFirstTradeFinished, StageFirstTradeError},
	{StageSecondTradeStarted, StageSecondTradeFinished, StageSecondTradeError},
	{StageThirdTradeStarted, StageThirdTradeFinished, StageThirdTradeError},
}

// LegStarted, LegFinished and LegError map a zero-based leg index to its stage.
func LegStarted(i int) Stage  { return legStages[i][0] }
func LegFinished(i int) Stage { return legStages[i][1] }
func LegError(i int) Stage    { return legStages[i][2] }
