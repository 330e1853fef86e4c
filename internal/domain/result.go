package domain

// ResultKind discriminates Result.
type ResultKind string

const (
	ResultSkipped         ResultKind = "skipped"
	ResultClassified      ResultKind = "classified"
	ResultConnectionFound ResultKind = "connection_found"
	ResultFailed          ResultKind = "failed"
)

type ErrorKind string

const (
	ErrorKindFetch        ErrorKind = "fetch_error"
	ErrorKindInvalidInput ErrorKind = "invalid_input"
)

// Result is the outcome of a pipeline run. Exactly one of Update, Log or Error
// is meaningful, depending on Kind.
type Result struct {
	Kind      ResultKind    `json:"kind"`
	MessageID string        `json:"message_id"`
	Update    *CareerUpdate `json:"update,omitempty"`
	Log       *AgentLog     `json:"log,omitempty"`
	Error     ErrorKind     `json:"error,omitempty"`
	Detail    string        `json:"detail,omitempty"`
}

func Skipped(messageID, reason string) Result {
	return Result{Kind: ResultSkipped, MessageID: messageID, Detail: reason}
}

func Classified(messageID string, update CareerUpdate) Result {
	return Result{Kind: ResultClassified, MessageID: messageID, Update: &update}
}

func ConnectionFound(messageID string, log AgentLog) Result {
	return Result{Kind: ResultConnectionFound, MessageID: messageID, Log: &log}
}

func Failed(messageID string, kind ErrorKind, err error) Result {
	result := Result{Kind: ResultFailed, MessageID: messageID, Error: kind}
	if err != nil {
		result.Detail = err.Error()
	}
	return result
}
