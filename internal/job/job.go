package job

import (
	"time"

	"github.com/ahmethakanbesel/candle-csv/internal/apperror"
)

type Status string

const (
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusDone     Status = "done"
	StatusError    Status = "error"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// Job is one download request and its progress. A job is written only by
// the goroutine that processes it; everyone else reads snapshots.
type Job struct {
	ID             string        `json:"id"`
	Status         Status        `json:"status"`
	Progress       int           `json:"progress"`
	Filename       string        `json:"filename"`
	Error          string        `json:"error"`
	ErrorKind      apperror.Code `json:"errorKind,omitempty"`
	Symbol         string        `json:"symbol"`
	ResolvedSymbol string        `json:"resolvedSymbol,omitempty"`
	Timeframe      string        `json:"timeframe"`
	Start          int64         `json:"start"`
	End            int64         `json:"end"`
	Rows           int           `json:"rows"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

func errTerminal(j *Job) error {
	return apperror.New(apperror.Conflict, "job "+j.ID+" already finished with status "+string(j.Status))
}

// Run marks the job as picked up by its goroutine.
func (j *Job) Run() error {
	if j.Status.Terminal() {
		return errTerminal(j)
	}
	j.Status = StatusRunning
	j.touch()
	return nil
}

// SetProgress records p if it moves progress forward. While the job is
// not done, progress stays below 100.
func (j *Job) SetProgress(p int) error {
	if j.Status.Terminal() {
		return errTerminal(j)
	}
	p = min(max(p, 0), 99)
	if p > j.Progress {
		j.Progress = p
		j.touch()
	}
	return nil
}

// Complete finishes the job with the materialized file.
func (j *Job) Complete(filename string, rows int) error {
	if j.Status.Terminal() {
		return errTerminal(j)
	}
	j.Status = StatusDone
	j.Progress = 100
	j.Filename = filename
	j.Rows = rows
	j.touch()
	return nil
}

// Fail finishes the job with err's message. The kind is taken from the
// first apperror in err's chain.
func (j *Job) Fail(err error) error {
	if j.Status.Terminal() {
		return errTerminal(j)
	}
	j.Status = StatusError
	j.Error = err.Error()
	j.ErrorKind = apperror.CodeOf(err)
	j.Filename = ""
	j.touch()
	return nil
}

func (j *Job) touch() {
	j.UpdatedAt = time.Now().UTC()
}
