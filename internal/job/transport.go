package job

import (
	"strings"

	"github.com/ahmethakanbesel/candle-csv/internal/apperror"
)

type GetJobRequest struct {
	ID string
}

func (r GetJobRequest) Validate() *apperror.AppError {
	if strings.TrimSpace(r.ID) == "" {
		return apperror.New(apperror.BadRequest, "invalid job id")
	}
	return nil
}
