package errutil

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/m-mizutani/goerr/v2"
	"github.com/socialpulse-lab/socialpulse/pkg/utils/logging"
	"github.com/socialpulse-lab/socialpulse/pkg/utils/safe"
)

// HandleHTTP logs err with its structured context and writes a JSON error
// body. Stack traces and goerr values stay in the log; the response
// carries only the error message.
func HandleHTTP(ctx context.Context, w http.ResponseWriter, err error, statusCode int) {
	if err == nil {
		return
	}

	logger := logging.From(ctx)
	var ge *goerr.Error
	if errors.As(err, &ge) {
		logger.Error("request failed",
			"status", statusCode,
			"error", err.Error(),
			"values", ge.Values(),
			"stack", ge.Stacks(),
		)
	} else {
		logger.Error("request failed",
			"status", statusCode,
			"error", err.Error(),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	safe.Write(ctx, w, []byte(`{"error":`+strconv.Quote(err.Error())+`}`))
}
