package api

import (
	"errors"
	"net/http"

	"github.com/forPelevin/takecut/internal/domain/align"
	"github.com/forPelevin/takecut/internal/domain/edits"
	"github.com/forPelevin/takecut/internal/domain/split"
	"github.com/forPelevin/takecut/internal/domain/timerange"
	"github.com/forPelevin/takecut/internal/pipeline"
	"github.com/forPelevin/takecut/internal/ports/adapters/openai"
	"github.com/forPelevin/takecut/internal/store"
	"github.com/forPelevin/takecut/internal/usecase"
)

const (
	CodeBadRequest       = "BAD_REQUEST"
	CodeEmptyInput       = "EMPTY_INPUT"
	CodeMalformedTime    = "MALFORMED_TIMESTAMP"
	CodeInvalidRange     = "INVALID_RANGE"
	CodeEmptyMedia       = "EMPTY_MEDIA"
	CodeBadPayload       = "UNRECOGNIZED_PAYLOAD"
	CodeInvalidParts     = "INVALID_PARTS"
	CodeInputNotFound    = "INPUT_NOT_FOUND"
	CodeEmptyScript      = "EMPTY_SCRIPT"
	CodeMissingAPIKey    = "MISSING_API_KEY"
	CodeNotFound         = "NOT_FOUND"
	CodeLedgerDisabled   = "LEDGER_DISABLED"
	CodeExtractionFailed = "EXTRACTION_FAILED"
	CodeInternal         = "INTERNAL_ERROR"
)

var inputErrors = []struct {
	err  error
	code string
}{
	{timerange.ErrEmptyInput, CodeEmptyInput},
	{timerange.ErrMalformedTimestamp, CodeMalformedTime},
	{timerange.ErrInvalidRange, CodeInvalidRange},
	{timerange.ErrEmptyMedia, CodeEmptyMedia},
	{edits.ErrUnrecognizedPayload, CodeBadPayload},
	{split.ErrInvalidParts, CodeInvalidParts},
	{pipeline.ErrInputNotFound, CodeInputNotFound},
	{align.ErrNoScript, CodeEmptyScript},
	{openai.ErrNoScript, CodeEmptyScript},
}

// classify maps a run error to an HTTP status and error code.
func classify(err error) (int, string) {
	for _, ie := range inputErrors {
		if errors.Is(err, ie.err) {
			return http.StatusBadRequest, ie.code
		}
	}
	var segErr *usecase.SegmentExtractionError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, pipeline.ErrNoLedger):
		return http.StatusNotFound, CodeLedgerDisabled
	case errors.Is(err, pipeline.ErrMissingAPIKey):
		return http.StatusServiceUnavailable, CodeMissingAPIKey
	case errors.As(err, &segErr):
		return http.StatusInternalServerError, CodeExtractionFailed
	}
	return http.StatusInternalServerError, CodeInternal
}

func writeRunError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	WriteError(w, status, err.Error(), code)
}
