package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/mlscore/internal/domain/types"
	"github.com/okian/mlscore/pkg/logger"
	"github.com/okian/mlscore/pkg/metrics"
)

// ScoreHandler handles scoring requests.
type ScoreHandler struct {
	scorer       Scorer
	logger       logger.Logger
	maxBodyBytes int64
	maxFeatures  int
}

// NewScoreHandler creates a new score handler.
func NewScoreHandler(scorer Scorer, l logger.Logger, maxBodyBytes int64, maxFeatures int) *ScoreHandler {
	return &ScoreHandler{
		scorer:       scorer,
		logger:       l,
		maxBodyBytes: maxBodyBytes,
		maxFeatures:  maxFeatures,
	}
}

// HandleScore handles POST /score requests.
func (h *ScoreHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.score"
	ctx := r.Context()

	if r.Method != http.MethodPost {
		methodNotAllowed(w, op, http.MethodPost)
		return
	}

	req, err := decodeScoreRequest(http.MaxBytesReader(w, r.Body, h.maxBodyBytes), h.maxFeatures)
	if err != nil {
		h.reject(w, r, op, err)
		return
	}
	metrics.RecordFeatureVectorLength(len(req.X))

	score, err := h.scorer.Score(ctx, req.X)
	if err != nil {
		if ctx.Err() != nil {
			h.logger.Debug(ctx, "client went away during scoring", logger.Error(err))
			writeError(w, http.StatusServiceUnavailable, NewKind(op, ErrCancelled))
			return
		}
		h.logger.Error(ctx, "scoring failed",
			logger.Error(err),
			logger.Int("features", len(req.X)),
		)
		writeError(w, http.StatusInternalServerError, WrapKind(op, ErrInternal, err))
		return
	}
	if score == nil {
		score = []float64{}
	}

	writeJSON(w, http.StatusOK, types.ScoreResponse{Score: score})
}

// reject maps decode failures onto client errors.
func (h *ScoreHandler) reject(w http.ResponseWriter, r *http.Request, op string, err error) {
	var tooLarge *http.MaxBytesError
	var invalidErr *ValidationError

	switch {
	case errors.As(err, &tooLarge):
		metrics.RecordValidationFailure(reasonTooLarge)
		writeError(w, http.StatusRequestEntityTooLarge,
			WrapKind(op, ErrBodyTooLarge, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)))
	case errors.As(err, &invalidErr):
		metrics.RecordValidationFailure(invalidErr.Reason)
		h.logger.Debug(r.Context(), "rejected scoring request",
			logger.String("reason", invalidErr.Reason),
			logger.Error(err),
		)
		writeError(w, http.StatusBadRequest, WrapKind(op, ErrBadRequest, err))
	default:
		// Body read failures other than the size limit: the connection is
		// most likely broken, but a well-formed answer is still attempted.
		h.logger.Warn(r.Context(), "failed to read scoring request", logger.Error(err))
		writeError(w, http.StatusBadRequest, WrapKind(op, ErrBadRequest, errors.New("unable to read request body")))
	}
}
