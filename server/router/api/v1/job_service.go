package v1

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
	celast "github.com/google/cel-go/common/ast"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/contentvec/contentvec/store"
)

type jobResponse struct {
	ID             string         `json:"id"`
	ProfileID      *string        `json:"profileId,omitempty"`
	Type           string         `json:"type"`
	Status         string         `json:"status"`
	TotalItems     *int32         `json:"totalItems,omitempty"`
	ProcessedItems int32          `json:"processedItems"`
	FailedItems    int32          `json:"failedItems"`
	Params         map[string]any `json:"params,omitempty"`
	ErrorMessage   *string        `json:"errorMessage,omitempty"`
	StartedAt      *time.Time     `json:"startedAt,omitempty"`
	FinishedAt     *time.Time     `json:"finishedAt,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// ListJobs lists indexing jobs newest-first. An optional CEL filter narrows
// by equality on status and profile_id, e.g.
// `status == "failed" && profile_id == "..."`.
func (s *APIV1Service) ListJobs(c echo.Context) error {
	find := &store.FindIndexingJob{}

	if filter := c.QueryParam("filter"); filter != "" {
		status, profileID, err := extractJobFilter(filter)
		if err != nil {
			return respondError(c, errors.Wrap(store.ErrValidation, err.Error()))
		}
		if status != "" {
			jobStatus := store.JobStatus(status)
			find.Status = &jobStatus
		}
		if profileID != "" {
			find.ProfileID = &profileID
		}
	}
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return respondError(c, errors.Wrapf(store.ErrValidation, "limit must be a positive integer: %q", raw))
		}
		find.Limit = limit
	}
	if raw := c.QueryParam("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return respondError(c, errors.Wrapf(store.ErrValidation, "offset must be a non-negative integer: %q", raw))
		}
		find.Offset = offset
	}

	jobs, err := s.Store.ListIndexingJobs(c.Request().Context(), find)
	if err != nil {
		return respondError(c, err)
	}

	converted := []jobResponse{}
	for _, job := range jobs {
		converted = append(converted, jobResponse{
			ID:             job.ID,
			ProfileID:      job.ProfileID,
			Type:           job.Type,
			Status:         string(job.Status),
			TotalItems:     job.TotalItems,
			ProcessedItems: job.ProcessedItems,
			FailedItems:    job.FailedItems,
			Params:         job.Params,
			ErrorMessage:   job.ErrorMessage,
			StartedAt:      job.StartedAt,
			FinishedAt:     job.FinishedAt,
			CreatedAt:      job.CreatedAt,
		})
	}
	return respondWithMeta(c, http.StatusOK, converted, map[string]any{"total": len(converted)})
}

// extractJobFilter parses the filter string with CEL and pulls out equality
// constraints on status and profile_id. Only `==` comparisons joined by `&&`
// are supported.
func extractJobFilter(filter string) (status string, profileID string, err error) {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return "", "", nil
	}

	env, err := cel.NewEnv(
		cel.Variable("status", cel.StringType),
		cel.Variable("profile_id", cel.StringType),
	)
	if err != nil {
		return "", "", errors.Wrap(err, "failed to create CEL environment")
	}

	celAST, issues := env.Compile(filter)
	if issues != nil && issues.Err() != nil {
		return "", "", errors.Wrapf(issues.Err(), "invalid filter expression: %s", filter)
	}

	values := map[string]string{}
	if err := collectEqualityConstraints(celAST.NativeRep().Expr(), values); err != nil {
		return "", "", err
	}
	return values["status"], values["profile_id"], nil
}

func collectEqualityConstraints(expr celast.Expr, values map[string]string) error {
	if expr == nil {
		return errors.New("empty filter expression")
	}
	if expr.Kind() != celast.CallKind {
		return errors.New("filter must be equality comparisons joined by &&")
	}

	call := expr.AsCall()
	switch call.FunctionName() {
	case "_&&_":
		for _, arg := range call.Args() {
			if err := collectEqualityConstraints(arg, values); err != nil {
				return err
			}
		}
		return nil
	case "_==_":
		args := call.Args()
		if len(args) != 2 {
			return errors.New("invalid comparison expression")
		}
		if name, value, ok := identStringPair(args[0], args[1]); ok {
			values[name] = value
			return nil
		}
		if name, value, ok := identStringPair(args[1], args[0]); ok {
			values[name] = value
			return nil
		}
		return errors.New("filter must compare status or profile_id with a string constant")
	default:
		return errors.Errorf("unsupported operator: %s (only '==' and '&&' are supported)", call.FunctionName())
	}
}

func identStringPair(left, right celast.Expr) (string, string, bool) {
	if left.Kind() != celast.IdentKind || right.Kind() != celast.LiteralKind {
		return "", "", false
	}
	value, ok := right.AsLiteral().Value().(string)
	if !ok {
		return "", "", false
	}
	return left.AsIdent(), value, true
}
