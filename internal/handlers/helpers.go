package handlers

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/BenMacKenzie/db-mlops/internal/constants"
	"github.com/BenMacKenzie/db-mlops/internal/executioncontext"
	"github.com/BenMacKenzie/db-mlops/internal/http_wrappers"
	"github.com/BenMacKenzie/db-mlops/internal/messages"
	"github.com/BenMacKenzie/db-mlops/internal/serviceerrors"
	"github.com/BenMacKenzie/db-mlops/pkg/api"
)

func CreatePage(total int, offset int, limit int, ctx *executioncontext.ExecutionContext, r http_wrappers.RequestWrapper) (*api.Page, error) {
	// Calculate pagination info

	hasNext := offset+limit < total
	var nextHref *api.HRef
	if hasNext {
		href, err := url.Parse(r.URI())
		if err != nil {
			ctx.Logger.Error("Failed to parse request URI", "uri", r.URI(), "error", err)
			return nil, serviceerrors.NewServiceError(messages.InternalServerError, "Error", err.Error())
		}
		q := href.Query()
		q.Set(constants.QUERY_PARAMETER_OFFSET, strconv.Itoa(offset+limit))
		q.Set(constants.QUERY_PARAMETER_LIMIT, strconv.Itoa(limit))
		href.RawQuery = q.Encode()
		nextHref = &api.HRef{Href: href.String()}
	}

	return &api.Page{
		First:      &api.HRef{Href: r.URI()},
		Next:       nextHref,
		Limit:      limit,
		TotalCount: total,
	}, nil
}

// getProjectID reads the project id path parameter.
func getProjectID(r http_wrappers.RequestWrapper) (int64, error) {
	value := strings.TrimSpace(r.PathValue(constants.PATH_PARAMETER_PROJECT_ID))
	if value == "" {
		return 0, serviceerrors.NewServiceError(messages.MissingPathParameter, "ParameterName", constants.PATH_PARAMETER_PROJECT_ID)
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, serviceerrors.NewServiceError(messages.InvalidPathParameter, "ParameterName", constants.PATH_PARAMETER_PROJECT_ID, "Type", "project id", "Value", value)
	}
	return id, nil
}

func getQueryInt(r http_wrappers.RequestWrapper, name string, defaultValue int, minValue int) (int, error) {
	values := r.Query(name)
	if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(values[0]))
	if err != nil || n < minValue {
		return 0, serviceerrors.NewServiceError(messages.QueryParameterInvalid, "ParameterName", name, "Type", "integer of at least "+strconv.Itoa(minValue), "Value", values[0])
	}
	return n, nil
}

// getPaging returns the limit and offset of a list request. The limit is capped at
// MAX_PAGE_LIMIT.
func getPaging(r http_wrappers.RequestWrapper) (int, int, error) {
	limit, err := getQueryInt(r, constants.QUERY_PARAMETER_LIMIT, constants.DEFAULT_PAGE_LIMIT, 1)
	if err != nil {
		return 0, 0, err
	}
	offset, err := getQueryInt(r, constants.QUERY_PARAMETER_OFFSET, 0, 0)
	if err != nil {
		return 0, 0, err
	}
	return min(limit, constants.MAX_PAGE_LIMIT), offset, nil
}
