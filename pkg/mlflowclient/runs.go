package mlflowclient

import (
	"net/http"
	"strings"

	"github.com/BenMacKenzie/db-mlops/pkg/workspace"
)

// Runs API

// SearchRuns performs a single runs/search call
func (c *Client) SearchRuns(req *SearchRunsRequest) (*SearchRunsResponse, error) {
	if req == nil || len(req.ExperimentIDs) == 0 {
		return nil, &workspace.MalformedInputError{Field: "experiment ids", Reason: "at least one experiment id is required"}
	}
	respBody, err := c.transport.Do(c.ctx, http.MethodPost, endpointRunsSearch, nil, req)
	if err != nil {
		return nil, err
	}

	return workspace.Decode[SearchRunsResponse](respBody)
}

// ListRuns returns up to maxResults runs of an experiment in the order the platform
// returns them (newest first). maxResults <= 0 means DefaultMaxResults.
//
// An experiment without runs yields an empty, non-nil slice and a nil error. Any
// failure is returned, so callers can tell "no runs" from "lookup failed".
func (c *Client) ListRuns(experimentID string, maxResults int) ([]RunRecord, error) {
	if strings.TrimSpace(experimentID) == "" {
		return nil, &workspace.MalformedInputError{Field: "experiment id", Reason: "the experiment id is required"}
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	records := make([]RunRecord, 0)
	pageToken := ""
	for len(records) < maxResults {
		resp, err := c.SearchRuns(&SearchRunsRequest{
			ExperimentIDs: []string{experimentID},
			MaxResults:    maxResults - len(records),
			PageToken:     pageToken,
		})
		if err != nil {
			return nil, err
		}
		for i := range resp.Runs {
			if len(records) == maxResults {
				break
			}
			records = append(records, newRunRecord(&resp.Runs[i]))
		}
		if resp.NextPageToken == "" || len(resp.Runs) == 0 {
			break
		}
		pageToken = resp.NextPageToken
	}

	c.GetLogger().Info("Listed experiment runs", "experiment_id", experimentID, "runs", len(records))
	return records, nil
}

// ListingStatus distinguishes the three outcomes of a run listing.
type ListingStatus string

const (
	ListingStatusOK     ListingStatus = "ok"
	ListingStatusEmpty  ListingStatus = "empty"
	ListingStatusFailed ListingStatus = "failed"
)

// RunListing is the presentation form of a ListRuns result.
type RunListing struct {
	Status ListingStatus `json:"status"`
	Runs   []RunRecord   `json:"runs"`
	Error  string        `json:"error,omitempty"`
}

func NewRunListing(runs []RunRecord, err error) *RunListing {
	if err != nil {
		return &RunListing{Status: ListingStatusFailed, Runs: []RunRecord{}, Error: err.Error()}
	}
	if len(runs) == 0 {
		return &RunListing{Status: ListingStatusEmpty, Runs: []RunRecord{}}
	}
	return &RunListing{Status: ListingStatusOK, Runs: runs}
}
