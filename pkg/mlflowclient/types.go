package mlflowclient

import (
	"time"
)

const (
	LifecycleStageActive  = "active"
	LifecycleStageDeleted = "deleted"

	DefaultMaxResults = 1000
)

// Experiments API types

type ExperimentTag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Experiment as returned by the MLflow REST API
type Experiment struct {
	ExperimentID     string          `json:"experiment_id"`
	Name             string          `json:"name"`
	ArtifactLocation string          `json:"artifact_location,omitempty"`
	LifecycleStage   string          `json:"lifecycle_stage,omitempty"`
	LastUpdateTime   int64           `json:"last_update_time,omitempty"`
	CreationTime     int64           `json:"creation_time,omitempty"`
	Tags             []ExperimentTag `json:"tags,omitempty"`
}

type CreateExperimentRequest struct {
	Name             string          `json:"name"`
	ArtifactLocation string          `json:"artifact_location,omitempty"`
	Tags             []ExperimentTag `json:"tags,omitempty"`
}

type CreateExperimentResponse struct {
	ExperimentID string `json:"experiment_id"`
}

type GetExperimentResponse struct {
	Experiment Experiment `json:"experiment"`
}

// Runs API types

type Metric struct {
	Key       string  `json:"key"`
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp,omitempty"`
	Step      int64   `json:"step,omitempty"`
}

type Param struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type RunTag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type RunInfo struct {
	RunID          string `json:"run_id"`
	RunName        string `json:"run_name,omitempty"`
	ExperimentID   string `json:"experiment_id"`
	Status         string `json:"status"`
	StartTime      int64  `json:"start_time,omitempty"`
	EndTime        int64  `json:"end_time,omitempty"`
	ArtifactURI    string `json:"artifact_uri,omitempty"`
	LifecycleStage string `json:"lifecycle_stage,omitempty"`
}

type RunData struct {
	Metrics []Metric `json:"metrics,omitempty"`
	Params  []Param  `json:"params,omitempty"`
	Tags    []RunTag `json:"tags,omitempty"`
}

type Run struct {
	Info RunInfo `json:"info"`
	Data RunData `json:"data"`
}

type SearchRunsRequest struct {
	ExperimentIDs []string `json:"experiment_ids"`
	Filter        string   `json:"filter,omitempty"`
	MaxResults    int      `json:"max_results,omitempty"`
	OrderBy       []string `json:"order_by,omitempty"`
	PageToken     string   `json:"page_token,omitempty"`
}

type SearchRunsResponse struct {
	Runs          []Run  `json:"runs,omitempty"`
	NextPageToken string `json:"next_page_token,omitempty"`
}

// Resolved types handed to callers

// KeyValue is one named metric, parameter or tag. Order is preserved from the remote.
type KeyValue[T any] struct {
	Key   string `json:"key"`
	Value T      `json:"value"`
}

// ExperimentRef is the resolved identity of an experiment.
type ExperimentRef struct {
	ExperimentID     string            `json:"experiment_id"`
	Name             string            `json:"name"`
	ArtifactLocation string            `json:"artifact_location"`
	LifecycleStage   string            `json:"lifecycle_stage"`
	LastUpdateTime   *time.Time        `json:"last_update_time,omitempty"`
	CreationTime     *time.Time        `json:"creation_time,omitempty"`
	Tags             map[string]string `json:"tags,omitempty"`
}

// RunRecord is one historical run of an experiment. Status is passed through
// unchanged, the platform owns the set of values (RUNNING, FINISHED, FAILED, KILLED, ...).
type RunRecord struct {
	RunID        string              `json:"run_id"`
	RunName      string              `json:"run_name,omitempty"`
	ExperimentID string              `json:"experiment_id"`
	Status       string              `json:"status"`
	StartTime    *time.Time          `json:"start_time,omitempty"`
	EndTime      *time.Time          `json:"end_time,omitempty"`
	Metrics      []KeyValue[float64] `json:"metrics"`
	Params       []KeyValue[string]  `json:"params"`
	Tags         []KeyValue[string]  `json:"tags,omitempty"`
}

func millisToTime(ms int64) *time.Time {
	if ms <= 0 {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}

func newExperimentRef(e *Experiment) *ExperimentRef {
	ref := &ExperimentRef{
		ExperimentID:     e.ExperimentID,
		Name:             e.Name,
		ArtifactLocation: e.ArtifactLocation,
		LifecycleStage:   e.LifecycleStage,
		LastUpdateTime:   millisToTime(e.LastUpdateTime),
		CreationTime:     millisToTime(e.CreationTime),
	}
	if len(e.Tags) > 0 {
		ref.Tags = make(map[string]string, len(e.Tags))
		for _, tag := range e.Tags {
			ref.Tags[tag.Key] = tag.Value
		}
	}
	return ref
}

func newRunRecord(r *Run) RunRecord {
	record := RunRecord{
		RunID:        r.Info.RunID,
		RunName:      r.Info.RunName,
		ExperimentID: r.Info.ExperimentID,
		Status:       r.Info.Status,
		StartTime:    millisToTime(r.Info.StartTime),
		EndTime:      millisToTime(r.Info.EndTime),
		Metrics:      make([]KeyValue[float64], 0, len(r.Data.Metrics)),
		Params:       make([]KeyValue[string], 0, len(r.Data.Params)),
	}
	for _, m := range r.Data.Metrics {
		record.Metrics = append(record.Metrics, KeyValue[float64]{Key: m.Key, Value: m.Value})
	}
	for _, p := range r.Data.Params {
		record.Params = append(record.Params, KeyValue[string]{Key: p.Key, Value: p.Value})
	}
	for _, t := range r.Data.Tags {
		record.Tags = append(record.Tags, KeyValue[string]{Key: t.Key, Value: t.Value})
	}
	return record
}
