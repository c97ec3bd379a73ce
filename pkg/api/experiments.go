package api

import "github.com/BenMacKenzie/db-mlops/pkg/mlflowclient"

// ExperimentDetails is the experiment of a project together with its runs. The run
// listing reports separately whether the runs could be fetched.
type ExperimentDetails struct {
	ProjectID  int64                       `json:"project_id"`
	Experiment *mlflowclient.ExperimentRef `json:"experiment"`
	Runs       *mlflowclient.RunListing    `json:"runs"`
}
