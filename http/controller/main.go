package controller

import (
	"github.com/tnqbao/gau-platform/config"
	"github.com/tnqbao/gau-platform/executor"
	"github.com/tnqbao/gau-platform/infra"
	"github.com/tnqbao/gau-platform/metrics"
	"github.com/tnqbao/gau-platform/repository"
)

type Controller struct {
	Config     *config.Config
	Infra      *infra.Infra
	Repository *repository.Repository
	Metrics    *metrics.Metrics
	Executor   *executor.Executor
}

func NewController(config *config.Config, infra *infra.Infra, repo *repository.Repository) *Controller {
	if repo == nil {
		panic("Failed to initialize Repository")
	}
	m := metrics.New()
	return &Controller{
		Config:     config,
		Infra:      infra,
		Repository: repo,
		Metrics:    m,
		Executor:   executor.New(infra.RuntimeService, repo, infra.Logger, m),
	}
}
