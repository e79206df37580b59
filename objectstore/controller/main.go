package controller

import (
	"github.com/tnqbao/gau-platform/config"
	"github.com/tnqbao/gau-platform/infra"
	"github.com/tnqbao/gau-platform/metrics"
	"github.com/tnqbao/gau-platform/objectstore/backend"
)

type Controller struct {
	Config  *config.Config
	Backend backend.Backend
	Logger  *infra.LoggerClient
	Metrics *metrics.Metrics
}

func NewController(cfg *config.Config, store backend.Backend, logger *infra.LoggerClient, m *metrics.Metrics) *Controller {
	if store == nil {
		panic("Failed to initialize storage backend")
	}
	return &Controller{
		Config:  cfg,
		Backend: store,
		Logger:  logger,
		Metrics: m,
	}
}
