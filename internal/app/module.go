package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/rezars19/rz-automedata/internal/app/api/server"
	"github.com/rezars19/rz-automedata/internal/app/service/license"
	"github.com/rezars19/rz-automedata/internal/app/service/statistics"
	"github.com/rezars19/rz-automedata/internal/app/service/sweeper"
	"github.com/rezars19/rz-automedata/internal/app/store"
	"github.com/rezars19/rz-automedata/internal/platform/db"
	"github.com/rezars19/rz-automedata/pkg/config"
	"github.com/rezars19/rz-automedata/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	store.Module,
	license.Module,
	sweeper.Module,
	statistics.Module,
	server.Module,
)
