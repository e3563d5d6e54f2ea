package handlers

import (
	"tablefront-pos-service/internal/cache"
	"tablefront-pos-service/internal/config"
	"tablefront-pos-service/internal/mailer"
	"tablefront-pos-service/internal/queue"
	"tablefront-pos-service/internal/storage"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Handler struct {
	DB     *pgxpool.Pool
	Logger *zap.Logger
	Config config.Config
	Queue  *queue.Client
	Cache  *cache.Cache
	Store  *storage.ObjectStore
	Mail   *mailer.Mailer
}
