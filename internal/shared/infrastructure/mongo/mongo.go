// Package mongo 负责建立并校验 MongoDB 连接。
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"SaveKeeper/internal/shared/config"
	"SaveKeeper/modules/kit/logx"
)

const defaultConnectTimeout = 3 * time.Second

// Open 连接并 Ping；失败时断开，不返回半可用的 client。
func Open(ctx context.Context, cfg config.MongoDBConfig, l logx.Logger) (*mongo.Client, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongodb uri is empty")
	}
	if l == nil {
		l = logx.Nop()
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI).SetConnectTimeout(timeout))
	if err != nil {
		return nil, err
	}
	if err = client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	l.WithContext(ctx).Info("open mongodb success",
		zap.String("database", cfg.Database),
		zap.String("collection", cfg.Collection),
	)
	return client, nil
}
