package mongodb

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"SaveKeeper/internal/save/port"
	"SaveKeeper/internal/save/port/porttest"
	"SaveKeeper/internal/shared/config"
	mongox "SaveKeeper/internal/shared/infrastructure/mongo"
)

func TestDocID_slot与name拼接(t *testing.T) {
	if got := docID("_Default", "global.json"); got != "_Default/global.json" {
		t.Fatalf("docID=%q", got)
	}
}

// 需要真实 MongoDB：SAVEKEEPER_TEST_MONGODB_URI=mongodb://127.0.0.1:27017
func TestBackend_契约(t *testing.T) {
	uri := os.Getenv("SAVEKEEPER_TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("SAVEKEEPER_TEST_MONGODB_URI not set")
	}
	porttest.Run(t, func(t *testing.T) port.Backend {
		client, err := mongox.Open(context.Background(), config.MongoDBConfig{URI: uri, Database: "savekeeper_test"}, nil)
		require.NoError(t, err)
		// 每个用例独立集合，互不干扰。
		coll := "save_objects_" + uuid.NewString()
		t.Cleanup(func() { _ = client.Database("savekeeper_test").Collection(coll).Drop(context.Background()) })
		return New(client, "savekeeper_test", coll)
	})
}
