// Package mongodb 把存档对象保存在 MongoDB 集合中，_id = "<slot>/<name>"。
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"SaveKeeper/internal/save/port"
)

const defaultCollectionName = "save_objects"

type objectDoc struct {
	ID        string    `bson:"_id"`
	Slot      string    `bson:"slot"`
	Name      string    `bson:"name"`
	Data      []byte    `bson:"data"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type Backend struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ port.Backend = (*Backend)(nil)

// New 使用已连接的 client；Close 时由 Backend 负责断开。
func New(client *mongo.Client, database, collection string) *Backend {
	if collection == "" {
		collection = defaultCollectionName
	}
	return &Backend{
		client: client,
		coll:   client.Database(database).Collection(collection),
	}
}

func docID(slot, name string) string {
	return slot + "/" + name
}

func (b *Backend) Read(ctx context.Context, slot, name string) ([]byte, error) {
	var doc objectDoc
	err := b.coll.FindOne(ctx, bson.M{"_id": docID(slot, name)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%s: %w", docID(slot, name), port.ErrNotExist)
	}
	if err != nil {
		return nil, err
	}
	return doc.Data, nil
}

// Write 用 ReplaceOne + upsert，单文档写入天然原子。
func (b *Backend) Write(ctx context.Context, slot, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := objectDoc{
		ID:        docID(slot, name),
		Slot:      slot,
		Name:      name,
		Data:      data,
		UpdatedAt: time.Now().UTC(),
	}
	_, err := b.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (b *Backend) Remove(ctx context.Context, slot, name string) error {
	_, err := b.coll.DeleteOne(ctx, bson.M{"_id": docID(slot, name)})
	return err
}

func (b *Backend) List(ctx context.Context, slot string) ([]string, error) {
	cur, err := b.coll.Find(ctx, bson.M{"slot": slot},
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}).SetProjection(bson.M{"name": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []string{}
	for cur.Next(ctx) {
		var doc struct {
			Name string `bson:"name"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.Name)
	}
	return out, cur.Err()
}

func (b *Backend) Slots(ctx context.Context) ([]string, error) {
	var out []string
	if err := b.coll.Distinct(ctx, "slot", bson.M{}).Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	sort.Strings(out)
	return out, nil
}

func (b *Backend) RemoveSlot(ctx context.Context, slot string) error {
	_, err := b.coll.DeleteMany(ctx, bson.M{"slot": slot})
	return err
}

func (b *Backend) Close() error {
	if b.client == nil {
		return nil
	}
	return b.client.Disconnect(context.Background())
}
