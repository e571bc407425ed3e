package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sanskarm7/JobCATGmail/core/domain"
	"github.com/sanskarm7/JobCATGmail/core/port/out"
)

const collectionApplications = "applications"

// ApplicationAdapter implements out.ApplicationRepository. Every document
// carries its owner in userId and is unique on (userId, id).
type ApplicationAdapter struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func NewApplicationAdapter(client *mongo.Client, database string) *ApplicationAdapter {
	return &ApplicationAdapter{
		client:     client,
		collection: client.Database(database).Collection(collectionApplications),
	}
}

var _ out.ApplicationRepository = (*ApplicationAdapter)(nil)

func (a *ApplicationAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "lastEmailDate", Value: -1}},
		},
	}
	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

func (a *ApplicationAdapter) List(ctx context.Context, userID string) ([]*domain.Application, error) {
	cur, err := a.collection.Find(ctx, bson.M{"userId": userID}, options.Find().SetSort(bson.D{{Key: "id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	return decodeAll(ctx, cur)
}

func (a *ApplicationAdapter) Get(ctx context.Context, userID, id string) (*domain.Application, error) {
	var raw bson.M
	err := a.collection.FindOne(ctx, bson.M{"userId": userID, "id": id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.NewApplicationNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	return decodeApplication(raw)
}

func (a *ApplicationAdapter) GetMany(ctx context.Context, userID string, ids []string) ([]*domain.Application, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := a.collection.Find(ctx, bson.M{"userId": userID, "id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to get applications: %w", err)
	}
	found, err := decodeAll(ctx, cur)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*domain.Application, len(found))
	for _, app := range found {
		byID[app.ID] = app
	}
	ordered := make([]*domain.Application, 0, len(found))
	for _, id := range ids {
		if app, ok := byID[id]; ok {
			ordered = append(ordered, app)
			delete(byID, id)
		}
	}
	return ordered, nil
}

// Commit applies the batch inside one transaction. A conditional batch aborts
// when fewer guarded documents match than it expects.
func (a *ApplicationAdapter) Commit(ctx context.Context, userID string, batch *domain.WriteBatch) error {
	if batch.Empty() {
		return nil
	}
	models, guard, err := writeModels(userID, batch)
	if err != nil {
		return &domain.StoreCommitError{Op: "encode", Err: err}
	}

	session, err := a.client.StartSession()
	if err != nil {
		return &domain.StoreCommitError{Op: "start session", Err: err}
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		res, err := a.collection.BulkWrite(sc, models, options.BulkWrite().SetOrdered(true))
		if err != nil {
			if batch.Expect != nil && mongo.IsDuplicateKeyError(err) {
				return nil, fmt.Errorf("create: %w", domain.ErrRevisionConflict)
			}
			return nil, err
		}
		if res.MatchedCount < guard.updates || res.DeletedCount < guard.deletes {
			return nil, fmt.Errorf("matched %d/%d updates, %d/%d deletes: %w",
				res.MatchedCount, guard.updates, res.DeletedCount, guard.deletes, domain.ErrRevisionConflict)
		}
		return res, nil
	})
	if errors.Is(err, domain.ErrRevisionConflict) {
		return err
	}
	if err != nil {
		return &domain.StoreCommitError{Op: "bulk write", Err: err}
	}
	return nil
}

func (a *ApplicationAdapter) SetManualFields(ctx context.Context, userID, id string, patch out.ManualPatch) error {
	set := bson.M{"manuallyUpdated": true}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	if patch.Urgency != nil {
		set["urgency"] = *patch.Urgency
	}
	res, err := a.collection.UpdateOne(ctx,
		bson.M{"userId": userID, "id": id},
		bson.M{"$set": set, "$currentDate": bson.M{"updatedAt": true}, "$inc": bson.M{"revision": 1}},
	)
	if err != nil {
		return fmt.Errorf("failed to update application: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.NewApplicationNotFound(id)
	}
	return nil
}

func (a *ApplicationAdapter) Delete(ctx context.Context, userID, id string) error {
	res, err := a.collection.DeleteOne(ctx, bson.M{"userId": userID, "id": id})
	if err != nil {
		return fmt.Errorf("failed to delete application: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.NewApplicationNotFound(id)
	}
	return nil
}

// guardCounts is how many conditional updates and deletes a batch must match.
type guardCounts struct {
	updates int64
	deletes int64
}

// writeModels turns a batch into writes scoped to the user. Unconditional puts
// upsert. In a conditional batch, expected puts and deletes filter on the
// revision and new puts upsert against a filter no stored document can match,
// so an existing record surfaces as a duplicate key.
func writeModels(userID string, batch *domain.WriteBatch) ([]mongo.WriteModel, guardCounts, error) {
	var guard guardCounts
	models := make([]mongo.WriteModel, 0, len(batch.Puts)+len(batch.Deletes))
	for _, app := range batch.Puts {
		update, err := upsertDocument(userID, app)
		if err != nil {
			return nil, guard, fmt.Errorf("application %s: %w", app.ID, err)
		}
		filter := bson.M{"userId": userID, "id": app.ID}
		upsert := true
		if batch.Expect != nil {
			if rev, ok := batch.Expect[app.ID]; ok {
				filter["revision"] = revisionFilter(rev)
				upsert = false
				guard.updates++
			} else {
				filter["revision"] = bson.M{"$lt": 0}
			}
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(filter).
			SetUpdate(update).
			SetUpsert(upsert))
	}
	for _, id := range batch.Deletes {
		filter := bson.M{"userId": userID, "id": id}
		if batch.Expect != nil {
			rev, ok := batch.Expect[id]
			if !ok {
				return nil, guard, fmt.Errorf("delete %s: no expected revision", id)
			}
			filter["revision"] = revisionFilter(rev)
			guard.deletes++
		}
		models = append(models, mongo.NewDeleteOneModel().SetFilter(filter))
	}
	return models, guard, nil
}

// revisionFilter matches documents at rev. Documents written before revisions
// existed have no field and count as revision 0.
func revisionFilter(rev int64) interface{} {
	if rev == 0 {
		return bson.M{"$in": bson.A{int64(0), nil}}
	}
	return rev
}

// optionalFields are dropped from stored documents when the record leaves them empty.
var optionalFields = []string{"htmlContent", "mergedFrom", "mergedAt"}

// upsertDocument replaces every field of the record, lets the server stamp
// updatedAt, bumps the revision and drops the legacy nested analysis.
func upsertDocument(userID string, app *domain.Application) (bson.M, error) {
	c := app.Clone()
	c.UserID = userID
	data, err := bson.Marshal(c)
	if err != nil {
		return nil, err
	}
	var set bson.M
	if err := bson.Unmarshal(data, &set); err != nil {
		return nil, err
	}
	delete(set, "updatedAt")
	delete(set, "revision")
	delete(set, "_id")

	unset := bson.M{legacyAnalysisField: ""}
	for _, f := range optionalFields {
		if _, ok := set[f]; !ok {
			unset[f] = ""
		}
	}
	return bson.M{
		"$set":         set,
		"$unset":       unset,
		"$currentDate": bson.M{"updatedAt": true},
		"$inc":         bson.M{"revision": 1},
	}, nil
}

func decodeAll(ctx context.Context, cur *mongo.Cursor) ([]*domain.Application, error) {
	defer cur.Close(ctx)
	apps := []*domain.Application{}
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to decode application: %w", err)
		}
		app, err := decodeApplication(raw)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("cursor: %w", err)
	}
	return apps, nil
}
