// Package jobqueue is the Queue Repository (spec.md §4.J): it
// persists Job records in MongoDB and exposes the atomic claim,
// update, and orphan-recovery primitives the executor and sweeper
// build on. Grounded on the teacher's internal/storage.MongoStorage
// connection/ping pattern.
package jobqueue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/parcelwalk/parcelwalk/internal/jobtypes"
)

// Repository is the MongoDB-backed Queue Repository.
type Repository struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *slog.Logger
}

// New connects to uri and pings the server before returning.
func New(ctx context.Context, uri, database, collection string, logger *slog.Logger) (*Repository, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	return &Repository{
		client:     client,
		collection: client.Database(database).Collection(collection),
		logger:     logger.With("component", "job_queue"),
	}, nil
}

// Close disconnects the underlying Mongo client.
func (r *Repository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

// Insert persists a new job, assigning it a string ID up front so
// _id is the same string type every other method queries by. Letting
// MongoDB mint the _id here would store an ObjectID that a later
// bson.M{"_id": "<hex>"} filter, or a Decode into the string-typed
// Job.ID field, could never match.
func (r *Repository) Insert(ctx context.Context, job *jobtypes.Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if _, err := r.collection.InsertOne(ctx, job); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Find returns the job with the given id, or an error wrapping
// mongo.ErrNoDocuments when no such job exists.
func (r *Repository) Find(ctx context.Context, id string) (*jobtypes.Job, error) {
	var job jobtypes.Job
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&job); err != nil {
		return nil, fmt.Errorf("find job %s: %w", id, err)
	}
	return &job, nil
}

// ClaimNextPending atomically transitions the oldest pending job to
// processing and returns it, or (nil, jobtypes.ErrNoPendingJob) if
// none is available (spec.md §4.H step 1, §5 FIFO ordering).
func (r *Repository) ClaimNextPending(ctx context.Context) (*jobtypes.Job, error) {
	now := time.Now()
	filter := bson.M{"status": jobtypes.StatusPending}
	sort := bson.D{{Key: "timestamps.created_at", Value: 1}}
	update := bson.M{
		"$set": bson.M{
			"status":               jobtypes.StatusProcessing,
			"timestamps.started_at": now,
			"timestamps.updated_at": now,
		},
	}
	opts := options.FindOneAndUpdate().SetSort(sort).SetReturnDocument(options.After)

	var job jobtypes.Job
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&job)
	if err == mongo.ErrNoDocuments {
		return nil, jobtypes.ErrNoPendingJob
	}
	if err != nil {
		return nil, fmt.Errorf("claim next pending: %w", err)
	}
	return &job, nil
}

// Update applies a partial update (patch) to a job record and stamps
// updated_at.
func (r *Repository) Update(ctx context.Context, id string, patch bson.M) error {
	if patch == nil {
		patch = bson.M{}
	}
	patch["timestamps.updated_at"] = time.Now()
	_, err := r.collection.UpdateByID(ctx, id, bson.M{"$set": patch})
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	return nil
}

// Cancel sets a job's status to cancelled, valid from pending or
// processing (spec.md §3, §5 cancellation semantics).
func (r *Repository) Cancel(ctx context.Context, id string) error {
	filter := bson.M{
		"_id":    id,
		"status": bson.M{"$in": []jobtypes.Status{jobtypes.StatusPending, jobtypes.StatusProcessing}},
	}
	update := bson.M{"$set": bson.M{"status": jobtypes.StatusCancelled, "timestamps.updated_at": time.Now()}}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("cancel job %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("job %s not cancellable (not pending/processing)", id)
	}
	return nil
}

// IsCancelled reports whether id's current status is cancelled,
// polled by the executor at every cooperative-cancellation checkpoint.
func (r *Repository) IsCancelled(ctx context.Context, id string) (bool, error) {
	var job jobtypes.Job
	err := r.collection.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(bson.M{"status": 1})).Decode(&job)
	if err != nil {
		return false, fmt.Errorf("check cancellation for job %s: %w", id, err)
	}
	return job.Status == jobtypes.StatusCancelled, nil
}

// List returns jobs matching filter, sorted by created_at ascending,
// paginated by (page, pageSize).
func (r *Repository) List(ctx context.Context, filter bson.M, page, pageSize int) ([]*jobtypes.Job, error) {
	if filter == nil {
		filter = bson.M{}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamps.created_at", Value: 1}}).
		SetSkip(int64(page * pageSize)).
		SetLimit(int64(pageSize))

	cur, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer cur.Close(ctx)

	var jobs []*jobtypes.Job
	if err := cur.All(ctx, &jobs); err != nil {
		return nil, fmt.Errorf("decode job list: %w", err)
	}
	return jobs, nil
}

// Count returns the number of jobs matching filter.
func (r *Repository) Count(ctx context.Context, filter bson.M) (int64, error) {
	if filter == nil {
		filter = bson.M{}
	}
	n, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return n, nil
}

// Delete removes a job record, used by the Retention Sweeper.
func (r *Repository) Delete(ctx context.Context, id string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	return nil
}

// ListOlderThan returns every job with created_at before cutoff, used
// by the Retention Sweeper (spec.md §4.I).
func (r *Repository) ListOlderThan(ctx context.Context, cutoff time.Time) ([]*jobtypes.Job, error) {
	cur, err := r.collection.Find(ctx, bson.M{"timestamps.created_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return nil, fmt.Errorf("list jobs older than %s: %w", cutoff, err)
	}
	defer cur.Close(ctx)

	var jobs []*jobtypes.Job
	if err := cur.All(ctx, &jobs); err != nil {
		return nil, fmt.Errorf("decode job list: %w", err)
	}
	return jobs, nil
}

// ResetOrphans implements Startup Recovery (spec.md §4.K): every job
// whose status is processing is reset to pending, with updated_at
// stamped but no retry counter touched. Running it twice in a row is
// a no-op the second time (spec.md §8 "idempotent orphan recovery").
func (r *Repository) ResetOrphans(ctx context.Context) (int64, error) {
	res, err := r.collection.UpdateMany(ctx,
		bson.M{"status": jobtypes.StatusProcessing},
		bson.M{"$set": bson.M{"status": jobtypes.StatusPending, "timestamps.updated_at": time.Now()}},
	)
	if err != nil {
		return 0, fmt.Errorf("reset orphans: %w", err)
	}
	if res.ModifiedCount > 0 {
		r.logger.Info("reset orphaned processing jobs to pending", "count", res.ModifiedCount)
	}
	return res.ModifiedCount, nil
}
