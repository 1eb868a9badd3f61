package store

import (
	"context"
	"fmt"

	"cloud.google.com/go/compute/metadata"
	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore is the production Gateway, backed by Cloud Firestore.
type Firestore struct {
	client *firestore.Client
}

// NewFirestore connects to the Firestore database of the ambient GCP
// project (resolved via the metadata server).
func NewFirestore(ctx context.Context) (*Firestore, error) {
	projectID, err := metadata.ProjectIDWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving project id: %w", err)
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}
	return &Firestore{client: client}, nil
}

// NewFirestoreWithClient wraps an existing client, for callers that
// manage their own credentials.
func NewFirestoreWithClient(client *firestore.Client) *Firestore {
	return &Firestore{client: client}
}

func (f *Firestore) Close() error { return f.client.Close() }

func (f *Firestore) Get(ctx context.Context, path, id string) (Document, error) {
	snap, err := f.client.Collection(path).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	return Document{ID: snap.Ref.ID, Data: snap.Data()}, nil
}

func (f *Firestore) Add(ctx context.Context, path string, data map[string]any) (string, error) {
	ref, _, err := f.client.Collection(path).Add(ctx, data)
	if err != nil {
		return "", err
	}
	return ref.ID, nil
}

func (f *Firestore) Create(ctx context.Context, path, id string, data map[string]any) error {
	_, err := f.client.Collection(path).Doc(id).Create(ctx, data)
	if status.Code(err) == codes.AlreadyExists {
		return ErrExists
	}
	return err
}

func (f *Firestore) Set(ctx context.Context, path, id string, data map[string]any, merge bool) error {
	var opts []firestore.SetOption
	if merge {
		opts = append(opts, firestore.MergeAll)
	}
	_, err := f.client.Collection(path).Doc(id).Set(ctx, data, opts...)
	return err
}

func (f *Firestore) Update(ctx context.Context, path, id string, data map[string]any) error {
	updates := make([]firestore.Update, 0, len(data))
	for k, v := range data {
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}
	_, err := f.client.Collection(path).Doc(id).Update(ctx, updates)
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	return err
}

func (f *Firestore) Query(ctx context.Context, q Query) ([]Document, error) {
	iter := f.buildQuery(q).Documents(ctx)
	defer iter.Stop()

	var docs []Document
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, Document{ID: snap.Ref.ID, Data: snap.Data()})
	}
	return docs, nil
}

func (f *Firestore) Subscribe(ctx context.Context, q Query) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	snapIter := f.buildQuery(q).Snapshots(ctx)
	sub := newSubscription(func() {
		snapIter.Stop()
		cancel()
	})
	go func() {
		for {
			snap, err := snapIter.Next()
			if err != nil {
				sub.fail(err)
				return
			}
			var docs []Document
			for {
				doc, err := snap.Documents.Next()
				if err == iterator.Done {
					break
				}
				if err != nil {
					sub.fail(err)
					return
				}
				docs = append(docs, Document{ID: doc.Ref.ID, Data: doc.Data()})
			}
			sub.push(docs)
		}
	}()
	return sub, nil
}

func (f *Firestore) ServerTimestamp() any { return firestore.ServerTimestamp }

func (f *Firestore) buildQuery(q Query) firestore.Query {
	fq := f.client.Collection(q.Path).Query
	for _, flt := range q.Filters {
		fq = fq.Where(flt.Path, flt.Op, flt.Value)
	}
	if q.OrderBy != "" {
		dir := firestore.Asc
		if q.Desc {
			dir = firestore.Desc
		}
		fq = fq.OrderBy(q.OrderBy, dir)
	}
	if q.Limit > 0 {
		fq = fq.Limit(q.Limit)
	}
	return fq
}
