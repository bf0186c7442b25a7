package firebase

import (
	"context"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/teachhub/backend/core/assistant"
)

const generationsCollection = "generations"

// Archive is the Firestore generation archive.
type Archive struct {
	client *firestore.Client
}

var _ assistant.Archive = (*Archive)(nil)

func NewArchive(ctx context.Context, app *firebase.App) (*Archive, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "initialising firestore client")
	}
	return &Archive{client: client}, nil
}

func (a *Archive) Close() error {
	return a.client.Close()
}

func (a *Archive) Save(ctx context.Context, g assistant.Generation) (assistant.Generation, error) {
	ref, _, err := a.client.Collection(generationsCollection).Add(ctx, g)
	if err != nil {
		return assistant.Generation{}, errors.Wrap(err, "saving generation")
	}
	g.ID = ref.ID
	return g, nil
}

func (a *Archive) Get(ctx context.Context, id string) (assistant.Generation, error) {
	doc, err := a.client.Collection(generationsCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return assistant.Generation{}, assistant.ErrGenerationNotFound
		}
		return assistant.Generation{}, errors.Wrap(err, "getting generation")
	}
	var g assistant.Generation
	if err := doc.DataTo(&g); err != nil {
		return assistant.Generation{}, errors.Wrapf(err, "decoding generation %s", id)
	}
	g.ID = doc.Ref.ID
	return g, nil
}

func (a *Archive) History(ctx context.Context, userID, flow string, limit int) ([]assistant.Generation, error) {
	query := a.client.Collection(generationsCollection).Where("user_id", "==", userID)
	if flow != "" {
		query = query.Where("flow", "==", flow)
	}
	query = query.OrderBy("created_at", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	gens := make([]assistant.Generation, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "iterating generations")
		}
		var g assistant.Generation
		if err := doc.DataTo(&g); err != nil {
			return nil, errors.Wrapf(err, "decoding generation %s", doc.Ref.ID)
		}
		g.ID = doc.Ref.ID
		gens = append(gens, g)
	}
	return gens, nil
}
