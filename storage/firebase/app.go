// Package firebase stores generations in Firestore and evidence files in Firebase Storage.
package firebase

import (
	"context"

	firebase "firebase.google.com/go/v4"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"github.com/teachhub/backend/core"
)

// NewApp initialises the Firebase app of the configured project.
// Without a credentials file, Application Default Credentials are used.
func NewApp(ctx context.Context, conf core.StorageConfig) (*firebase.App, error) {
	fbConf := &firebase.Config{
		ProjectID:     conf.FirebaseProjectID,
		StorageBucket: conf.EvidenceBucket,
	}
	var opts []option.ClientOption
	if conf.FirebaseCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(conf.FirebaseCredentialsFile))
	}
	app, err := firebase.NewApp(ctx, fbConf, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "initialising firebase app")
	}
	return app, nil
}
