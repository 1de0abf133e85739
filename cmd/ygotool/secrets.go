package main

import (
	"context"
	"fmt"
	"os"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"

	"github.com/mtgban/go-ygoban/ygoban"
)

// resolveDBPassword replaces the database password with the latest version
// of a Secret Manager secret, when GCP_PROJECT_ID and DB_PASSWORD_SECRET_ID
// are both set.
func resolveDBPassword(ctx context.Context, cfg *ygoban.DBConfig) error {
	projectID := os.Getenv("GCP_PROJECT_ID")
	secretID := os.Getenv("DB_PASSWORD_SECRET_ID")
	if projectID == "" || secretID == "" {
		return nil
	}

	var opts []option.ClientOption
	serviceAcc := os.Getenv("GCS_SVC_ACC")
	if serviceAcc != "" {
		opts = append(opts, option.WithCredentialsFile(serviceAcc))
	}

	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to setup client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", projectID, secretID)
	request := &secretmanagerpb.AccessSecretVersionRequest{Name: secretName}

	result, err := client.AccessSecretVersion(ctx, request)
	if err != nil {
		return fmt.Errorf("failed to access secret version: %w", err)
	}

	cfg.Password = string(result.Payload.Data)
	return nil
}
