// Package secrets resolves configuration values kept in AWS Secrets Manager.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

var ErrEmptySecret = errors.New("secret has no string value")

type secretsAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type Resolver struct {
	client secretsAPI
}

// NewResolver builds a Secrets Manager client from the default AWS
// credential chain.
func NewResolver(ctx context.Context) (*Resolver, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &Resolver{client: secretsmanager.NewFromConfig(cfg)}, nil
}

// ConnectionString returns the database connection string stored under id.
// The secret may be the bare string or a JSON object with a
// "connection_string" key.
func (r *Resolver) ConnectionString(ctx context.Context, id string) (string, error) {
	out, err := r.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(id),
	})
	if err != nil {
		return "", fmt.Errorf("fetching secret %s: %w", id, err)
	}

	raw := strings.TrimSpace(aws.ToString(out.SecretString))
	if raw == "" {
		return "", fmt.Errorf("%s: %w", id, ErrEmptySecret)
	}
	if !strings.HasPrefix(raw, "{") {
		return raw, nil
	}

	var doc struct {
		ConnectionString string `json:"connection_string"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return "", fmt.Errorf("decoding secret %s: %w", id, err)
	}
	if doc.ConnectionString == "" {
		return "", fmt.Errorf("%s has no connection_string: %w", id, ErrEmptySecret)
	}
	return doc.ConnectionString, nil
}
