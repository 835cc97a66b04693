// Package secrets materializes the application's runtime secrets: the
// database connection string and a freshly generated signing key.
package secrets

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/jamaican999/geopolitical-data-platform-backend/internal/adapters/platform/aws/awserrors"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/adapters/platform/aws/limiter"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/config"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/domain"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/ports"
	apperrors "github.com/jamaican999/geopolitical-data-platform-backend/internal/errors"
)

const signingKeyBytes = 32

type SecretsAPI interface {
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
	DeleteSecret(ctx context.Context, params *secretsmanager.DeleteSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DeleteSecretOutput, error)
}

type Step struct {
	client SecretsAPI
	cfg    *config.Config
	logger ports.Logger

	// randRead is swapped out in tests for a deterministic source.
	randRead func(b []byte) (int, error)
}

func NewStep(client SecretsAPI, cfg *config.Config, logger ports.Logger) *Step {
	return &Step{client: client, cfg: cfg, logger: logger, randRead: rand.Read}
}

func (s *Step) ID() domain.StepID {
	return domain.StepSecrets
}

func (s *Step) Describe() string {
	return "store the database connection string and a generated signing key in the secret store"
}

func (s *Step) Requires() []domain.Field {
	return []domain.Field{
		domain.FieldDatabaseEndpoint,
		domain.FieldDatabaseName,
		domain.FieldDatabaseUser,
	}
}

func (s *Step) Produces() []domain.Field {
	return []domain.Field{
		domain.FieldDatabaseURLSecret,
		domain.FieldSecretKeySecret,
	}
}

func (s *Step) Provision(ctx context.Context, doc *domain.Document) error {
	databaseURL := s.cfg.DatabaseURL(doc.Database.Endpoint)
	urlARN, err := s.createSecret(ctx, s.cfg.Project+"/database-url", databaseURL, "Database connection string for "+s.cfg.Project)
	if err != nil {
		return err
	}
	doc.Release.DatabaseURLSecretARN = urlARN

	key, err := s.generateKey()
	if err != nil {
		return err
	}
	keyARN, err := s.createSecret(ctx, s.cfg.Project+"/secret-key", key, "Application signing key for "+s.cfg.Project)
	if err != nil {
		return err
	}
	doc.Release.SecretKeySecretARN = keyARN

	s.logger.Infof(ctx, "Stored application secrets (database-url, secret-key)")
	return nil
}

func (s *Step) createSecret(ctx context.Context, name, value, description string) (string, error) {
	if err := limiter.Wait(ctx, s.logger); err != nil {
		return "", err
	}
	out, err := s.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(name),
		SecretString: aws.String(value),
		Description:  aws.String(description),
		Tags: []smtypes.Tag{
			{Key: aws.String("Project"), Value: aws.String(s.cfg.Project)},
		},
	})
	if err != nil {
		return "", awserrors.Classify(ctx, err, fmt.Sprintf("secret %s", name))
	}
	return aws.ToString(out.ARN), nil
}

func (s *Step) generateKey() (string, error) {
	buf := make([]byte, signingKeyBytes)
	if _, err := s.randRead(buf); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeInternal, "failed to generate signing key")
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

func (s *Step) Destroy(ctx context.Context, doc *domain.Document) error {
	names := []struct {
		name string
		arn  *string
	}{
		{s.cfg.Project + "/database-url", &doc.Release.DatabaseURLSecretARN},
		{s.cfg.Project + "/secret-key", &doc.Release.SecretKeySecretARN},
	}
	for _, sec := range names {
		if *sec.arn == "" {
			continue
		}
		if err := limiter.Wait(ctx, s.logger); err != nil {
			return err
		}
		_, err := s.client.DeleteSecret(ctx, &secretsmanager.DeleteSecretInput{
			SecretId:                   aws.String(*sec.arn),
			ForceDeleteWithoutRecovery: aws.Bool(true),
		})
		if err != nil && !awserrors.IsNotFound(err) {
			return awserrors.Classify(ctx, err, fmt.Sprintf("secret %s", sec.name))
		}
		s.logger.Infof(ctx, "Deleted secret %s", sec.name)
		*sec.arn = ""
	}
	return nil
}
