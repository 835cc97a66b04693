// Package registry provisions the container image repository and hands
// out push credentials for it.
package registry

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"

	"github.com/jamaican999/geopolitical-data-platform-backend/internal/adapters/platform/aws/awserrors"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/adapters/platform/aws/limiter"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/config"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/domain"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/ports"
	apperrors "github.com/jamaican999/geopolitical-data-platform-backend/internal/errors"
)

type ECRAPI interface {
	CreateRepository(ctx context.Context, params *ecr.CreateRepositoryInput, optFns ...func(*ecr.Options)) (*ecr.CreateRepositoryOutput, error)
	GetAuthorizationToken(ctx context.Context, params *ecr.GetAuthorizationTokenInput, optFns ...func(*ecr.Options)) (*ecr.GetAuthorizationTokenOutput, error)
	DeleteRepository(ctx context.Context, params *ecr.DeleteRepositoryInput, optFns ...func(*ecr.Options)) (*ecr.DeleteRepositoryOutput, error)
}

type Step struct {
	client ECRAPI
	cfg    *config.Config
	logger ports.Logger
}

func NewStep(client ECRAPI, cfg *config.Config, logger ports.Logger) *Step {
	return &Step{client: client, cfg: cfg, logger: logger}
}

func (s *Step) ID() domain.StepID {
	return domain.StepRegistry
}

func (s *Step) Describe() string {
	return fmt.Sprintf("create container image repository %s-backend", s.cfg.Project)
}

func (s *Step) Requires() []domain.Field {
	return nil
}

func (s *Step) Produces() []domain.Field {
	return []domain.Field{domain.FieldRegistryName, domain.FieldRegistryURI}
}

func (s *Step) Provision(ctx context.Context, doc *domain.Document) error {
	name := s.cfg.Project + "-backend"

	if err := limiter.Wait(ctx, s.logger); err != nil {
		return err
	}
	out, err := s.client.CreateRepository(ctx, &ecr.CreateRepositoryInput{
		RepositoryName: aws.String(name),
		ImageScanningConfiguration: &ecrtypes.ImageScanningConfiguration{
			ScanOnPush: true,
		},
		Tags: []ecrtypes.Tag{
			{Key: aws.String("Project"), Value: aws.String(s.cfg.Project)},
		},
	})
	if err != nil {
		return awserrors.Classify(ctx, err, fmt.Sprintf("image repository %s", name))
	}

	doc.Registry.Name = name
	doc.Registry.URI = aws.ToString(out.Repository.RepositoryUri)
	s.logger.Infof(ctx, "Created image repository %s", doc.Registry.URI)
	return nil
}

func (s *Step) Destroy(ctx context.Context, doc *domain.Document) error {
	if doc.Registry.Name == "" {
		return nil
	}
	if err := limiter.Wait(ctx, s.logger); err != nil {
		return err
	}
	_, err := s.client.DeleteRepository(ctx, &ecr.DeleteRepositoryInput{
		RepositoryName: aws.String(doc.Registry.Name),
		Force:          true,
	})
	if err != nil && !awserrors.IsNotFound(err) {
		return awserrors.Classify(ctx, err, fmt.Sprintf("image repository %s", doc.Registry.Name))
	}
	s.logger.Infof(ctx, "Deleted image repository %s", doc.Registry.Name)
	doc.Registry.Name = ""
	doc.Registry.URI = ""
	return nil
}

// Credentials fetches and decodes a push token. ECR hands back
// base64("AWS:<password>") plus the registry endpoint.
func Credentials(ctx context.Context, client ECRAPI, logger ports.Logger) (username, password, endpoint string, err error) {
	if err := limiter.Wait(ctx, logger); err != nil {
		return "", "", "", err
	}
	out, err := client.GetAuthorizationToken(ctx, &ecr.GetAuthorizationTokenInput{})
	if err != nil {
		return "", "", "", awserrors.Classify(ctx, err, "registry authorization token")
	}
	if len(out.AuthorizationData) == 0 {
		return "", "", "", apperrors.New(apperrors.CodePlatformAPIError, "registry returned no authorization data")
	}

	data := out.AuthorizationData[0]
	decoded, err := base64.StdEncoding.DecodeString(aws.ToString(data.AuthorizationToken))
	if err != nil {
		return "", "", "", apperrors.Wrap(err, apperrors.CodePlatformAPIError, "registry authorization token is not valid base64")
	}
	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return "", "", "", apperrors.New(apperrors.CodePlatformAPIError, "registry authorization token has unexpected shape")
	}

	return parts[0], parts[1], aws.ToString(data.ProxyEndpoint), nil
}
