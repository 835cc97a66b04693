// Package build produces the application container image and pushes it
// to the provisioned repository using the local Docker daemon.
package build

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/image"
	dockerregistry "github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"

	"github.com/jamaican999/geopolitical-data-platform-backend/internal/adapters/platform/aws/registry"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/config"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/domain"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/ports"
	apperrors "github.com/jamaican999/geopolitical-data-platform-backend/internal/errors"
)

// DockerAPI is the slice of the Docker engine API the image step needs.
type DockerAPI interface {
	ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error)
	ImagePush(ctx context.Context, ref string, options image.PushOptions) (io.ReadCloser, error)
}

// NewDockerClient connects to the local daemon, honoring DOCKER_HOST and
// friends the same way the docker CLI does.
func NewDockerClient() (DockerAPI, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, apperrors.WrapUserFacing(err, apperrors.CodeImagePublishError,
			"failed to connect to the Docker daemon",
			"Ensure Docker is installed and running, or set DOCKER_HOST")
	}
	return cli, nil
}

// Step builds the application image from the configured build context,
// tags it against the remote repository and pushes it.
type Step struct {
	docker    DockerAPI
	ecrClient registry.ECRAPI
	cfg       *config.Config
	logger    ports.Logger

	// archiveContext is swapped out in tests to avoid touching the
	// filesystem.
	archiveContext func(path string) (io.ReadCloser, error)
}

func NewStep(docker DockerAPI, ecrClient registry.ECRAPI, cfg *config.Config, logger ports.Logger) *Step {
	return &Step{
		docker:    docker,
		ecrClient: ecrClient,
		cfg:       cfg,
		logger:    logger,
		archiveContext: func(path string) (io.ReadCloser, error) {
			return archive.TarWithOptions(path, &archive.TarOptions{})
		},
	}
}

func (s *Step) ID() domain.StepID {
	return domain.StepImage
}

func (s *Step) Describe() string {
	return fmt.Sprintf("build image from %s and push tag %s", s.cfg.App.BuildContext, s.cfg.App.ImageTag)
}

func (s *Step) Requires() []domain.Field {
	return []domain.Field{domain.FieldRegistryURI}
}

func (s *Step) Produces() []domain.Field {
	return []domain.Field{domain.FieldImageURI}
}

func (s *Step) Provision(ctx context.Context, doc *domain.Document) error {
	imageRef := doc.Registry.URI + ":" + s.cfg.App.ImageTag

	if err := s.build(ctx, imageRef); err != nil {
		return err
	}
	if err := s.push(ctx, imageRef); err != nil {
		return err
	}

	doc.Release.ImageURI = imageRef
	s.logger.Infof(ctx, "Pushed image %s", imageRef)
	return nil
}

func (s *Step) build(ctx context.Context, imageRef string) error {
	buildCtx, err := s.archiveContext(s.cfg.App.BuildContext)
	if err != nil {
		return apperrors.WrapUserFacing(err, apperrors.CodeImagePublishError,
			fmt.Sprintf("failed to read build context %s", s.cfg.App.BuildContext),
			"Check that the build context directory exists and is readable")
	}
	defer buildCtx.Close()

	s.logger.Infof(ctx, "Building image %s from %s", imageRef, s.cfg.App.BuildContext)
	resp, err := s.docker.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:       []string{imageRef},
		Dockerfile: s.cfg.App.Dockerfile,
		Remove:     true,
	})
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeImagePublishError, "image build failed to start")
	}
	defer resp.Body.Close()

	if err := drainBuildOutput(ctx, resp.Body, s.logger); err != nil {
		return apperrors.WrapUserFacing(err, apperrors.CodeImagePublishError,
			"image build failed",
			"Inspect the build output above and fix the Dockerfile or build context")
	}
	return nil
}

func (s *Step) push(ctx context.Context, imageRef string) error {
	auth, err := s.registryAuth(ctx)
	if err != nil {
		return err
	}

	s.logger.Infof(ctx, "Pushing %s", imageRef)
	body, err := s.docker.ImagePush(ctx, imageRef, image.PushOptions{RegistryAuth: auth})
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeImagePublishError, "image push failed to start")
	}
	defer body.Close()

	if err := drainBuildOutput(ctx, body, s.logger); err != nil {
		return apperrors.WrapUserFacing(err, apperrors.CodeImagePublishError,
			"image push failed",
			"Verify the repository exists and your credentials allow pushes")
	}
	return nil
}

func (s *Step) registryAuth(ctx context.Context) (string, error) {
	username, password, endpoint, err := registry.Credentials(ctx, s.ecrClient, s.logger)
	if err != nil {
		return "", err
	}
	auth := dockerregistry.AuthConfig{
		Username:      username,
		Password:      password,
		ServerAddress: endpoint,
	}
	encoded, err := json.Marshal(auth)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeInternal, "failed to encode registry credentials")
	}
	return base64.URLEncoding.EncodeToString(encoded), nil
}

// drainBuildOutput consumes the daemon's JSON message stream. Errors
// reported inside the stream surface as regular errors here.
func drainBuildOutput(ctx context.Context, body io.Reader, logger ports.Logger) error {
	err := jsonmessage.DisplayJSONMessagesStream(body, io.Discard, 0, false, nil)
	if err != nil {
		if jsonErr, ok := err.(*jsonmessage.JSONError); ok {
			logger.Errorf(ctx, nil, "Daemon reported: %s", jsonErr.Message)
		}
		return err
	}
	return nil
}

// Destroy removes nothing locally. The pushed image lives in the remote
// repository and is deleted together with it.
func (s *Step) Destroy(ctx context.Context, doc *domain.Document) error {
	if doc.Release.ImageURI != "" {
		s.logger.Debugf(ctx, "Image %s is removed with its repository", doc.Release.ImageURI)
		doc.Release.ImageURI = ""
	}
	return nil
}
