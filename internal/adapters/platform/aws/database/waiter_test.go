package database

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamaican999/geopolitical-data-platform-backend/internal/config"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/domain"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/errors"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/log"
)

type fakeRDS struct {
	RDSAPI
	statuses []string // one per DescribeDBInstances call, last repeats
	endpoint string
	calls    int
}

func (f *fakeRDS) DescribeDBInstances(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error) {
	i := f.calls
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	f.calls++

	instance := rdstypes.DBInstance{
		DBInstanceIdentifier: params.DBInstanceIdentifier,
		DBInstanceStatus:     aws.String(f.statuses[i]),
	}
	if f.statuses[i] == "available" {
		instance.Endpoint = &rdstypes.Endpoint{Address: aws.String(f.endpoint)}
	}
	return &rds.DescribeDBInstancesOutput{DBInstances: []rdstypes.DBInstance{instance}}, nil
}

func newWaitStepForTest(client RDSAPI, cfg *config.Config, clock *fakeClock) *WaitStep {
	step := NewWaitStep(client, cfg, log.NewNopLogger())
	step.sleep = clock.sleep
	step.now = clock.now
	return step
}

type fakeClock struct {
	current time.Time
	slept   []time.Duration
}

func (c *fakeClock) now() time.Time { return c.current }

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	c.slept = append(c.slept, d)
	c.current = c.current.Add(d)
	return nil
}

func waitDoc(cfg *config.Config) *domain.Document {
	doc := domain.NewDocument(cfg.Project, cfg.Region)
	doc.Database.InstanceID = cfg.Project + "-db"
	return doc
}

func TestWaitRecordsEndpointOnceAvailable(t *testing.T) {
	cfg := config.DefaultConfig()
	client := &fakeRDS{statuses: []string{"creating", "backing-up", "available"}, endpoint: "db.abc.us-east-1.rds.amazonaws.com"}
	clock := &fakeClock{current: time.Unix(0, 0)}
	step := newWaitStepForTest(client, cfg, clock)
	doc := waitDoc(cfg)

	require.NoError(t, step.Provision(context.Background(), doc))

	assert.Equal(t, "db.abc.us-east-1.rds.amazonaws.com", doc.Database.Endpoint)
	assert.Equal(t, 3, client.calls)
}

func TestWaitBackoffDoublesAndCaps(t *testing.T) {
	cfg := config.DefaultConfig()
	// Enough polls to push the delay past the cap.
	client := &fakeRDS{statuses: []string{"creating", "creating", "creating", "creating", "creating", "available"}, endpoint: "db.example"}
	clock := &fakeClock{current: time.Unix(0, 0)}
	step := newWaitStepForTest(client, cfg, clock)

	require.NoError(t, step.Provision(context.Background(), waitDoc(cfg)))

	want := []time.Duration{10 * time.Second, 20 * time.Second, 40 * time.Second, 60 * time.Second, 60 * time.Second}
	assert.Equal(t, want, clock.slept)
}

func TestWaitTimesOutWithLastStatus(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Readiness.Timeout = 30 * time.Second
	client := &fakeRDS{statuses: []string{"creating"}}
	clock := &fakeClock{current: time.Unix(0, 0)}
	step := newWaitStepForTest(client, cfg, clock)

	err := step.Provision(context.Background(), waitDoc(cfg))

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeReadinessTimeout))
	assert.Contains(t, err.Error(), "creating")
	// The wait never exceeds the budget: 10s + 20s would pass 30s, so it
	// gives up after the first sleep.
	assert.LessOrEqual(t, len(clock.slept), 2)
}

func TestWaitAvailableWithoutEndpointFails(t *testing.T) {
	cfg := config.DefaultConfig()
	client := &fakeRDS{statuses: []string{"available"}, endpoint: ""}
	clock := &fakeClock{current: time.Unix(0, 0)}
	step := newWaitStepForTest(client, cfg, clock)
	doc := waitDoc(cfg)

	err := step.Provision(context.Background(), doc)

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodePlatformAPIError))
	assert.Empty(t, doc.Database.Endpoint)
}
