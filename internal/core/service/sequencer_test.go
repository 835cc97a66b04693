package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/domain"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/core/ports"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/errors"
	"github.com/jamaican999/geopolitical-data-platform-backend/internal/log"
)

type fakeStep struct {
	id        domain.StepID
	requires  []domain.Field
	produces  []domain.Field
	provision func(ctx context.Context, doc *domain.Document) error
	destroy   func(ctx context.Context, doc *domain.Document) error

	provisionCalls int
	destroyCalls   int
}

func (f *fakeStep) ID() domain.StepID        { return f.id }
func (f *fakeStep) Describe() string         { return string(f.id) }
func (f *fakeStep) Requires() []domain.Field { return f.requires }
func (f *fakeStep) Produces() []domain.Field { return f.produces }

func (f *fakeStep) Provision(ctx context.Context, doc *domain.Document) error {
	f.provisionCalls++
	if f.provision != nil {
		return f.provision(ctx, doc)
	}
	return nil
}

func (f *fakeStep) Destroy(ctx context.Context, doc *domain.Document) error {
	f.destroyCalls++
	if f.destroy != nil {
		return f.destroy(ctx, doc)
	}
	return nil
}

type memoryStore struct {
	doc       *domain.Document
	saveCalls int
	order     []domain.StepID
}

func (m *memoryStore) Load(ctx context.Context) (*domain.Document, error) {
	if m.doc == nil {
		return &domain.Document{Version: domain.DocumentVersion}, nil
	}
	return m.doc, nil
}

func (m *memoryStore) Save(ctx context.Context, doc *domain.Document) error {
	m.doc = doc
	m.saveCalls++
	return nil
}

func (m *memoryStore) Path() string { return "memory" }

func newTestSequencer(t *testing.T, steps []ports.Step, seed []domain.Field, store *memoryStore) *Sequencer {
	t.Helper()
	seq, err := NewSequencer(domain.PhaseProvision, steps, seed, store, nil, log.NewNopLogger(), "proj", "us-east-1", false)
	require.NoError(t, err)
	return seq
}

func TestValidateOrder(t *testing.T) {
	vpc := &fakeStep{id: "vpc", produces: []domain.Field{domain.FieldVpcID}}
	fw := &fakeStep{id: "fw", requires: []domain.Field{domain.FieldVpcID}, produces: []domain.Field{domain.FieldEdgeGroupID}}

	tests := []struct {
		name    string
		steps   []ports.Step
		seed    []domain.Field
		wantErr bool
	}{
		{name: "producer before consumer", steps: []ports.Step{vpc, fw}},
		{name: "consumer before producer", steps: []ports.Step{fw, vpc}, wantErr: true},
		{name: "requirement satisfied by seed", steps: []ports.Step{fw}, seed: []domain.Field{domain.FieldVpcID}},
		{name: "requirement never produced", steps: []ports.Step{fw}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateOrder(tc.steps, tc.seed)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRunExecutesStepsInOrderAndPersists(t *testing.T) {
	store := &memoryStore{}
	var order []domain.StepID

	a := &fakeStep{id: "a", produces: []domain.Field{domain.FieldVpcID}}
	a.provision = func(ctx context.Context, doc *domain.Document) error {
		order = append(order, a.id)
		doc.Network.VpcID = "vpc-123"
		return nil
	}
	b := &fakeStep{id: "b", requires: []domain.Field{domain.FieldVpcID}, produces: []domain.Field{domain.FieldEdgeGroupID}}
	b.provision = func(ctx context.Context, doc *domain.Document) error {
		order = append(order, b.id)
		doc.Firewall.EdgeGroupID = "sg-123"
		return nil
	}

	seq := newTestSequencer(t, []ports.Step{a, b}, nil, store)
	require.NoError(t, seq.Run(context.Background()))

	assert.Equal(t, []domain.StepID{"a", "b"}, order)
	assert.Equal(t, 2, store.saveCalls)
	assert.Equal(t, "vpc-123", store.doc.Network.VpcID)
	assert.Equal(t, "proj", store.doc.Project)
}

func TestRunFailFastSkipsRemainingStepsAndDoesNotPersist(t *testing.T) {
	store := &memoryStore{}

	boom := errors.New(errors.CodePlatformAPIError, "boom")
	a := &fakeStep{id: "a", produces: []domain.Field{domain.FieldVpcID}}
	a.provision = func(ctx context.Context, doc *domain.Document) error {
		doc.Network.VpcID = "vpc-partial"
		return boom
	}
	b := &fakeStep{id: "b"}

	seq := newTestSequencer(t, []ports.Step{a, b}, nil, store)
	err := seq.Run(context.Background())

	require.Error(t, err)
	assert.Equal(t, errors.CodePlatformAPIError, errors.GetCode(err))
	assert.Equal(t, 0, b.provisionCalls)
	assert.Equal(t, 0, store.saveCalls, "a failed step must not persist anything")
}

func TestRunRefusesWhenStepOutputAlreadyRecorded(t *testing.T) {
	doc := domain.NewDocument("proj", "us-east-1")
	doc.Network.VpcID = "vpc-existing"
	store := &memoryStore{doc: doc}

	a := &fakeStep{id: "a", produces: []domain.Field{domain.FieldVpcID}}

	seq := newTestSequencer(t, []ports.Step{a}, nil, store)
	err := seq.Run(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeResourceAlreadyExists))
	assert.Equal(t, 0, a.provisionCalls)
}

func TestRunRefusesForeignProjectState(t *testing.T) {
	store := &memoryStore{doc: domain.NewDocument("other", "us-east-1")}
	a := &fakeStep{id: "a", produces: []domain.Field{domain.FieldVpcID}}

	seq := newTestSequencer(t, []ports.Step{a}, nil, store)
	err := seq.Run(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeConfigValidation))
}

func TestRunMissingDependency(t *testing.T) {
	// Seed satisfies static validation, but the document never actually
	// recorded the field.
	store := &memoryStore{}
	b := &fakeStep{id: "b", requires: []domain.Field{domain.FieldVpcID}}

	seq := newTestSequencer(t, []ports.Step{b}, []domain.Field{domain.FieldVpcID}, store)
	err := seq.Run(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeMissingDependency))
	assert.Equal(t, 0, b.provisionCalls)
}

func TestDryRunTouchesNothing(t *testing.T) {
	store := &memoryStore{}
	a := &fakeStep{id: "a", produces: []domain.Field{domain.FieldVpcID}}

	seq, err := NewSequencer(domain.PhaseProvision, []ports.Step{a}, nil, store, nil, log.NewNopLogger(), "proj", "us-east-1", true)
	require.NoError(t, err)
	require.NoError(t, seq.Run(context.Background()))

	assert.Equal(t, 0, a.provisionCalls)
	assert.Equal(t, 0, store.saveCalls)
}

func TestTeardownRunsInReverseAndSkipsUnrecorded(t *testing.T) {
	doc := domain.NewDocument("proj", "us-east-1")
	doc.Network.VpcID = "vpc-123"
	doc.LoadBalancer.ARN = "arn:lb"
	store := &memoryStore{doc: doc}

	var order []domain.StepID
	a := &fakeStep{id: "a", produces: []domain.Field{domain.FieldVpcID}}
	a.destroy = func(ctx context.Context, d *domain.Document) error {
		order = append(order, "a")
		d.Network.VpcID = ""
		return nil
	}
	b := &fakeStep{id: "b", produces: []domain.Field{domain.FieldEdgeGroupID}} // nothing recorded
	c := &fakeStep{id: "c", produces: []domain.Field{domain.FieldLoadBalancerARN}}
	c.destroy = func(ctx context.Context, d *domain.Document) error {
		order = append(order, "c")
		d.LoadBalancer.ARN = ""
		return nil
	}

	seq := newTestSequencer(t, []ports.Step{a, b, c}, nil, store)
	require.NoError(t, seq.Teardown(context.Background()))

	assert.Equal(t, []domain.StepID{"c", "a"}, order)
	assert.Equal(t, 0, b.destroyCalls)
	assert.Empty(t, store.doc.Network.VpcID)
}

func TestTeardownToleratesMissingResources(t *testing.T) {
	doc := domain.NewDocument("proj", "us-east-1")
	doc.Network.VpcID = "vpc-123"
	store := &memoryStore{doc: doc}

	a := &fakeStep{id: "a", produces: []domain.Field{domain.FieldVpcID}}
	a.destroy = func(ctx context.Context, d *domain.Document) error {
		return errors.New(errors.CodeResourceNotFound, "already gone")
	}

	seq := newTestSequencer(t, []ports.Step{a}, nil, store)
	assert.NoError(t, seq.Teardown(context.Background()))
}

func TestTeardownStopsOnRealFailure(t *testing.T) {
	doc := domain.NewDocument("proj", "us-east-1")
	doc.Network.VpcID = "vpc-123"
	store := &memoryStore{doc: doc}

	a := &fakeStep{id: "a", produces: []domain.Field{domain.FieldVpcID}}
	a.destroy = func(ctx context.Context, d *domain.Document) error {
		return errors.New(errors.CodePlatformAPIError, "dependency violation")
	}

	seq := newTestSequencer(t, []ports.Step{a}, nil, store)
	err := seq.Teardown(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodePlatformAPIError))
}
