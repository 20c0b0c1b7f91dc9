package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/leadsync/internal/entity"
	"github.com/xavierca1/leadsync/internal/replica"
	"github.com/xavierca1/leadsync/internal/usecase"
)

func TestCreateLeadInsertsOptimistically(t *testing.T) {
	repo := new(MockLeadRepository)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*entity.Lead")).Return(nil)
	sink := replica.New[entity.Lead]()

	uc := usecase.NewManageLeadsUseCase(repo, nil)
	lead, err := uc.Create(context.Background(), "user-1", usecase.LeadInput{
		Name:     "Grace Hopper",
		Phone:    "15551234567",
		LeadType: "inbound",
	}, sink)

	require.NoError(t, err)
	assert.Equal(t, "+15551234567", lead.Phone)
	assert.Equal(t, entity.ChannelInboundCall, lead.SourceChannel)
	assert.Equal(t, entity.StatusCold, lead.Status)

	got, ok := sink.Get(lead.ID)
	require.True(t, ok)
	assert.Equal(t, lead.Name, got.Name)

	// the feed echo of our own insert is dropped
	assert.False(t, sink.Insert(*lead))
	assert.Equal(t, 1, sink.Len())
}

func TestCreateLeadKeepsExplicitChannel(t *testing.T) {
	repo := new(MockLeadRepository)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	uc := usecase.NewManageLeadsUseCase(repo, nil)
	lead, err := uc.Create(context.Background(), "user-1", usecase.LeadInput{
		Name:          "Grace",
		LeadType:      "outbound",
		SourceChannel: "web_form",
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, entity.ChannelWebForm, lead.SourceChannel)
}

func TestCreateLeadRejectsBlankName(t *testing.T) {
	repo := new(MockLeadRepository)
	uc := usecase.NewManageLeadsUseCase(repo, nil)

	_, err := uc.Create(context.Background(), "user-1", usecase.LeadInput{Name: "   "}, nil)

	assert.True(t, usecase.IsValidationError(err))
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestUpdateLeadDoesNotResyncChannel(t *testing.T) {
	repo := new(MockLeadRepository)
	repo.On("Update", mock.Anything, "lead-1", mock.MatchedBy(func(p entity.LeadPatch) bool {
		return *p.LeadType == entity.LeadTypeInbound && *p.SourceChannel == entity.ChannelColdCall
	})).Return(&entity.Lead{ID: "lead-1", LeadType: entity.LeadTypeInbound, SourceChannel: entity.ChannelColdCall}, nil)

	uc := usecase.NewManageLeadsUseCase(repo, nil)
	_, err := uc.Update(context.Background(), "lead-1", usecase.LeadInput{
		Name:          "Grace",
		LeadType:      "inbound",
		SourceChannel: "cold_call",
	}, nil)

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestDeleteLeadRemovesFromSink(t *testing.T) {
	repo := new(MockLeadRepository)
	repo.On("Delete", mock.Anything, "lead-1").Return(nil)
	sink := replica.New[entity.Lead]()
	sink.Insert(entity.Lead{ID: "lead-1", Name: "x"})

	uc := usecase.NewManageLeadsUseCase(repo, nil)
	require.NoError(t, uc.Delete(context.Background(), "lead-1", sink))
	assert.Equal(t, 0, sink.Len())
}

func TestDeleteAllLogsOnlyTouchesOwner(t *testing.T) {
	repo := &memLogRepo{}
	ctx := context.Background()
	for _, owner := range []string{"alice", "bob", "alice", "", "bob"} {
		require.NoError(t, repo.Append(ctx, entity.NewAutomationLog(entity.ActionStartCalling, entity.LogSuccess, owner, nil)))
	}
	sink := replica.New[entity.AutomationLog]()
	sink.Replace(repo.all())
	notifier := &recordingNotifier{}

	uc := usecase.NewManageLogsUseCase(repo, notifier, nil)
	n, err := uc.DeleteAll(ctx, "alice", sink)

	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	for _, l := range repo.all() {
		assert.NotEqual(t, "alice", l.UserID)
	}
	assert.Len(t, repo.all(), 3)
	assert.Equal(t, 3, sink.Len())
	assert.Equal(t, []string{"All logs deleted successfully"}, notifier.successes)
}

func TestDeleteAllLogsRequiresUser(t *testing.T) {
	uc := usecase.NewManageLogsUseCase(&memLogRepo{}, nil, nil)
	_, err := uc.DeleteAll(context.Background(), "", nil)
	assert.True(t, usecase.IsValidationError(err))
}

func TestDeleteLogFailureNotifies(t *testing.T) {
	repo := new(MockLogRepository)
	repo.On("Delete", mock.Anything, "log-1").Return(errStoreDown)
	notifier := &recordingNotifier{}

	uc := usecase.NewManageLogsUseCase(repo, notifier, nil)
	err := uc.Delete(context.Background(), "log-1", nil)

	assert.True(t, usecase.IsPersistenceError(err))
	assert.Equal(t, []string{"Failed to delete log"}, notifier.errors)
}

func TestManageLogsWithNotifierLeavesOriginalAlone(t *testing.T) {
	repo := &memLogRepo{}
	ctx := context.Background()
	require.NoError(t, repo.Append(ctx, entity.NewAutomationLog(entity.ActionStartCalling, entity.LogSuccess, "alice", nil)))
	shared := &recordingNotifier{}
	scoped := &recordingNotifier{}

	uc := usecase.NewManageLogsUseCase(repo, shared, nil)
	_, err := uc.WithNotifier(scoped).DeleteAll(ctx, "alice", nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"All logs deleted successfully"}, scoped.successes)
	assert.Empty(t, shared.successes)
	assert.Same(t, shared, uc.Notifier)
}
