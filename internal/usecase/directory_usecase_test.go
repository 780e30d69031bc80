package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"holachat/internal/domain/entity"
	"holachat/pkg/errors"
)

func strPtr(s string) *string { return &s }

func TestLoadCounterpartsMergesInIDOrder(t *testing.T) {
	repo := new(mockConversationRepo)
	repo.On("ListPartnerIDs", mock.Anything).Return([]string{"7", "9"}, nil)
	repo.On("GetUsersByIDs", mock.Anything, []string{"7", "9"}).Return([]entity.UserRecord{
		{UserID: "9", Name: "Bob", Avatar: strPtr("/bob.png")},
		{UserID: "7", Name: "Alice"},
	}, nil)

	counterparts, err := NewDirectoryUseCase(repo).LoadCounterparts(context.Background())
	require.NoError(t, err)
	require.Len(t, counterparts, 2)

	assert.Equal(t, "7", counterparts[0].ID)
	assert.Equal(t, "Alice", counterparts[0].DisplayName)
	assert.Equal(t, entity.DefaultAvatarRef, counterparts[0].AvatarRef)
	assert.Equal(t, "9", counterparts[1].ID)
	assert.Equal(t, "Bob", counterparts[1].DisplayName)
	assert.Equal(t, "/bob.png", counterparts[1].AvatarRef)
	repo.AssertExpectations(t)
}

func TestLoadCounterpartsEmptySkipsBatchCall(t *testing.T) {
	repo := new(mockConversationRepo)
	repo.On("ListPartnerIDs", mock.Anything).Return([]string{}, nil)

	counterparts, err := NewDirectoryUseCase(repo).LoadCounterparts(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, counterparts)
	assert.Empty(t, counterparts)
	repo.AssertNotCalled(t, "GetUsersByIDs", mock.Anything, mock.Anything)
}

func TestLoadCounterpartsDedupesAndFallsBack(t *testing.T) {
	repo := new(mockConversationRepo)
	repo.On("ListPartnerIDs", mock.Anything).Return([]string{"7", "", "7", "12"}, nil)
	repo.On("GetUsersByIDs", mock.Anything, []string{"7", "12"}).Return([]entity.UserRecord{
		{UserID: "7", Name: "Alice"},
	}, nil)

	counterparts, err := NewDirectoryUseCase(repo).LoadCounterparts(context.Background())
	require.NoError(t, err)
	require.Len(t, counterparts, 2)
	assert.Equal(t, "Alice", counterparts[0].DisplayName)
	assert.Equal(t, "12", counterparts[1].ID)
	assert.Equal(t, "User 12", counterparts[1].DisplayName)
	assert.Equal(t, entity.DefaultAvatarRef, counterparts[1].AvatarRef)
}

func TestLoadCounterpartsFailuresYieldEmptyDirectory(t *testing.T) {
	t.Run("partner list", func(t *testing.T) {
		repo := new(mockConversationRepo)
		repo.On("ListPartnerIDs", mock.Anything).Return(nil, errors.Unavailable("down", nil))

		counterparts, err := NewDirectoryUseCase(repo).LoadCounterparts(context.Background())
		assert.True(t, errors.Is(err, "UNAVAILABLE"))
		assert.Empty(t, counterparts)
		repo.AssertNotCalled(t, "GetUsersByIDs", mock.Anything, mock.Anything)
	})

	t.Run("identity batch", func(t *testing.T) {
		repo := new(mockConversationRepo)
		repo.On("ListPartnerIDs", mock.Anything).Return([]string{"7"}, nil)
		repo.On("GetUsersByIDs", mock.Anything, []string{"7"}).Return(nil, errors.FromStatus(500, "boom"))

		counterparts, err := NewDirectoryUseCase(repo).LoadCounterparts(context.Background())
		require.Error(t, err)
		assert.Equal(t, "boom", errors.Message(err))
		assert.NotNil(t, counterparts)
		assert.Empty(t, counterparts)
	})
}
