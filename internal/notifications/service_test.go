package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carbon-scribe/project-portal/verification-backend/internal/directory"
)

type MockSES struct {
	mock.Mock
}

func (m *MockSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sesv2.SendEmailOutput), args.Error(1)
}

type MockSNS struct {
	mock.Mock
}

func (m *MockSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sns.PublishOutput), args.Error(1)
}

func newVerifier(dir *directory.MemoryStore, phone *string) directory.User {
	u := directory.User{
		ID:       uuid.New(),
		Email:    "verifier@example.com",
		Phone:    phone,
		FullName: "Ada Verifier",
		Role:     directory.RoleVerifier,
		IsActive: true,
	}
	dir.PutUser(u)
	return u
}

func TestNotifyStoresAndSendsEmail(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewMemoryStore()
	repo := NewMemoryRepository()
	user := newVerifier(dir, nil)

	ses := new(MockSES)
	ses.On("SendEmail", mock.Anything, mock.MatchedBy(func(in *sesv2.SendEmailInput) bool {
		return in.Destination.ToAddresses[0] == user.Email &&
			aws.ToString(in.Content.Simple.Subject.Data) == "New verification assigned"
	})).Return(&sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil)

	sms := new(MockSNS)

	svc := NewService(repo, dir, zap.NewNop(),
		NewEmailChannel(ses, "noreply@example.com"),
		NewSMSChannel(sms, []string{"verification_overdue"}),
	)

	err := svc.Notify(ctx, user.ID, "verification_assigned", map[string]interface{}{
		"message": "You have been assigned a new project",
	})
	require.NoError(t, err)

	items, err := svc.ListForUser(ctx, user.ID, false, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "You have been assigned a new project", items[0].Body)

	deliveries := repo.Deliveries()
	require.Len(t, deliveries, 2)
	assert.Equal(t, StatusSent, deliveries[0].Status)
	assert.Equal(t, "msg-1", deliveries[0].ProviderID)
	assert.Equal(t, StatusSkipped, deliveries[1].Status)

	ses.AssertExpectations(t)
	sms.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestNotifySMSForConfiguredKinds(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewMemoryStore()
	repo := NewMemoryRepository()
	phone := "+15550100"
	user := newVerifier(dir, &phone)

	sms := new(MockSNS)
	sms.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		return aws.ToString(in.PhoneNumber) == phone
	})).Return(&sns.PublishOutput{MessageId: aws.String("sms-1")}, nil)

	svc := NewService(repo, dir, zap.NewNop(), NewSMSChannel(sms, []string{"verification_overdue"}))

	require.NoError(t, svc.Notify(ctx, user.ID, "verification_overdue", nil))
	sms.AssertExpectations(t)
}

func TestNotifyChannelFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewMemoryStore()
	repo := NewMemoryRepository()
	user := newVerifier(dir, nil)

	ses := new(MockSES)
	ses.On("SendEmail", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	svc := NewService(repo, dir, zap.NewNop(), NewEmailChannel(ses, "noreply@example.com"))

	require.NoError(t, svc.Notify(ctx, user.ID, "deadline_reminder", nil))
	deliveries := repo.Deliveries()
	require.Len(t, deliveries, 1)
	assert.Equal(t, StatusFailed, deliveries[0].Status)
	assert.Contains(t, deliveries[0].Error, "throttled")
}

func TestNotifyUnknownRecipient(t *testing.T) {
	svc := NewService(NewMemoryRepository(), directory.NewMemoryStore(), zap.NewNop())
	err := svc.Notify(context.Background(), uuid.New(), "verification_assigned", nil)
	assert.Error(t, err)
}

func TestMarkRead(t *testing.T) {
	ctx := context.Background()
	dir := directory.NewMemoryStore()
	user := newVerifier(dir, nil)
	svc := NewService(NewMemoryRepository(), dir, zap.NewNop())

	require.NoError(t, svc.Notify(ctx, user.ID, "verification_started", nil))
	items, err := svc.ListForUser(ctx, user.ID, true, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)

	require.NoError(t, svc.MarkRead(ctx, user.ID, items[0].ID))
	unread, err := svc.ListForUser(ctx, user.ID, true, 0)
	require.NoError(t, err)
	assert.Empty(t, unread)

	assert.Error(t, svc.MarkRead(ctx, uuid.New(), items[0].ID))
}

func TestTitleFor(t *testing.T) {
	assert.Equal(t, "Verification overdue", titleFor("verification_overdue"))
	assert.Equal(t, "Project submitted", titleFor("project_submitted"))
	assert.Equal(t, "Notification", titleFor(""))
}
