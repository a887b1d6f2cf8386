package service

import (
	"context"
	"fmt"
	"testing"

	"investwallet/internal/gateway"
	"investwallet/internal/model"
	"investwallet/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kycWebhook(reference, status, reason string) []byte {
	return []byte(fmt.Sprintf(`{"reference":%q,"status":%q,"reason":%q}`, reference, status, reason))
}

func TestKYCInitiate(t *testing.T) {
	db := newTestDB(t)
	svc := NewKYCService(db, newTestConfig(), &fakeKYCGateway{})
	ctx := context.Background()

	userID := uuid.NewString()
	result, err := svc.Initiate(ctx, userID, &gateway.Profile{
		FirstName: "Fatima",
		LastName:  "Ali",
	})
	require.NoError(t, err)
	assert.Equal(t, model.KYCStatusInProgress, result.Record.Status)
	require.NotNil(t, result.Record.ProviderReference)
	assert.NotEmpty(t, result.RedirectURL)
	assert.NotNil(t, result.Record.SubmittedAt)
}

func TestKYCInitiateRejectsWhileInProgress(t *testing.T) {
	db := newTestDB(t)
	svc := NewKYCService(db, newTestConfig(), &fakeKYCGateway{})
	ctx := context.Background()

	userID := uuid.NewString()
	_, err := svc.Initiate(ctx, userID, &gateway.Profile{FirstName: "Fatima", LastName: "Ali"})
	require.NoError(t, err)

	// 进行中的不允许重复发起
	_, err = svc.Initiate(ctx, userID, &gateway.Profile{FirstName: "Fatima", LastName: "Ali"})
	assert.ErrorIs(t, err, repository.ErrKYCAlreadyInProgress)
}

func TestKYCStatusNotStarted(t *testing.T) {
	db := newTestDB(t)
	svc := NewKYCService(db, newTestConfig(), &fakeKYCGateway{})

	record, status, err := svc.Status(context.Background(), uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, record)
	assert.Equal(t, model.KYCStatusNotStarted, status)
}

func TestKYCWebhookApproval(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	kycGW := &fakeKYCGateway{}
	svc := NewKYCService(db, cfg, kycGW)
	reconcile := NewReconcileService(db, cfg, &fakePaymentGateway{}, kycGW)
	ctx := context.Background()

	userID := uuid.NewString()
	result, err := svc.Initiate(ctx, userID, &gateway.Profile{FirstName: "Fatima", LastName: "Ali"})
	require.NoError(t, err)
	ref := *result.Record.ProviderReference

	payload := kycWebhook(ref, model.KYCStatusApproved, "")

	require.NoError(t, reconcile.HandleKYCWebhook(ctx, testSignature, payload))

	record, status, err := svc.Status(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, model.KYCStatusApproved, status)
	assert.NotNil(t, record.ApprovedAt)

	// 重复投递：状态不变，事件只发一条
	require.NoError(t, reconcile.HandleKYCWebhook(ctx, testSignature, payload))
	assert.Equal(t, int64(1), countOutboxEvents(t, db, EventKYCApproved))

	// 通过后不允许再次发起
	_, err = svc.Initiate(ctx, userID, &gateway.Profile{FirstName: "Fatima", LastName: "Ali"})
	assert.ErrorIs(t, err, repository.ErrKYCAlreadyInProgress)
}

func TestKYCRejectionAndResubmit(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	kycGW := &fakeKYCGateway{}
	svc := NewKYCService(db, cfg, kycGW)
	reconcile := NewReconcileService(db, cfg, &fakePaymentGateway{}, kycGW)
	ctx := context.Background()

	userID := uuid.NewString()
	result, err := svc.Initiate(ctx, userID, &gateway.Profile{FirstName: "Fatima", LastName: "Ali"})
	require.NoError(t, err)
	oldRef := *result.Record.ProviderReference

	require.NoError(t, reconcile.HandleKYCWebhook(ctx, testSignature,
		kycWebhook(oldRef, model.KYCStatusRejected, "证件过期")))

	record, status, err := svc.Status(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, model.KYCStatusRejected, status)
	assert.Equal(t, "证件过期", record.RejectionReason)
	assert.Equal(t, int64(1), countOutboxEvents(t, db, EventKYCRejected))

	// 被拒后允许重新发起：复用同一条记录，换新引用号
	again, err := svc.Initiate(ctx, userID, &gateway.Profile{FirstName: "Fatima", LastName: "Ali"})
	require.NoError(t, err)
	assert.Equal(t, record.ID, again.Record.ID)
	assert.Equal(t, model.KYCStatusInProgress, again.Record.Status)
	assert.NotEqual(t, oldRef, *again.Record.ProviderReference)
	assert.Empty(t, again.Record.RejectionReason)
}

func TestKYCWebhookBadSignature(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	kycGW := &fakeKYCGateway{}
	svc := NewKYCService(db, cfg, kycGW)
	reconcile := NewReconcileService(db, cfg, &fakePaymentGateway{}, kycGW)
	ctx := context.Background()

	userID := uuid.NewString()
	result, err := svc.Initiate(ctx, userID, &gateway.Profile{FirstName: "Fatima", LastName: "Ali"})
	require.NoError(t, err)

	err = reconcile.HandleKYCWebhook(ctx, "forged",
		kycWebhook(*result.Record.ProviderReference, model.KYCStatusApproved, ""))
	assert.ErrorIs(t, err, ErrSignatureInvalid)

	_, status, err := svc.Status(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, model.KYCStatusInProgress, status)
}

func TestKYCWebhookUnknownReferenceAcked(t *testing.T) {
	db := newTestDB(t)
	reconcile := NewReconcileService(db, newTestConfig(), &fakePaymentGateway{}, &fakeKYCGateway{})

	err := reconcile.HandleKYCWebhook(context.Background(), testSignature,
		kycWebhook("KYC-nobody", model.KYCStatusApproved, ""))
	assert.NoError(t, err)
}

func TestKYCStatusPollRefresh(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	kycGW := &fakeKYCGateway{}
	svc := NewKYCService(db, cfg, kycGW)
	ctx := context.Background()

	userID := uuid.NewString()
	_, err := svc.Initiate(ctx, userID, &gateway.Profile{FirstName: "Fatima", LastName: "Ali"})
	require.NoError(t, err)

	// 核验机构轮询报 approved：查状态时顺带推进
	kycGW.pollResult = &gateway.StatusResult{Status: model.KYCStatusApproved}

	record, status, err := svc.Status(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, model.KYCStatusApproved, status)
	assert.NotNil(t, record.ApprovedAt)
}
