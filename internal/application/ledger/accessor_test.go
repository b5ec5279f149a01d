package ledger_test

import (
	"context"
	"sync"
	"testing"

	"github.com/cassiomorais/pspadapter/internal/application/ledger"
	"github.com/cassiomorais/pspadapter/internal/domain/interaction"
	"github.com/cassiomorais/pspadapter/internal/domain/payment"
	"github.com/cassiomorais/pspadapter/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(key string, fields map[string]string) payment.UpdateAction {
	return payment.AddInterfaceInteraction{TypeKey: key, Fields: fields}
}

func setup(t *testing.T, actions ...payment.UpdateAction) (*ledger.Accessor, *testutil.MockTypeRepository, *payment.Payment) {
	t.Helper()
	types := testutil.NewMockTypeRepository()
	repo := testutil.NewMockPaymentRepository(types)
	p := testutil.SeedPayment(t, repo, testutil.NewTestPayment(1000, "EUR"), actions...)
	return ledger.NewAccessor(ledger.NewTypeResolver(types)), types, p
}

func TestAccessor_RecordsAndLast(t *testing.T) {
	ctx := context.Background()
	accessor, _, p := setup(t,
		testutil.TokenReceived("tok_a"),
		record(interaction.TypeCustomerCreateRequest, map[string]string{interaction.FieldIdempotencyKey: "k1"}),
		testutil.TokenReceived("tok_b"),
	)

	recs := accessor.Records(ctx, p, interaction.TypeTokenReceived)
	require.Len(t, recs, 2)
	assert.Equal(t, "tok_a", recs[0].Field(interaction.FieldToken))
	assert.Equal(t, "tok_b", recs[1].Field(interaction.FieldToken))

	last, ok := accessor.Last(ctx, p, interaction.TypeTokenReceived)
	require.True(t, ok)
	assert.Equal(t, "tok_b", last.Field(interaction.FieldToken))

	token, ok := accessor.Token(ctx, p)
	assert.True(t, ok)
	assert.Equal(t, "tok_b", token)

	_, ok = accessor.Last(ctx, p, interaction.TypeCharged)
	assert.False(t, ok)
}

func TestAccessor_LastWithField(t *testing.T) {
	ctx := context.Background()
	accessor, _, p := setup(t,
		record(interaction.TypeDisputeUpdate, map[string]string{interaction.FieldEventID: "evt_1", interaction.FieldDispute: "first"}),
		record(interaction.TypeDisputeUpdate, map[string]string{interaction.FieldEventID: "evt_2"}),
		record(interaction.TypeDisputeUpdate, map[string]string{interaction.FieldEventID: "evt_1", interaction.FieldDispute: "second"}),
	)

	rec, ok := accessor.LastWithField(ctx, p, interaction.TypeDisputeUpdate, interaction.FieldEventID, "evt_1")
	require.True(t, ok)
	assert.Equal(t, "second", rec.Field(interaction.FieldDispute))

	_, ok = accessor.LastWithField(ctx, p, interaction.TypeDisputeUpdate, interaction.FieldEventID, "evt_3")
	assert.False(t, ok)
}

func TestAccessor_CorrelatedFailure_PermanentWins(t *testing.T) {
	ctx := context.Background()
	request := map[string]string{interaction.FieldIdempotencyKey: "k1", interaction.FieldParams: "{}"}
	accessor, _, p := setup(t,
		record(interaction.TypeCustomerCreateRequest, request),
		record(interaction.TypeTemporaryException, map[string]string{interaction.FieldIdempotencyKey: "k1"}),
		record(interaction.TypeException, map[string]string{interaction.FieldIdempotencyKey: "k1"}),
		record(interaction.TypeTemporaryException, map[string]string{interaction.FieldIdempotencyKey: "k1"}),
	)

	req, ok := accessor.Last(ctx, p, interaction.TypeCustomerCreateRequest)
	require.True(t, ok)

	failure, ok := accessor.CorrelatedFailure(ctx, p, req)
	require.True(t, ok)
	assert.True(t, failure.Permanent)
}

func TestAccessor_CorrelatedFailure_IgnoresOtherKeys(t *testing.T) {
	ctx := context.Background()
	accessor, _, p := setup(t,
		record(interaction.TypeCustomerCreateRequest, map[string]string{interaction.FieldIdempotencyKey: "k2"}),
		record(interaction.TypeException, map[string]string{interaction.FieldIdempotencyKey: "k1"}),
		record(interaction.TypeTemporaryException, map[string]string{interaction.FieldIdempotencyKey: "k2"}),
	)

	req, ok := accessor.Last(ctx, p, interaction.TypeCustomerCreateRequest)
	require.True(t, ok)

	failure, ok := accessor.CorrelatedFailure(ctx, p, req)
	require.True(t, ok)
	assert.False(t, failure.Permanent)
	assert.Equal(t, "k2", failure.Record.Field(interaction.FieldIdempotencyKey))
}

func TestAccessor_UnresolvedTypeReadsAsEmpty(t *testing.T) {
	ctx := context.Background()
	types := testutil.NewMockTypeRepository()
	repo := testutil.NewMockPaymentRepository(types)
	p := testutil.SeedPayment(t, repo, testutil.NewTestPayment(1000, "EUR"), testutil.TokenReceived("tok"))
	types.Remove(interaction.TypeTokenReceived)

	var unresolved []string
	accessor := ledger.NewAccessor(ledger.NewTypeResolver(types), ledger.WithUnresolvedHook(func(key string) {
		unresolved = append(unresolved, key)
	}))

	assert.Empty(t, accessor.Records(ctx, p, interaction.TypeTokenReceived))
	_, ok := accessor.Token(ctx, p)
	assert.False(t, ok)
	assert.Equal(t, []string{interaction.TypeTokenReceived, interaction.TypeTokenReceived}, unresolved)
}

func TestTypeResolver_CachesHitsOnly(t *testing.T) {
	ctx := context.Background()
	types := testutil.NewMockTypeRepository()
	resolver := ledger.NewTypeResolver(types)

	for range 3 {
		id, err := resolver.ID(ctx, interaction.TypeCharged)
		require.NoError(t, err)
		assert.Equal(t, testutil.TypeID(interaction.TypeCharged), id)
	}
	assert.Equal(t, 1, types.Lookups())

	_, err := resolver.ID(ctx, "MISSING")
	assert.Error(t, err)
	_, err = resolver.ID(ctx, "MISSING")
	assert.Error(t, err)
	assert.Equal(t, 3, types.Lookups())
}

func TestTypeResolver_ConcurrentLookups(t *testing.T) {
	ctx := context.Background()
	resolver := ledger.NewTypeResolver(testutil.NewMockTypeRepository())

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := resolver.ID(ctx, interaction.TypeDisputeUpdate)
			assert.NoError(t, err)
			assert.Equal(t, testutil.TypeID(interaction.TypeDisputeUpdate), id)
		}()
	}
	wg.Wait()
}

func TestProvision_IsIdempotentAndPrimes(t *testing.T) {
	ctx := context.Background()
	types := testutil.NewEmptyTypeRepository()
	resolver := ledger.NewTypeResolver(types)

	require.NoError(t, ledger.Provision(ctx, types, resolver, testutil.NopLogger()))
	require.NoError(t, ledger.Provision(ctx, types, resolver, testutil.NopLogger()))

	for _, def := range interaction.Definitions() {
		id, err := resolver.ID(ctx, def.Key)
		require.NoError(t, err)
		assert.Equal(t, testutil.TypeID(def.Key), id)
	}
	assert.Equal(t, 0, types.Lookups())
}
