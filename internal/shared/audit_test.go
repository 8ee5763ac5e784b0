package shared

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAuditLogValidate(t *testing.T) {
	require.Error(t, AuditLog{Entity: "ledger", EntityID: "s1"}.validate())
	require.Error(t, AuditLog{Action: "returns.drain", EntityID: "s1"}.validate())
	require.Error(t, AuditLog{Action: "returns.drain", Entity: "ledger"}.validate())
	require.NoError(t, AuditLog{Action: "returns.drain", Entity: "ledger", EntityID: "s1"}.validate())
}

func TestAuditLoggerWithoutPool(t *testing.T) {
	var missing *AuditLogger
	require.Error(t, missing.Record(context.Background(), AuditLog{Action: "a", Entity: "e", EntityID: "1"}))

	n, err := missing.Prune(context.Background(), time.Hour)
	require.NoError(t, err)
	require.Zero(t, n)
}
