package lifecycle_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/finport/go-oidc-gateway/internal/utils"
	"github.com/finport/go-oidc-gateway/lifecycle"
)

func TestClassify(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	idleTime := 30 * time.Second

	t.Run("nil expiry never expires", func(t *testing.T) {
		require.Equal(t, lifecycle.Fresh, lifecycle.Classify(nil, now, idleTime))
	})

	t.Run("far from expiry is fresh", func(t *testing.T) {
		exp := utils.Ptr(now.Add(10 * time.Minute).Unix())
		require.Equal(t, lifecycle.Fresh, lifecycle.Classify(exp, now, idleTime))
	})

	t.Run("within idle time is near expiry", func(t *testing.T) {
		exp := utils.Ptr(now.Add(10 * time.Second).Unix())
		require.Equal(t, lifecycle.NearExpiry, lifecycle.Classify(exp, now, idleTime))
	})

	t.Run("exactly at idle time boundary is fresh", func(t *testing.T) {
		exp := utils.Ptr(now.Add(idleTime).Unix())
		require.Equal(t, lifecycle.Fresh, lifecycle.Classify(exp, now, idleTime))
	})

	t.Run("expiry equal to now is expired", func(t *testing.T) {
		exp := utils.Ptr(now.Unix())
		require.Equal(t, lifecycle.Expired, lifecycle.Classify(exp, now, idleTime))
	})

	t.Run("past expiry is expired", func(t *testing.T) {
		exp := utils.Ptr(now.Add(-1 * time.Hour).Unix())
		require.Equal(t, lifecycle.Expired, lifecycle.Classify(exp, now, idleTime))
	})
}

func TestStateString(t *testing.T) {
	require.Equal(t, "fresh", lifecycle.Fresh.String())
	require.Equal(t, "near-expiry", lifecycle.NearExpiry.String())
	require.Equal(t, "expired", lifecycle.Expired.String())
}
