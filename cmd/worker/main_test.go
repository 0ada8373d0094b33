package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/workforce-hq/workforce/internal/app"
	_ "github.com/workforce-hq/workforce/internal/testing/guard"
)

func TestWorkerReturnsInTestMode(t *testing.T) {
	app.RefreshTestMode()
	require.True(t, app.InTestMode())
	main()
}
