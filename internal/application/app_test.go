package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/routeimport/internal/config"
	"github.com/JonMunkholm/routeimport/internal/core"
	"github.com/JonMunkholm/routeimport/internal/memstore"
	"github.com/JonMunkholm/routeimport/internal/storage"
)

func TestOpen_MemoryDrivers(t *testing.T) {
	cfg := &config.Config{
		Database:    config.DatabaseConfig{Driver: config.DriverMemory},
		ObjectStore: config.ObjectStoreConfig{Driver: config.DriverMemory, KeyPrefix: "imports"},
		Import:      config.ImportConfig{MaxConcurrent: 1},
	}

	app, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.Pool)
	assert.IsType(t, &memstore.Store{}, app.Store)
	assert.IsType(t, &storage.Memory{}, app.Objects)

	content := []byte("name,coordinates_x,coordinates_y,from_x,from_y,from_name,to_x,to_y,to_name,distance,rating\n" +
		"Alpha,1,2,0,0,Start,5,5,End,10,3\n")
	result, err := app.Service.ImportBatch(context.Background(), "ops", "routes.csv", content)
	require.NoError(t, err)
	assert.Equal(t, core.StatusSuccess, result.Status)
}

func TestOpenPool_BadURL(t *testing.T) {
	_, err := OpenPool(context.Background(), config.DatabaseConfig{URL: "::not a url::", MaxConns: 1})
	assert.Error(t, err)
}
