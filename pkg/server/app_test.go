package server

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"FinScan/internal/domain/models"
	"FinScan/pkg/config"
	xhttp "FinScan/pkg/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	res *models.Result
	err error
}

func (s stubRunner) Run(context.Context, string) (*models.Result, error) { return s.res, s.err }

func TestRunOncePrintsMetricsAndCloses(t *testing.T) {
	var closed []string
	closer := func(name string) Closer {
		return Closer{Name: name, Close: func() error {
			closed = append(closed, name)
			return nil
		}}
	}
	res := &models.Result{MetricsText: "Total rows: 3\n"}
	app := New(&config.Config{}, nil, stubRunner{res: res}, nil, closer("kafka"), closer("clickhouse"))

	var out bytes.Buffer
	require.NoError(t, app.RunOnce(context.Background(), "in.csv", &out))
	assert.Equal(t, "Total rows: 3\n", out.String())
	assert.Equal(t, []string{"clickhouse", "kafka"}, closed)
}

func TestRunOnceReturnsPipelineError(t *testing.T) {
	app := New(&config.Config{}, nil, stubRunner{err: models.ErrLoad}, nil)
	err := app.RunOnce(context.Background(), "in.csv", &bytes.Buffer{})
	assert.True(t, errors.Is(err, models.ErrLoad))
}

func TestRunStopsOnContextCancel(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)

	srv := xhttp.NewServer(nil, xhttp.WithHost("127.0.0.1"), xhttp.WithPort(0))
	app := New(cfg, nil, stubRunner{}, srv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, app.Run(ctx))
}
