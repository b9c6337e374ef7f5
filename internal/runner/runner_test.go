package runner

import (
	"bytes"
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vgsales-dashboard/internal/config"
	"vgsales-dashboard/internal/errors"
	"vgsales-dashboard/internal/pipeline"
)

const rawCSV = "Rank,Name,Platform,Year,Genre,Publisher,NA_Sales,EU_Sales,JP_Sales,Other_Sales,Global_Sales\n" +
	"1,Wii Sports,Wii,2006,Sports,Nintendo,41.49,29.02,3.77,8.46,82.74\n" +
	"2,Super Mario Bros.,NES,1985,Platform,Nintendo,29.08,3.58,6.81,0.77,40.24\n" +
	"3,zelda ,nes,1986.4,Action,nintendo,1,1,0,0,2\n" +
	"4,Zelda,NES,1986,Action,Nintendo,1,1,0,0,1.5\n" +
	"5,Madden,PS2,N/A,sports,,1,0,0,0,1\n" +
	"6,No Genre,PS2,2001,,EA,1,0,0,0,1\n"

func setup(t *testing.T, raw string) (*Runner, config.PathsConfig, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	paths := config.PathsConfig{
		RawFile:   filepath.Join(dir, "data", "vgsales.csv"),
		CleanFile: filepath.Join(dir, "data", "vgsales_clean.csv"),
		OutputDir: filepath.Join(dir, "outputs"),
	}
	if raw != "" {
		require.NoError(t, os.MkdirAll(filepath.Dir(paths.RawFile), 0755))
		require.NoError(t, os.WriteFile(paths.RawFile, []byte(raw), 0644))
	}

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	return New(paths, logger), paths, &logs
}

func TestRun_AllStages(t *testing.T) {
	r, paths, logs := setup(t, rawCSV)

	m, err := r.Run(context.Background(), AllStages...)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, m.Status)
	assert.NotEmpty(t, m.RunID)
	require.Len(t, m.Stages, 3)
	for _, s := range m.Stages {
		assert.Equal(t, StatusCompleted, s.Status, s.Stage)
	}

	clean := m.Stages[0]
	assert.Equal(t, 6, clean.Counters["rows_in"])
	assert.Equal(t, 1, clean.Counters["rows_invalid"])
	assert.Equal(t, 1, clean.Counters["duplicates_removed"])
	assert.Equal(t, 4, clean.Counters["rows_out"])
	assert.Equal(t, 1, clean.Counters["missing_year"])

	_, err = os.Stat(paths.CleanFile)
	assert.NoError(t, err)
	for _, name := range pipeline.AggregateFiles {
		_, err := os.Stat(filepath.Join(paths.OutputDir, name))
		assert.NoError(t, err, name)
	}
	_, err = os.Stat(filepath.Join(paths.OutputDir, "plot_platform_decade_heatmap.png"))
	assert.NoError(t, err)

	stored, err := ReadManifest(paths.OutputDir)
	require.NoError(t, err)
	assert.Equal(t, m.RunID, stored.RunID)
	assert.Len(t, stored.Stages, 3)

	assert.Contains(t, logs.String(), "duplicates_removed=1")
}

func TestRun_MissingRawInput(t *testing.T) {
	r, paths, _ := setup(t, "")

	m, err := r.Run(context.Background(), AllStages...)
	require.Error(t, err)

	var missing *errors.MissingInputError
	require.True(t, stderrors.As(err, &missing))
	assert.Equal(t, paths.RawFile, missing.Path)

	assert.Equal(t, StatusFailed, m.Status)
	require.Len(t, m.Stages, 1, "later stages must not run")
	assert.Equal(t, StatusFailed, m.Stages[0].Status)

	_, err = os.Stat(paths.CleanFile)
	assert.True(t, os.IsNotExist(err), "no cleaned file may be written")

	stored, err := ReadManifest(paths.OutputDir)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
}

func TestRun_AggregateWithoutClean(t *testing.T) {
	r, _, _ := setup(t, rawCSV)

	_, err := r.Run(context.Background(), StageAggregate)

	var missing *errors.MissingInputError
	require.True(t, stderrors.As(err, &missing))
	assert.Contains(t, err.Error(), "vgsales clean")
}

func TestClean_SchemaErrorNamesFile(t *testing.T) {
	r, paths, _ := setup(t, "Rank,Name,Platform,Year,Publisher,Global_Sales\n1,A,PS2,2001,EA,1\n")

	_, err := r.Clean(context.Background())

	var schemaErr *errors.SchemaError
	require.True(t, stderrors.As(err, &schemaErr))
	assert.Equal(t, "Genre", schemaErr.Column)
	assert.Equal(t, paths.RawFile, schemaErr.Path)

	_, statErr := os.Stat(paths.CleanFile)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRun_UnknownStage(t *testing.T) {
	r, _, _ := setup(t, rawCSV)

	m, err := r.Run(context.Background(), "publish")
	assert.Error(t, err)
	assert.Equal(t, StatusFailed, m.Status)
}

func TestRun_StagesSeparately(t *testing.T) {
	r, paths, _ := setup(t, rawCSV)
	ctx := context.Background()

	for _, stage := range AllStages {
		_, err := r.Run(ctx, stage)
		require.NoError(t, err, stage)
	}

	stored, err := ReadManifest(paths.OutputDir)
	require.NoError(t, err)
	require.Len(t, stored.Stages, 1)
	assert.Equal(t, StageRender, stored.Stages[0].Stage)
	assert.Len(t, stored.Stages[0].Outputs, 8)
}
