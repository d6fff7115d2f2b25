package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"jobhound/internal/crawler"
)

func testRecord() crawler.Record {
	return crawler.Record{
		Title:           "Go Engineer",
		Company:         "Acme Corp",
		Location:        "Berlin, DE",
		Compensation:    "70000-90000 EUR per year",
		PostedAt:        "2026-07-14",
		Category:        "FULL_TIME",
		DescriptionText: "Build services.",
		DescriptionHTML: "<p>Build services.</p>",
		SourceURL:       "https://example.com/jdp/1",
		PageNumber:      2,
		FetchedAt:       time.Unix(1700000000, 0).UTC(),
	}
}

func TestSaveUpsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sink, err := NewWithPool(mock, "job_records")
	require.NoError(t, err)

	rec := testRecord()
	mock.ExpectExec("INSERT INTO job_records").
		WithArgs(
			rec.SourceURL,
			rec.Title,
			rec.Company,
			rec.Location,
			rec.Compensation,
			rec.PostedAt,
			rec.Category,
			rec.DescriptionText,
			rec.DescriptionHTML,
			rec.PageNumber,
			rec.FetchedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, sink.Save(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRequiresSourceURL(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sink, err := NewWithPool(mock, "")
	require.NoError(t, err)

	rec := testRecord()
	rec.SourceURL = ""
	require.Error(t, sink.Save(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSavePropagatesExecError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sink, err := NewWithPool(mock, "job_records")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO job_records").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnError(errors.New("connection reset"))

	err = sink.Save(context.Background(), testRecord())
	require.Error(t, err)
	require.Contains(t, err.Error(), "connection reset")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sink, err := NewWithPool(mock, "job_records")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS job_records").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, sink.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewWithPoolValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewWithPool(nil, "job_records"); err == nil {
		t.Fatal("expected error for nil pool")
	}

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	if _, err := NewWithPool(mock, "drop table; --"); err == nil {
		t.Fatal("expected error for invalid table name")
	}
}
