package pgpool

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPidColumn(t *testing.T) {
	cases := []struct {
		version int
		want    string
	}{
		{90100, "procpid"},
		{90199, "procpid"},
		{90200, "pid"},
		{150002, "pid"},
	}
	for _, c := range cases {
		if got := pidColumn(c.version); got != c.want {
			t.Fatalf("pidColumn(%d) = %s, want %s", c.version, got, c.want)
		}
	}
}

func TestTerminateSessionsModernServer(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("pg_terminate_backend(pid)")).
		WithArgs("prod").
		WillReturnResult(sqlmock.NewResult(0, 3))

	if err := terminateSessions(context.Background(), db, "prod", 150002); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTerminateSessionsLegacyServer(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("pg_terminate_backend(procpid)")).
		WithArgs("prod").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := terminateSessions(context.Background(), db, "prod", 90100); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
