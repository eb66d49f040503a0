package dbproc

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestBuildCall(t *testing.T) {
	query, named := buildCall("request_step_task", []Arg{
		{Name: "processorName", Value: "Proto-7_CTM"},
		{Name: "managerVersion", Value: "1.4.0"},
		{Name: "jobCountToPreview", Value: 10},
	})

	want := "SELECT * FROM request_step_task(_processorname => @processorname, _managerversion => @managerversion, _jobcounttopreview => @jobcounttopreview)"
	if query != want {
		t.Errorf("query:\n got %s\nwant %s", query, want)
	}
	if named["processorname"] != "Proto-7_CTM" {
		t.Errorf("named arg processorname = %v", named["processorname"])
	}
	if named["jobcounttopreview"] != 10 {
		t.Errorf("named arg jobcounttopreview = %v", named["jobcounttopreview"])
	}
}

func TestBuildCall_NoArgs(t *testing.T) {
	query, named := buildCall("report_manager_idle", nil)
	if query != "SELECT * FROM report_manager_idle()" {
		t.Errorf("query = %s", query)
	}
	if len(named) != 0 {
		t.Errorf("named args = %v, want empty", named)
	}
}

func TestRowGet_CaseInsensitive(t *testing.T) {
	row := Row{"return_code": "0", "parameter_name": "Job"}

	if row.Get("Return_Code") != "0" {
		t.Error("Get must fall back to the lowercase column name")
	}
	if row.Get("parameter_name") != "Job" {
		t.Error("Get must find the exact column name")
	}
	if row.Get("no_such_column") != "" {
		t.Error("Get for a missing column must return empty")
	}
}

func TestStringify(t *testing.T) {
	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"text", "text"},
		{[]byte("bytes"), "bytes"},
		{int32(42), "42"},
		{int64(1001), "1001"},
		{true, "true"},
		{ts, "2026-08-30T12:00:00Z"},
	}
	for _, tc := range cases {
		if got := stringify(tc.in); got != tc.want {
			t.Errorf("stringify(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIsPermissionError(t *testing.T) {
	// Коды классов 42501/28xxx
	if !isPermissionError(&pgconn.PgError{Code: "42501"}) {
		t.Error("42501 is a permission error")
	}
	if !isPermissionError(&pgconn.PgError{Code: "28P01"}) {
		t.Error("28P01 is a permission error")
	}
	// Распознавание по тексту
	if !isPermissionError(errors.New("pq: permission denied for function request_step_task")) {
		t.Error("'permission denied' text is a permission error")
	}
	if isPermissionError(errors.New("connection refused")) {
		t.Error("connection refused is not a permission error")
	}
}

func TestIsDeadlock(t *testing.T) {
	if !isDeadlock(&pgconn.PgError{Code: "40P01"}) {
		t.Error("40P01 is a deadlock")
	}
	if !isDeadlock(&pgconn.PgError{Code: "40001"}) {
		t.Error("40001 is a serialization failure, treated as deadlock")
	}
	if !isDeadlock(errors.New("ERROR: deadlock detected")) {
		t.Error("'deadlock detected' text is a deadlock")
	}
	if isDeadlock(&pgconn.PgError{Code: "42501"}) {
		t.Error("permission code is not a deadlock")
	}
}
