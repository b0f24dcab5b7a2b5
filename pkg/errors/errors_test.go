package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeBusinessRule, status: http.StatusUnprocessableEntity, publicMsg: "business rule violated", detailsOK: true},
		{code: CodeGateway, status: http.StatusPaymentRequired, publicMsg: "payment could not be processed", detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
		{code: CodeRateLimit, status: http.StatusTooManyRequests, publicMsg: "too many requests", retryable: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	base.WithDetails(map[string]any{"field": "foo"})
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeDependency, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeDependency {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestHasCodeAndMessageOf(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeBusinessRule, "limit reached"))
	if !HasCode(err, CodeBusinessRule) {
		t.Fatalf("expected business rule code in chain")
	}
	if HasCode(err, CodeValidation) {
		t.Fatalf("unexpected validation code")
	}
	if got := MessageOf(err, "fallback"); got != "limit reached" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := MessageOf(stdErrors.New("plain"), "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestDumpCollectsChain(t *testing.T) {
	err := Wrap(CodeDependency, stdErrors.New("dial tcp: refused"), "fetch catalog")
	dump := Dump(err)
	if dump.Code != CodeDependency {
		t.Fatalf("unexpected dump code %s", dump.Code)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected two chain entries, got %d", len(dump.Chain))
	}
}

func TestDumpUpstreamFields(t *testing.T) {
	err := Wrap(CodeDependency, fmt.Errorf("freight quote: %w", context.DeadlineExceeded), "execute freight request").
		WithDetails(map[string]any{"status": http.StatusGatewayTimeout})
	dump := Dump(err)
	if !dump.Retryable || !dump.Timeout || dump.UpstreamStatus != http.StatusGatewayTimeout {
		t.Fatalf("unexpected dump %+v", dump)
	}
	fields := dump.Fields()
	if fields["upstream_status"] != http.StatusGatewayTimeout || fields["upstream_timeout"] != true {
		t.Fatalf("unexpected fields %+v", fields)
	}
	if _, ok := fields["pg_code"]; ok {
		t.Fatal("db fields must be absent")
	}
}

func TestDumpSnapshotWriteFailure(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", TableName: "checkout_snapshots", ConstraintName: "checkout_snapshots_pkey"}
	dump := Dump(Wrap(CodeInternal, pgErr, "record checkout"))
	if dump.DB == nil || dump.DB.Code != "23505" || dump.DB.Table != "checkout_snapshots" {
		t.Fatalf("unexpected db dump %+v", dump.DB)
	}
	if dump.Fields()["pg_constraint"] != "checkout_snapshots_pkey" {
		t.Fatalf("unexpected fields %+v", dump.Fields())
	}
}
