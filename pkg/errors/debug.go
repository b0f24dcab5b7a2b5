package errors

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrorDump is the log view of a failed storefront request.
type ErrorDump struct {
	Message   string   `json:"message"`
	Code      Code     `json:"code,omitempty"`
	Retryable bool     `json:"retryable,omitempty"`
	Chain     []string `json:"chain,omitempty"`

	// UpstreamStatus is the HTTP status a catalog, freight or gateway call
	// answered with, when the typed error recorded one.
	UpstreamStatus int  `json:"upstream_status,omitempty"`
	Timeout        bool `json:"timeout,omitempty"`

	// DB is set when a checkout snapshot write failed in Postgres.
	DB *DBDump `json:"db,omitempty"`
}

type DBDump struct {
	Code       string `json:"code"`
	Table      string `json:"table,omitempty"`
	Constraint string `json:"constraint,omitempty"`
	Message    string `json:"message,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{Message: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
		d.Retryable = MetadataFor(te.Code()).Retryable
		d.UpstreamStatus = upstreamStatus(te.Details())
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	d.Timeout = errors.Is(err, context.DeadlineExceeded)
	d.DB = dbDump(err)
	return d
}

// Fields flattens the dump into log fields.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{
		"error":       d.Message,
		"error_code":  d.Code,
		"error_chain": d.Chain,
	}
	if d.UpstreamStatus != 0 {
		fields["upstream_status"] = d.UpstreamStatus
	}
	if d.Timeout {
		fields["upstream_timeout"] = true
	}
	if d.DB != nil {
		fields["pg_code"] = d.DB.Code
		fields["pg_table"] = d.DB.Table
		fields["pg_constraint"] = d.DB.Constraint
		fields["pg_detail"] = d.DB.Detail
	}
	return fields
}

func upstreamStatus(details any) int {
	m, ok := details.(map[string]any)
	if !ok {
		return 0
	}
	status, _ := m["status"].(int)
	return status
}

func dbDump(err error) *DBDump {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return &DBDump{
			Code:       pgxErr.Code,
			Table:      pgxErr.TableName,
			Constraint: pgxErr.ConstraintName,
			Message:    pgxErr.Message,
			Detail:     pgxErr.Detail,
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &DBDump{
			Code:       string(pqErr.Code),
			Table:      pqErr.Table,
			Constraint: pqErr.Constraint,
			Message:    pqErr.Message,
			Detail:     pqErr.Detail,
		}
	}
	return nil
}
