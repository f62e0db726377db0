package dberr

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorsUnwrap(t *testing.T) {
	root := errors.New("boom")

	tests := []struct {
		name string
		err  error
	}{
		{"connection", &ConnectionError{Kind: ConnRefused, Err: root}},
		{"query", &QueryError{Kind: QuerySyntax, Err: root}},
		{"transaction", &TransactionError{Kind: TxCommit, Msg: "commit failed", Err: root}},
		{"schema", &SchemaError{Kind: SchemaDDLSyntax, Table: "t", Err: root}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, root)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestErrorsSurviveWrapping(t *testing.T) {
	inner := &QueryError{Kind: QueryUniqueViolation, Err: errors.New("duplicate")}
	wrapped := fmt.Errorf("saving user: %w", inner)

	var qe *QueryError
	assert.ErrorAs(t, wrapped, &qe)
	assert.Equal(t, QueryUniqueViolation, qe.Kind)
}

func TestIsConnectionLost(t *testing.T) {
	lost := fmt.Errorf("executing: %w", &ConnectionError{Kind: ConnLost, Err: errors.New("eof")})
	assert.True(t, IsConnectionLost(lost))

	refused := &ConnectionError{Kind: ConnRefused, Err: errors.New("nope")}
	assert.False(t, IsConnectionLost(refused))
	assert.False(t, IsConnectionLost(errors.New("plain")))
	assert.False(t, IsConnectionLost(nil))
}

func TestQueryKindOf(t *testing.T) {
	assert.Equal(t, QueryFKViolation, QueryKindOf(&QueryError{Kind: QueryFKViolation}))
	assert.Equal(t, QueryOther, QueryKindOf(errors.New("plain")))

	wrapped := fmt.Errorf("inserting: %w", &QueryError{Kind: QueryNotNullViolation})
	assert.Equal(t, QueryNotNullViolation, QueryKindOf(wrapped))
}

func TestPoolExhaustedMessage(t *testing.T) {
	err := &PoolExhaustedError{MaxSize: 4, Waited: 250 * time.Millisecond}
	assert.Contains(t, err.Error(), "pool exhausted")
	assert.Contains(t, err.Error(), "4")
}
