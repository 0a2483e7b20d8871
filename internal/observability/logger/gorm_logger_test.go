package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperationFromSQL(t *testing.T) {
	cases := []struct {
		sql  string
		want string
	}{
		{sql: "SELECT id FROM invoices", want: "SELECT"},
		{sql: "  insert into invoices (id) values (1)", want: "INSERT"},
		{sql: "UPDATE recurring_invoice_templates SET is_active = false", want: "UPDATE"},
		{sql: "(DELETE);", want: "DELETE"},
		{sql: "VACUUM", want: "UNKNOWN"},
		{sql: "", want: "UNKNOWN"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, operationFromSQL(tc.sql), tc.sql)
	}
}
