package schema_test

import (
	"testing"

	"db-migrate/internal/schema"

	"github.com/stretchr/testify/assert"
)

func TestParseEnumLabels(t *testing.T) {
	assert.Equal(t, []string{"DRAFT", "PUBLISHED"}, schema.ParseEnumLabels("enum('DRAFT','PUBLISHED')"))
	assert.Equal(t, []string{"it's", "a,b"}, schema.ParseEnumLabels("enum('it''s','a,b')"))
	assert.Equal(t, []string{""}, schema.ParseEnumLabels("enum('')"))
	assert.Nil(t, schema.ParseEnumLabels("varchar"))
}

func TestColumnFamily(t *testing.T) {
	cases := []struct {
		typ  string
		want schema.Family
	}{
		{"text", schema.FamilyText},
		{"character varying", schema.FamilyText},
		{"varchar2", schema.FamilyText},
		{"longtext", schema.FamilyText},
		{"integer", schema.FamilyInteger},
		{"int4", schema.FamilyInteger},
		{"bigint unsigned", schema.FamilyInteger},
		{"tinyint(1)", schema.FamilyInteger},
		{"numeric(10,2)", schema.FamilyNumeric},
		{"double precision", schema.FamilyNumeric},
		{"boolean", schema.FamilyBool},
		{"bit", schema.FamilyBool},
		{"date", schema.FamilyTemporal},
		{"time without time zone", schema.FamilyTemporal},
		{"uuid", schema.FamilyUUID},
		{"uniqueidentifier", schema.FamilyUUID},
		{"jsonb", schema.FamilyJSON},
		{"bytea", schema.FamilyBinary},
		{"longblob", schema.FamilyBinary},
		{"point", schema.FamilyOther},
		{"interval", schema.FamilyOther},
	}
	for _, tc := range cases {
		c := &schema.Column{DataType: tc.typ}
		assert.Equal(t, tc.want, c.Family(), tc.typ)
	}
}

func TestLooksTemporal(t *testing.T) {
	for _, name := range []string{"createdAt", "updated_at", "reg_dt", "publishDate", "createdat", "updateat", "deletedOn", "upd_dttm", "LAST_LOGIN_TIME"} {
		assert.True(t, schema.LooksTemporal(name), name)
	}
	for _, name := range []string{"format", "status", "category", "seat", "heartbeat", "title"} {
		assert.False(t, schema.LooksTemporal(name), name)
	}
}

func TestSplitName(t *testing.T) {
	assert.Equal(t, []string{"created", "at"}, schema.SplitName("createdAt"))
	assert.Equal(t, []string{"http", "status"}, schema.SplitName("HTTPStatus"))
	assert.Equal(t, []string{"registered", "date"}, schema.SplitName("REG_DT"))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "scalar", schema.KindScalar.String())
	assert.Equal(t, "array", schema.KindArray.String())
	assert.Equal(t, "enum", schema.KindEnum.String())
	assert.Equal(t, "timestamp", schema.KindTimestamp.String())
}
