package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/aretw0/scenesync/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		name    string
		typ     domain.FieldType
		in      string
		want    any
		wantErr error
	}{
		{"string", domain.FieldString, "hello, world", "hello, world", nil},
		{"empty string", domain.FieldString, "", "", nil},
		{"int", domain.FieldInt, "-12", int64(-12), nil},
		{"int rejects float", domain.FieldInt, "1.5", nil, domain.ErrParseError},
		{"float", domain.FieldFloat, "0.125", 0.125, nil},
		{"float exponent", domain.FieldFloat, "1e-07", 1e-07, nil},
		{"float garbage", domain.FieldFloat, "abc", nil, domain.ErrParseError},
		{"bool", domain.FieldBool, "true", true, nil},
		{"bool garbage", domain.FieldBool, "yes", nil, domain.ErrParseError},
		{"vec3", domain.FieldVec3, "1,-2.5,3", domain.Vec3{X: 1, Y: -2.5, Z: 3}, nil},
		{"vec3 short", domain.FieldVec3, "1,2", nil, domain.ErrParseError},
		{"vec3 spaces", domain.FieldVec3, "1, 2, 3", nil, domain.ErrParseError},
		{"col4", domain.FieldCol4, "1,0.5,0,1", domain.Col4{R: 1, G: 0.5, B: 0, A: 1}, nil},
		{"col4 long", domain.FieldCol4, "1,0,0,1,1", nil, domain.ErrParseError},
		{"unknown type", domain.FieldType(99), "x", nil, domain.ErrTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := domain.ParseValue(tt.typ, tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatValue_ShortestFloat(t *testing.T) {
	s, err := domain.FormatValue(domain.FieldFloat, 0.1)
	require.NoError(t, err)
	assert.Equal(t, "0.1", s)

	s, err = domain.FormatValue(domain.FieldVec3, domain.Vec3{X: 1, Y: 0.30000000000000004, Z: -0})
	require.NoError(t, err)
	assert.Equal(t, "1,0.30000000000000004,0", s)

	back, err := domain.ParseValue(domain.FieldVec3, s)
	require.NoError(t, err)
	assert.Equal(t, domain.Vec3{X: 1, Y: 0.30000000000000004, Z: 0}, back)
}

func TestFormatValue_TypeMismatch(t *testing.T) {
	_, err := domain.FormatValue(domain.FieldBool, "true")
	assert.ErrorIs(t, err, domain.ErrTypeMismatch)
}

func TestCoerce(t *testing.T) {
	v, err := domain.Coerce(domain.FieldInt, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)

	v, err = domain.Coerce(domain.FieldCol4, "0,0,0,1")
	require.NoError(t, err)
	assert.Equal(t, domain.Col4{A: 1}, v)

	_, err = domain.Coerce(domain.FieldInt, 1.5)
	assert.ErrorIs(t, err, domain.ErrTypeMismatch)

	_, err = domain.Coerce(domain.FieldFloat, "x")
	assert.ErrorIs(t, err, domain.ErrParseError)
}

func TestFieldType_Text(t *testing.T) {
	for _, ft := range []domain.FieldType{
		domain.FieldString, domain.FieldInt, domain.FieldFloat,
		domain.FieldBool, domain.FieldVec3, domain.FieldCol4,
	} {
		parsed, err := domain.ParseFieldType(ft.String())
		require.NoError(t, err)
		assert.Equal(t, ft, parsed)
	}

	raw, err := json.Marshal(domain.FieldSnapshot{Type: domain.FieldVec3, Value: "0,0,0"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"vec3","value":"0,0,0"}`, string(raw))

	var fs domain.FieldSnapshot
	assert.ErrorIs(t, json.Unmarshal([]byte(`{"type":"quat","value":"0"}`), &fs), domain.ErrTypeMismatch)
}

func TestParseAny(t *testing.T) {
	tests := []struct {
		name    string
		typ     domain.FieldType
		in      any
		want    any
		wantErr error
	}{
		{"wire string", domain.FieldVec3, "1,2,3", domain.Vec3{X: 1, Y: 2, Z: 3}, nil},
		{"list", domain.FieldCol4, []any{1, 0.5, 0, 1}, domain.Col4{R: 1, G: 0.5, A: 1}, nil},
		{"native bool", domain.FieldBool, false, false, nil},
		{"int as float", domain.FieldFloat, 2, 2.0, nil},
		{"float as int", domain.FieldInt, 2.5, nil, domain.ErrParseError},
		{"number as string", domain.FieldString, 42, "42", nil},
		{"missing", domain.FieldInt, nil, nil, domain.ErrParseError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := domain.ParseAny(tt.typ, tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
