package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	want := NewDate(2019, 3, 25)
	for _, in := range []string{
		"03/25/2019",
		"2019-03-25",
		"2019-03-25T00:00:00.000",
		"03/25/2019 11:30:00 AM",
		"3/25/2019",
	} {
		got, err := ParseDate(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got.Time), "%s parsed as %s", in, got)
	}

	_, err := ParseDate("")
	assert.True(t, errors.Is(err, ErrMissingField))

	_, err = ParseDate("yesterday")
	assert.True(t, errors.Is(err, ErrUnparseableDate))
}

func TestViolationValidate(t *testing.T) {
	ok := Violation{Date: NewDate(2016, 1, 2), Account: "A", Rule: "x", Fine: NewFine(100)}
	require.NoError(t, ok.Validate())

	noRule := ok
	noRule.Rule = ""
	require.NoError(t, noRule.Validate(), "rule description is optional")

	cases := map[string]func(v *Violation){
		FieldDate:    func(v *Violation) { v.Date = Date{} },
		FieldAccount: func(v *Violation) { v.Account = "  " },
		FieldFine:    func(v *Violation) { v.Fine = NullMoney{} },
	}
	for field, mutate := range cases {
		v := ok
		mutate(&v)
		err := v.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMissingField))
		assert.Equal(t, field, MissingField(err))
	}
}

func TestDateString(t *testing.T) {
	assert.Equal(t, "", Date{}.String())
	assert.Equal(t, "2015-07-04", NewDate(2015, 7, 4).String())
}
