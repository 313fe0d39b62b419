package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate_Arithmetic(t *testing.T) {
	d := NewDate(2024, 2, 28)

	assert.Equal(t, NewDate(2024, 2, 29), d.AddDays(1))
	assert.Equal(t, NewDate(2024, 3, 1), d.AddDays(2))
	assert.Equal(t, 2, NewDate(2024, 3, 1).DaysSince(d))
	assert.Equal(t, -2, d.DaysSince(NewDate(2024, 3, 1)))
	assert.Equal(t, 366, NewDate(2025, 1, 1).DaysSince(NewDate(2024, 1, 1)))
	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.AddDays(1).After(d))
	assert.False(t, d.After(d))
}

func TestDate_DaysSinceAcrossDST(t *testing.T) {
	// 日期运算基于 UTC，夏令时切换不影响天数
	assert.Equal(t, 1, NewDate(2024, 3, 11).DaysSince(NewDate(2024, 3, 10)))
	assert.Equal(t, 1, NewDate(2024, 11, 4).DaysSince(NewDate(2024, 11, 3)))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-01-10")
	require.NoError(t, err)
	assert.Equal(t, Date{Year: 2024, Month: time.January, Day: 10}, d)
	assert.Equal(t, "2024-01-10", d.String())

	_, err = ParseDate("10/01/2024")
	assert.Error(t, err)
}

func TestDate_JSON(t *testing.T) {
	type wrapper struct {
		D Date `json:"d"`
	}

	b, err := json.Marshal(wrapper{D: NewDate(2024, 1, 10)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"2024-01-10"}`, string(b))

	b, err = json.Marshal(wrapper{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":null}`, string(b))

	var w wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"d":"2023-12-31"}`), &w))
	assert.Equal(t, NewDate(2023, 12, 31), w.D)

	require.NoError(t, json.Unmarshal([]byte(`{"d":null}`), &w))
	assert.True(t, w.D.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`{"d":"yesterday"}`), &w))
}

func TestDate_ValueScan(t *testing.T) {
	v, err := NewDate(2024, 1, 10).Value()
	require.NoError(t, err)
	assert.Equal(t, "2024-01-10", v)

	v, err = Date{}.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	var d Date
	require.NoError(t, d.Scan([]byte("2024-05-06")))
	assert.Equal(t, NewDate(2024, 5, 6), d)

	require.NoError(t, d.Scan("2024-05-07T00:00:00Z"))
	assert.Equal(t, NewDate(2024, 5, 7), d)

	require.NoError(t, d.Scan(time.Date(2024, 5, 8, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, NewDate(2024, 5, 8), d)

	require.NoError(t, d.Scan(nil))
	assert.True(t, d.IsZero())

	assert.Error(t, d.Scan(42))
}

func TestDateSet(t *testing.T) {
	var s DateSet
	s2 := s.With(NewDate(2024, 1, 12)).With(NewDate(2024, 1, 11)).With(NewDate(2024, 1, 12))

	assert.Empty(t, s)
	assert.Equal(t, DateSet{NewDate(2024, 1, 11), NewDate(2024, 1, 12)}, s2)
	assert.True(t, s2.Contains(NewDate(2024, 1, 11)))
	assert.False(t, s2.Contains(NewDate(2024, 1, 13)))

	c := s2.Clone()
	c[0] = NewDate(2000, 1, 1)
	assert.Equal(t, NewDate(2024, 1, 11), s2[0])
	assert.Nil(t, s.Clone())
}

func TestDateSet_ValueScan(t *testing.T) {
	s := DateSet{NewDate(2024, 1, 11), NewDate(2024, 1, 12)}
	v, err := s.Value()
	require.NoError(t, err)
	assert.Equal(t, `["2024-01-11","2024-01-12"]`, v)

	var got DateSet
	require.NoError(t, got.Scan([]byte(v.(string))))
	assert.Equal(t, s, got)

	v, err = DateSet(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, `[]`, v)

	require.NoError(t, got.Scan("[]"))
	assert.Nil(t, got)

	assert.Error(t, got.Scan(`["bad"]`))
}
