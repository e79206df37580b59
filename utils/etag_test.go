package utils

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQuoteAndNormalizeETag(t *testing.T) {
	assert.Equal(t, `"abc"`, QuoteETag("abc"))
	assert.Equal(t, `"abc"`, QuoteETag(`"abc"`))
	assert.Equal(t, `W/"abc"`, QuoteETag(`W/"abc"`))
	assert.Equal(t, "", QuoteETag(""))

	assert.Equal(t, "abc", NormalizeETag(` W/"abc" `))
	assert.Equal(t, "abc", NormalizeETag(`"abc"`))
}

func TestMatchesIfNoneMatch(t *testing.T) {
	tests := []struct {
		name   string
		header string
		etag   string
		want   bool
	}{
		{"exact", `"abc"`, "abc", true},
		{"weak header matches", `W/"abc"`, "abc", true},
		{"list", `"x", "abc"`, "abc", true},
		{"star", "*", "abc", true},
		{"mismatch", `"x"`, "abc", false},
		{"empty header", "", "abc", false},
		{"no etag", `"abc"`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesIfNoneMatch(tt.header, tt.etag))
		})
	}
}

func TestIfRangeAllows(t *testing.T) {
	modified := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	assert.True(t, IfRangeAllows("", "abc", modified))
	assert.True(t, IfRangeAllows(`"abc"`, "abc", modified))
	assert.False(t, IfRangeAllows(`"old"`, "abc", modified))
	assert.False(t, IfRangeAllows(`W/"abc"`, "abc", modified), "weak tags never satisfy If-Range")

	assert.True(t, IfRangeAllows(modified.Format(http.TimeFormat), "abc", modified))
	assert.False(t, IfRangeAllows(modified.Add(-time.Hour).Format(http.TimeFormat), "abc", modified))
	assert.False(t, IfRangeAllows("not a date", "abc", modified))
}
