package forms

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPostForm_Validate(t *testing.T) {
	tests := []struct {
		name       string
		values     url.Values
		valid      bool
		titleError string
		bodyError  string
	}{
		{
			name:   "valid",
			values: url.Values{"title": {"Hello"}, "body": {"World"}},
			valid:  true,
		},
		{
			name:       "empty",
			values:     url.Values{},
			titleError: "This field is required.",
			bodyError:  "This field is required.",
		},
		{
			name:       "whitespace only",
			values:     url.Values{"title": {"   "}, "body": {"\n\t"}},
			titleError: "This field is required.",
			bodyError:  "This field is required.",
		},
		{
			name:       "title too long",
			values:     url.Values{"title": {strings.Repeat("a", 201)}, "body": {"b"}},
			titleError: "Ensure this value has at most 200 characters (it has 201).",
		},
		{
			name:       "null character",
			values:     url.Values{"title": {"Hello\x00World"}, "body": {"a\x00b"}},
			titleError: "Null characters are not allowed.",
			bodyError:  "Null characters are not allowed.",
		},
		{
			name:       "invalid utf-8",
			values:     url.Values{"title": {"bad\xff\xfeutf8"}, "body": {"\xc3\x28"}},
			titleError: "Enter a valid value.",
			bodyError:  "Enter a valid value.",
		},
		{
			name:   "title at limit in runes",
			values: url.Values{"title": {strings.Repeat("я", 200)}, "body": {"b"}},
			valid:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := NewPostForm(tt.values)
			assert.Equal(t, tt.valid, form.Validate())
			assert.Equal(t, tt.titleError, form.Errors.Get("title"))
			assert.Equal(t, tt.bodyError, form.Errors.Get("body"))
		})
	}
}

func TestPostForm_TrimsValues(t *testing.T) {
	form := NewPostForm(url.Values{"title": {"  Hello "}, "body": {" World\n"}})
	assert.True(t, form.Validate())
	assert.Equal(t, "Hello", form.Title)
	assert.Equal(t, "World", form.Body)
}

func TestPostForm_RevalidateResetsErrors(t *testing.T) {
	form := NewPostForm(url.Values{})
	assert.False(t, form.Validate())

	form.Title, form.Body = "t", "b"
	assert.True(t, form.Validate())
	assert.Empty(t, form.Errors)
}

func TestLoginForm_Validate(t *testing.T) {
	form := NewLoginForm(url.Values{"username": {" alice "}, "password": {"secret"}})
	assert.True(t, form.Validate())
	assert.Equal(t, "alice", form.Username)

	form = NewLoginForm(url.Values{"username": {""}})
	assert.False(t, form.Validate())
	assert.Equal(t, "This field is required.", form.Errors.Get("username"))
	assert.Equal(t, "This field is required.", form.Errors.Get("password"))

	form = NewLoginForm(url.Values{"username": {"ali\x00ce"}, "password": {"\xff"}})
	assert.False(t, form.Validate())
	assert.Equal(t, "Null characters are not allowed.", form.Errors.Get("username"))
	assert.Equal(t, "Enter a valid value.", form.Errors.Get("password"))
}

func TestErrors(t *testing.T) {
	errs := Errors{}
	assert.Empty(t, errs.Get("title"))
	assert.Empty(t, errs.NonField())

	errs.Add("", "bad credentials")
	errs.Add("title", "first")
	errs.Add("title", "second")
	assert.Equal(t, "first", errs.Get("title"))
	assert.Equal(t, []string{"bad credentials"}, errs.NonField())
}
