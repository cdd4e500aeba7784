// Package forms описывает схемы валидации для HTML-форм.
package forms

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

const (
	TitleMaxLength    = 200
	UsernameMaxLength = 150

	msgRequired     = "This field is required."
	msgNullChars    = "Null characters are not allowed."
	msgInvalidValue = "Enter a valid value."
)

// Errors хранит сообщения по именам полей. Ключ "" относится к форме целиком.
type Errors map[string][]string

func (e Errors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

// Get возвращает первое сообщение для поля.
func (e Errors) Get(field string) string {
	if msgs := e[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

func (e Errors) NonField() []string {
	return e[""]
}

type PostForm struct {
	Title  string
	Body   string
	Errors Errors
}

func NewPostForm(values url.Values) *PostForm {
	return &PostForm{
		Title:  values.Get("title"),
		Body:   values.Get("body"),
		Errors: Errors{},
	}
}

// Validate заполняет Errors и возвращает true, если форма корректна.
// Значения полей обрезаются по краям, как и при сохранении.
func (f *PostForm) Validate() bool {
	f.Errors = Errors{}
	f.Title = strings.TrimSpace(f.Title)
	f.Body = strings.TrimSpace(f.Body)

	if f.Title == "" {
		f.Errors.Add("title", msgRequired)
	} else if msg := textError(f.Title); msg != "" {
		f.Errors.Add("title", msg)
	} else if n := utf8.RuneCountInString(f.Title); n > TitleMaxLength {
		f.Errors.Add("title", maxLengthMessage(TitleMaxLength, n))
	}
	if f.Body == "" {
		f.Errors.Add("body", msgRequired)
	} else if msg := textError(f.Body); msg != "" {
		f.Errors.Add("body", msg)
	}

	return len(f.Errors) == 0
}

type LoginForm struct {
	Username string
	Password string
	Errors   Errors
}

func NewLoginForm(values url.Values) *LoginForm {
	return &LoginForm{
		Username: values.Get("username"),
		Password: values.Get("password"),
		Errors:   Errors{},
	}
}

func (f *LoginForm) Validate() bool {
	f.Errors = Errors{}
	f.Username = strings.TrimSpace(f.Username)

	if f.Username == "" {
		f.Errors.Add("username", msgRequired)
	} else if msg := textError(f.Username); msg != "" {
		f.Errors.Add("username", msg)
	} else if n := utf8.RuneCountInString(f.Username); n > UsernameMaxLength {
		f.Errors.Add("username", maxLengthMessage(UsernameMaxLength, n))
	}
	if f.Password == "" {
		f.Errors.Add("password", msgRequired)
	} else if msg := textError(f.Password); msg != "" {
		f.Errors.Add("password", msg)
	}

	return len(f.Errors) == 0
}

// textError отсекает значения, которые PostgreSQL не примет в text/varchar.
func textError(s string) string {
	if strings.ContainsRune(s, 0) {
		return msgNullChars
	}
	if !utf8.ValidString(s) {
		return msgInvalidValue
	}
	return ""
}

func maxLengthMessage(limit, got int) string {
	return fmt.Sprintf("Ensure this value has at most %d characters (it has %d).", limit, got)
}
