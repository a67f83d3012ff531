package wizard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Work", "work"},
		{"  Home Mail ", "home-mail"},
		{"ACME / Support!", "acme-support"},
		{"---", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slug(tt.name))
		})
	}
}

func TestResultAccount(t *testing.T) {
	r := NewResult()
	r.Name = "Work Mail"
	r.Email = " me@work.example "
	r.IMAPHost = "imap.work.example"
	r.SMTPHost = "smtp.work.example"
	r.Password = "secret"

	acct := r.Account()
	assert.Equal(t, "work-mail", acct.ID)
	assert.Equal(t, "me@work.example", acct.Email)
	assert.Equal(t, "me@work.example", acct.Username)
	assert.Equal(t, "993", acct.IMAPPort)
	assert.True(t, acct.TLS)
	assert.True(t, acct.Enabled)
}

func TestValidators(t *testing.T) {
	assert.Error(t, validateRequired("Name")(" "))
	assert.NoError(t, validateRequired("Name")("x"))

	assert.Error(t, validatePort(""))
	assert.Error(t, validatePort("99a"))
	assert.NoError(t, validatePort("587"))

	assert.Error(t, validateEmail(""))
	assert.Error(t, validateEmail("not-an-address"))
	assert.NoError(t, validateEmail("me@example.com"))
}

func TestNewFormBuilds(t *testing.T) {
	assert.NotNil(t, NewForm(NewResult()))
}
