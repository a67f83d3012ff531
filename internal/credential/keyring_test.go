package credential

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvName(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"work", "MODEST_PASSWORD_WORK"},
		{"Home2", "MODEST_PASSWORD_HOME2"},
		{"my-mail.box", "MODEST_PASSWORD_MY_MAIL_BOX"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, EnvName(tt.id))
		})
	}
}

func TestPasswordPrefersEnv(t *testing.T) {
	t.Setenv("MODEST_PASSWORD_WORK", "s3cret")

	got, err := Password("work", "account-work")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", got)
}
