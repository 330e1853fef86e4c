package classify

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iago/career-agent/internal/domain"
)

func TestParseConnection(t *testing.T) {
	conn, err := ParseConnection("Priya Shah | Initech")
	require.NoError(t, err)
	assert.Equal(t, "Priya Shah", conn.Name)
	assert.Equal(t, "Initech", conn.Company)
	assert.True(t, conn.KnownCompany())

	conn, err = ParseConnection("Priya Shah | unknown\n")
	require.NoError(t, err)
	assert.False(t, conn.KnownCompany())
}

func TestParseConnectionRejectsMalformedAnswers(t *testing.T) {
	for _, text := range []string{
		"Priya Shah",
		"Priya Shah | Initech | Extra",
		" | Initech",
		"Priya Shah | ",
		domain.ClassifierFailure,
		"",
	} {
		_, err := ParseConnection(text)
		assert.ErrorIs(t, err, ErrMalformedConnection, "input %q", text)
	}
}

func TestAcceptedPersonName(t *testing.T) {
	cases := []struct {
		name  string
		title string
		text  string
		want  string
	}{
		{"text phrasing", "LinkedIn", "Priya Shah accepted your invitation", "Priya Shah"},
		{"title phrasing", "Priya Shah accepted your invitation", "Start a conversation", "Priya Shah"},
		{"delimiter in title", "New connection: Priya Shah", "accepted your invitation", "Priya Shah"},
		{"plain title", "  Priya Shah ", "accepted your invitation", "Priya Shah"},
		{"only phrase", "accepted your invitation", "", ""},
		{"empty", "", "", ""},
		{"subject prefix", "Re: Priya Shah accepted your invitation", "", "Priya Shah"},
		{"turkish dotted capitals", "LinkedIn", "İbrahim İnce accepted your invitation", "İbrahim İnce"},
		{"kelvin sign initial", "LinkedIn", "\u212Aarl Smith accepted your invitation", "\u212Aarl Smith"},
		{"accented name", "LinkedIn", "İé Zoë Müller ACCEPTED your invitation", "İé Zoë Müller"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := AcceptedPersonName(tc.title, tc.text)
			assert.Equal(t, tc.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestPromptsCarryInputs(t *testing.T) {
	assert.Contains(t, RelevancePrompt("Interview invite"), "Subject: Interview invite")
	assert.Contains(t, CategoryPrompt("s", "body text"), "body text")
	assert.Contains(t, ConnectionPrompt("body", "Priya Shah"), `"Priya Shah"`)

	long := make([]rune, 1000)
	for i := range long {
		long[i] = 'x'
	}
	prompt := CompanyPrompt("s", string(long))
	assert.Less(t, len(prompt), 400)
}
