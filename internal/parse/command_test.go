package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommand(t *testing.T) {
	testCases := []struct {
		name       string
		raw        string
		wantName   string
		wantParams string
		expectErr  bool
	}{
		{name: "Bare command", raw: "BeginGame", wantName: "BeginGame"},
		{name: "With params", raw: "Score:10", wantName: "Score", wantParams: "10"},
		{name: "Surrounding whitespace", raw: "  AttachClient \n", wantName: "AttachClient"},
		{name: "Params keep later colons", raw: "Fault:motor:stalled", wantName: "Fault", wantParams: "motor:stalled"},
		{name: "Empty params", raw: "Finish:", wantName: "Finish"},
		{name: "Blank line", raw: "   ", expectErr: true},
		{name: "Missing name", raw: ":10", expectErr: true},
		{name: "Name with spaces", raw: "Begin Game", expectErr: true},
		{name: "Name starting with digit", raw: "1Score:3", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			name, params, err := Command(tc.raw)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.wantName, name)
			assert.Equal(t, tc.wantParams, params)
		})
	}
}

func TestCommandEmpty(t *testing.T) {
	_, _, err := Command("")
	assert.ErrorIs(t, err, ErrEmptyCommand)
}

func TestInt(t *testing.T) {
	n, err := Int(" 42 ")
	assert.NoError(t, err)
	assert.Equal(t, 42, n)

	n, err = Int("-3")
	assert.NoError(t, err)
	assert.Equal(t, -3, n)

	_, err = Int("ten")
	assert.Error(t, err)
}
