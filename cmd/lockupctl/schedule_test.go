package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ft-lockup/backend/internal/models"
	"github.com/stretchr/testify/require"
)

const linear = `[{"timestamp":100,"balance":"0"},{"timestamp":200,"balance":"1000"}]`

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := scheduleCommand()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestScheduleHash(t *testing.T) {
	out, err := run(t, linear, "hash")
	require.NoError(t, err)

	schedule, err := readSchedule(strings.NewReader(linear), nil)
	require.NoError(t, err)
	require.Equal(t, schedule.Hash().String()+"\n", out)
}

func TestScheduleValidate(t *testing.T) {
	out, err := run(t, linear, "validate", "--total", "1000")
	require.NoError(t, err)
	require.Contains(t, out, "ok: 2 checkpoints")

	_, err = run(t, linear, "validate", "--total", "999")
	require.ErrorIs(t, err, models.ErrInvalidSchedule)

	_, err = run(t, `[{"timestamp":1,"balance":"0","extra":1}]`, "validate")
	require.Error(t, err)
}
