package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	// Reset state
	Init(false, false)
	assert.False(t, Verbose)
	assert.False(t, JSONMode)

	Init(true, true)
	assert.True(t, Verbose)
	assert.True(t, JSONMode)

	// Clean up
	Init(false, false)
}

func TestNoColor(t *testing.T) {
	// Save original
	orig, hadOrig := os.LookupEnv("NO_COLOR")
	defer func() {
		if hadOrig {
			os.Setenv("NO_COLOR", orig)
		} else {
			os.Unsetenv("NO_COLOR")
		}
	}()

	os.Unsetenv("NO_COLOR")
	assert.False(t, NoColor())

	os.Setenv("NO_COLOR", "1")
	assert.True(t, NoColor())

	os.Setenv("NO_COLOR", "")
	assert.True(t, NoColor()) // any value, even empty, means no color
}

func TestJSONResult(t *testing.T) {
	tests := []struct {
		name     string
		result   JSONResult
		wantKeys []string
	}{
		{
			name:     "ok with data",
			result:   JSONResult{Status: "ok", Data: map[string]string{"key": "value"}},
			wantKeys: []string{"status", "data"},
		},
		{
			name:     "error",
			result:   JSONResult{Status: "error", Error: "something failed"},
			wantKeys: []string{"status", "error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			enc := json.NewEncoder(&buf)
			err := enc.Encode(tt.result)
			require.NoError(t, err)

			var decoded map[string]interface{}
			err = json.Unmarshal(buf.Bytes(), &decoded)
			require.NoError(t, err)

			for _, key := range tt.wantKeys {
				assert.Contains(t, decoded, key)
			}
			assert.Equal(t, tt.result.Status, decoded["status"])
		})
	}
}

func TestCLIError(t *testing.T) {
	t.Run("simple error", func(t *testing.T) {
		err := NewError("something broke")
		assert.Equal(t, "something broke", err.Error())
		assert.Nil(t, err.Unwrap())
		assert.Empty(t, err.Fix)
	})

	t.Run("error with fix", func(t *testing.T) {
		err := NewErrorWithFix("az CLI not found", "Install the Azure CLI: https://aka.ms/azcli")
		assert.Equal(t, "az CLI not found", err.Error())
		assert.Equal(t, "Install the Azure CLI: https://aka.ms/azcli", err.Fix)
	})

	t.Run("wrapped error", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := WrapError(cause, "failed to connect to Azure")
		assert.Equal(t, "failed to connect to Azure: connection refused", err.Error())
		assert.Equal(t, cause, err.Unwrap())
	})

	t.Run("wrapped error with fix", func(t *testing.T) {
		cause := errors.New("401 unauthorized")
		err := WrapErrorWithFix(cause, "Azure authentication failed", "Run: az login")
		assert.Equal(t, "Azure authentication failed: 401 unauthorized", err.Error())
		assert.Equal(t, "Run: az login", err.Fix)
		assert.ErrorIs(t, err, cause)
	})
}

func TestProgress_CountsWithoutTerminal(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, "Scanning subscriptions")
	p.Start()
	p.SetTotal(3)
	p.Advance("Prod")
	p.Advance("Dev")
	p.Stop()
	p.Stop()

	assert.Equal(t, 2, p.done)
	assert.Equal(t, 3, p.total)
	assert.Empty(t, buf.String(), "a buffer is not a terminal")
}

func TestProgress_Line(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	p := NewProgress(io.Discard, "Scanning subscriptions")
	assert.Equal(t, "| Scanning subscriptions", p.line())

	p.SetTotal(12)
	p.Advance("Prod")
	assert.Equal(t, "| Scanning subscriptions 1/12 (Prod)", p.line())
}

func TestProgress_DrawsAndClears(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer
	p := NewProgress(&buf, "Scanning subscriptions")
	p.enabled = true
	p.SetTotal(1)
	p.Start()
	p.Advance("sub-a")
	p.render()
	p.Stop()

	out := buf.String()
	assert.Contains(t, out, "Scanning subscriptions 1/1 (sub-a)")
	assert.True(t, strings.HasSuffix(out, "\r\033[K"), "line is cleared on stop")
}

func TestProgress_StopBeforeStart(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, "x")
	p.enabled = true
	p.Stop()
	p.Start()
	assert.Empty(t, buf.String())
}

func TestProgress_NilIsNoop(t *testing.T) {
	var p *Progress
	p.Start()
	p.SetTotal(1)
	p.Advance("a")
	p.Stop()
}

func TestWithProgress(t *testing.T) {
	var logs bytes.Buffer
	Init(false, false)
	SetOutput(&logs)
	defer Init(false, false)

	err := WithProgress(io.Discard, "Running prerequisite checks", func(p *Progress) error {
		p.Advance("az")
		return nil
	})
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "Running prerequisite checks")

	logs.Reset()
	boom := errors.New("boom")
	err = WithProgress(io.Discard, "Running prerequisite checks", func(*Progress) error {
		return boom
	})
	assert.Equal(t, boom, err)
	assert.Contains(t, logs.String(), "Running prerequisite checks failed")
}

func TestJSONEnvelope(t *testing.T) {
	var buf bytes.Buffer
	orig := Stdout
	Stdout = &buf
	defer func() { Stdout = orig }()

	JSON(map[string]int{"accounts": 3})
	JSONError(errors.New("subscription listing failed"))

	dec := json.NewDecoder(&buf)
	var ok, failed JSONResult
	require.NoError(t, dec.Decode(&ok))
	require.NoError(t, dec.Decode(&failed))
	assert.Equal(t, "ok", ok.Status)
	assert.Equal(t, map[string]interface{}{"accounts": float64(3)}, ok.Data)
	assert.Equal(t, "error", failed.Status)
	assert.Equal(t, "subscription listing failed", failed.Error)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	Init(false, false)
	SetOutput(&buf)
	defer Init(false, false)

	Logger().Warn("account failed", "subscription", "sub-a")
	assert.Contains(t, buf.String(), "account failed")
	assert.Contains(t, buf.String(), "sub-a")

	buf.Reset()
	Logger().Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestLogger_JSONModeIsSilent(t *testing.T) {
	var buf bytes.Buffer
	Init(false, true)
	SetOutput(&buf)
	defer Init(false, false)

	Logger().Error("should not appear")
	Info("nor this")
	assert.Empty(t, buf.String())
}

func TestPrintError_JSON(t *testing.T) {
	var buf bytes.Buffer
	orig := Stdout
	Stdout = &buf
	Init(false, true)
	defer func() {
		Stdout = orig
		Init(false, false)
	}()

	PrintError(errors.New("loading config: no such file"))
	var env JSONResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))
	assert.Equal(t, "error", env.Status)
	assert.Equal(t, "loading config: no such file", env.Error)

	buf.Reset()
	PrintError(fmt.Errorf("scan: %w", Reported(errors.New("3 non-compliant result(s) found"))))
	assert.Empty(t, buf.String(), "reported errors are already in the stdout document")

	PrintError(nil)
	assert.Empty(t, buf.String())
}

func TestPrintError_TextWithFix(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var logs, stdout bytes.Buffer
	orig := Stdout
	Stdout = &stdout
	Init(false, false)
	SetOutput(&logs)
	defer func() {
		Stdout = orig
		Init(false, false)
	}()

	PrintError(Reported(WrapErrorWithFix(errors.New("open azaudit.yaml"), "loading config", "Run: azaudit init")))
	assert.Contains(t, logs.String(), "loading config: open azaudit.yaml")
	assert.Contains(t, logs.String(), "Fix: Run: azaudit init")
	assert.Empty(t, stdout.String())
}

func TestReported(t *testing.T) {
	assert.Nil(t, Reported(nil))
	cause := errors.New("boom")
	err := Reported(cause)
	assert.Equal(t, "boom", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsReported(err))
	assert.False(t, IsReported(cause))
}
