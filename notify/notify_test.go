package notify

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReport_Subject(t *testing.T) {
	assert.Equal(t, "Test Execution Report: Login", Report{Name: "Login", Success: true}.Subject())
	assert.Equal(t, "Test Execution Failed: Login", Report{Name: "Login"}.Subject())
}

func TestRenderReport(t *testing.T) {
	ranAt := time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC)
	tests := []struct {
		name    string
		report  Report
		want    []string
		notWant []string
	}{
		{
			name: "success with screenshot",
			report: Report{
				Name:       "Login",
				Success:    true,
				RunID:      "run-1",
				Link:       "https://runner.test/runs/abc",
				Cost:       0.1234,
				Screenshot: "https://cdn.test/shot.png",
				RanAt:      ranAt,
			},
			want: []string{
				"Test run successfully; costed $0.12 ran at 03/04/2026 03:30 PM",
				`<a href="https://runner.test/runs/abc">`,
				`<img src="https://cdn.test/shot.png"`,
				"Run run-1",
			},
		},
		{
			name:    "failure without screenshot",
			report:  Report{Name: "Login", RunID: "run-2", RanAt: ranAt},
			want:    []string{"Test run failed; ran at 03/04/2026 03:30 PM"},
			notWant: []string{"<img", "costed", "see details"},
		},
		{
			name:   "escapes names",
			report: Report{Name: "x", RunID: `<script>alert(1)</script>`, RanAt: ranAt},
			want:   []string{"&lt;script&gt;"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html, err := RenderReport(tt.report)
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, html, w)
			}
			for _, w := range tt.notWant {
				assert.NotContains(t, html, w)
			}
		})
	}
}

func TestBuildMessage(t *testing.T) {
	cfg := SMTPConfig{Host: "smtp.test", From: "runner@test", FromName: "Scenario Runner"}
	body := strings.Repeat("<p>report</p>", 20)

	msg := buildMessage(cfg, "qa@test", "Test Execution Report: Login", body)
	head, encoded, found := strings.Cut(msg, "\r\n\r\n")
	require.True(t, found)
	assert.Contains(t, head, "From: Scenario Runner <runner@test>\r\n")
	assert.Contains(t, head, "To: qa@test\r\n")
	assert.Contains(t, head, "Subject: Test Execution Report: Login\r\n")
	assert.Contains(t, head, "Content-Type: text/html")

	for _, line := range strings.Split(strings.TrimSpace(encoded), "\r\n") {
		assert.LessOrEqual(t, len(line), 76)
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(strings.TrimSpace(encoded), "\r\n", ""))
	require.NoError(t, err)
	assert.Equal(t, body, string(decoded))
}

func TestNewSMTPSender(t *testing.T) {
	_, err := NewSMTPSender(SMTPConfig{From: "a@b"})
	assert.ErrorIs(t, err, ErrNotConfigured)

	s, err := NewSMTPSender(SMTPConfig{Host: "smtp.test", From: "a@b"})
	require.NoError(t, err)
	assert.Equal(t, 587, s.config.Port)
}

func TestNopSender(t *testing.T) {
	assert.NoError(t, NopSender{}.Send(context.Background(), "a@b", "s", "h"))
}
