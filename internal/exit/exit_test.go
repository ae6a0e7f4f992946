package exit

import (
	"bytes"
	"os"
	"testing"
)

func TestResults(t *testing.T) {
	tests := []struct {
		name     string
		result   *Result
		code     int
		message  string
		toStdout bool
	}{
		{
			name:     "success",
			result:   Success("done"),
			code:     CodeOK,
			message:  "done",
			toStdout: true,
		},
		{
			name:    "error",
			result:  Error("failed"),
			code:    CodeError,
			message: "failed",
		},
		{
			name:    "errorf",
			result:  Errorf("failed: %s (code: %d)", "timeout", 500),
			code:    CodeError,
			message: "failed: timeout (code: 500)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.result.ExitCode != tt.code {
				t.Errorf("ExitCode = %d, want %d", tt.result.ExitCode, tt.code)
			}
			if tt.result.Message != tt.message {
				t.Errorf("Message = %q, want %q", tt.result.Message, tt.message)
			}

			want := os.Stderr
			if tt.toStdout {
				want = os.Stdout
			}
			if tt.result.Output != want {
				t.Errorf("Output = %v, want %v", tt.result.Output, want)
			}
		})
	}
}

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	result := &Result{
		Output:   &buf,
		ExitCode: 0,
		Message:  "test output",
	}

	result.Print()

	if buf.String() != "test output" {
		t.Errorf("Print() output = %q, want %q", buf.String(), "test output")
	}
}
