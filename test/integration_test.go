//go:build integration

package test_test

import (
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"dictado/clipboard"
)

var testBinary string

func TestMain(m *testing.M) {
	testBinary = os.Getenv("DICTADO_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "DICTADO_TEST_BIN not set; build the binary and point DICTADO_TEST_BIN at it")
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func generateSilenceWAV(path string, sampleRate int, durationS float64) error {
	const headerSize = 44
	numSamples := int(float64(sampleRate) * durationS)
	dataSize := numSamples * 2

	buf := make([]byte, headerSize+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(headerSize-8+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)  // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16) // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	return os.WriteFile(path, buf, 0644)
}

func silenceWAV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "silence.wav")
	if err := generateSilenceWAV(path, 16000, 1.0); err != nil {
		t.Fatalf("generate silence.wav: %v", err)
	}
	return path
}

func cmds(parts ...string) string {
	return strings.Join(parts, "\n") + "\n"
}

// runDictado runs the binary in headless mode and returns its stdout lines
// and the log directory it wrote to.
func runDictado(t *testing.T, stdin string, env []string, args ...string) ([]string, string) {
	t.Helper()
	logDir := t.TempDir()
	cmdArgs := append([]string{"-headless", "-logpath", logDir}, args...)

	cmd := exec.Command(testBinary, cmdArgs...)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = append(os.Environ(), "XDG_CONFIG_HOME="+t.TempDir())
	cmd.Env = append(cmd.Env, env...)

	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("dictado exited with error: %v\noutput: %s", err, out)
	}
	text := strings.TrimRight(string(out), "\n")
	if text == "" {
		return nil, logDir
	}
	return strings.Split(text, "\n"), logDir
}

func readLog(t *testing.T, logDir, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("failed to read %s: %v", filename, err)
	}
	return string(data)
}

func requireLines(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("output = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFakeDictation(t *testing.T) {
	out, logDir := runDictado(t, cmds("LOAD", "START", "PARTIAL hola", "PRINT", "FINAL hola", "PRINT", "QUIT"),
		nil, "-engine", "fake")
	requireLines(t, out,
		"|0|0|hola|true|ready|",
		"hola |5|5||false|ready|",
	)

	if !strings.Contains(readLog(t, logDir, "transcript_log.txt"), "hola") {
		t.Error("transcript_log.txt missing the merged fragment")
	}
	diag := readLog(t, logDir, "diagnostics_log.txt")
	for _, marker := range []string{"session_start", "model_loaded", "listening_start", "listening_stop", "reason=final", "session_end"} {
		if !strings.Contains(diag, marker) {
			t.Errorf("diagnostics_log.txt missing %q", marker)
		}
	}
}

func TestPermissionRevoked(t *testing.T) {
	out, _ := runDictado(t, cmds("LOAD", "START", "PRINT", "QUIT"),
		[]string{"DICTADO_MICROPHONE_GRANTED=false"}, "-engine", "fake")
	requireLines(t, out, "|0|0||false|unloaded|microphone permission denied")
}

func TestExecDecoderFromWAV(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	modelDir := t.TempDir()
	if err := os.Mkdir(filepath.Join(modelDir, "tiny"), 0755); err != nil {
		t.Fatal(err)
	}
	decoder := `sh -c 'cat >/dev/null; echo "{\"partial\":\"ho\"}"; echo "{\"text\":\"hola\"}"' decoder`

	out, logDir := runDictado(t, cmds("LOAD", "START", "SLEEP 1500", "PRINT", "QUIT"),
		[]string{
			"DICTADO_ENGINE_COMMAND=" + decoder,
			"DICTADO_MODEL_DIR=" + modelDir,
			"DICTADO_AUDIO_REALTIME=false",
		},
		"-engine", "exec", "-model", "tiny", "-wav", silenceWAV(t))
	requireLines(t, out, "hola |5|5||false|ready|")

	if !strings.Contains(readLog(t, logDir, "diagnostics_log.txt"), "decoder started") {
		t.Error("diagnostics_log.txt missing decoder start")
	}
}

func TestExecMissingModel(t *testing.T) {
	out, _ := runDictado(t, cmds("LOAD", "PRINT", "QUIT"),
		[]string{"DICTADO_MODEL_DIR=" + t.TempDir()}, "-engine", "exec", "-model", "nope", "-wav", silenceWAV(t))
	if len(out) != 1 || !strings.HasPrefix(out[0], "|0|0||false|failed|model load failed: model not found") {
		t.Errorf("output = %q", out)
	}
}

func TestStreamWords(t *testing.T) {
	key := os.Getenv("DEEPGRAM_API_KEY")
	if key == "" {
		t.Skip("DEEPGRAM_API_KEY not set")
	}
	_, logDir := runDictado(t, cmds("LOAD", "START", "SLEEP 3000", "STOP", "QUIT"),
		[]string{"DICTADO_STREAM_API_KEY=" + key}, "-engine", "stream", "-wav", silenceWAV(t))
	diag := readLog(t, logDir, "diagnostics_log.txt")
	if strings.Contains(diag, "recognition_error") {
		t.Errorf("stream session failed:\n%s", diag)
	}
}

func TestClipboardCopy(t *testing.T) {
	if !clipboard.Available() {
		t.Skip("clipboard not available")
	}
	_, _ = runDictado(t, cmds("LOAD", "START", "FINAL portapapeles", "COPY", "QUIT"), nil, "-engine", "fake")
	clip, err := clipboard.Read()
	if err != nil {
		t.Skip("clipboard not available")
	}
	if strings.TrimSpace(clip) != "portapapeles" {
		t.Errorf("clipboard = %q, want portapapeles", clip)
	}
}
