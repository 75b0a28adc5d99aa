package compile

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"pyforge/internal/pyres"
)

// workerProgram runs inside the target interpreter and services framed
// compile requests on stdin until EOF. The unchecked-hash header variant
// (flags 0b11) embeds importlib's source hash instead of a timestamp so
// emitted .pyc files are reproducible.
const workerProgram = `
import importlib.util
import marshal
import struct
import sys

stdin = sys.stdin.buffer
stdout = sys.stdout.buffer

def read_exact(n):
    data = stdin.read(n)
    if data is None or len(data) != n:
        raise EOFError
    return data

while True:
    try:
        header = read_exact(10)
    except EOFError:
        break
    name_len, source_len, level, mode = struct.unpack(">IIBB", header)
    name = read_exact(name_len).decode("utf-8")
    source = read_exact(source_len)
    try:
        code = compile(source, name, "exec", dont_inherit=True, optimize=level)
        payload = marshal.dumps(code)
        if mode == 1:
            header = importlib.util.MAGIC_NUMBER + struct.pack(
                "<I", 0b11) + importlib.util.source_hash(source)
            payload = header + payload
        stdout.write(struct.pack(">BI", 0, len(payload)))
        stdout.write(payload)
    except Exception as exc:
        msg = str(exc).encode("utf-8")
        stdout.write(struct.pack(">BI", 1, len(msg)))
        stdout.write(msg)
    stdout.flush()
`

// Worker drives a Python subprocess compiling one request at a time. The
// process is started lazily on first Compile and reused until Close.
type Worker struct {
	exe    string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	stderr *strings.Builder
}

// NewWorker returns a Worker bound to the given interpreter executable.
// The subprocess is not spawned until the first Compile call.
func NewWorker(exe string) (*Worker, error) {
	if err := ensurePythonAvailable(exe); err != nil {
		return nil, err
	}
	return &Worker{exe: exe}, nil
}

func ensurePythonAvailable(exe string) error {
	if _, err := exec.LookPath(exe); err != nil {
		return fmt.Errorf("python interpreter %q not found: %w", exe, err)
	}
	return nil
}

func (w *Worker) start(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, w.exe, "-c", workerProgram)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open worker stdout: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start compiler worker: %w", err)
	}
	w.cmd = cmd
	w.stdin = stdin
	w.stdout = bufio.NewReader(stdout)
	w.stderr = &stderr
	return nil
}

// Compile sends one request to the worker and reads back the artifact.
func (w *Worker) Compile(ctx context.Context, source []byte, name string, level pyres.OptimizationLevel, mode Mode) ([]byte, error) {
	if w.cmd == nil {
		if err := w.start(ctx); err != nil {
			return nil, &Error{Module: name, Level: level, Err: err}
		}
	}
	if err := writeRequest(w.stdin, source, name, level, mode); err != nil {
		return nil, &Error{Module: name, Level: level, Err: w.wrapWorkerErr(err)}
	}
	payload, workerErr, err := readResponse(w.stdout)
	if err != nil {
		return nil, &Error{Module: name, Level: level, Err: w.wrapWorkerErr(err)}
	}
	if workerErr != "" {
		return nil, &Error{Module: name, Level: level, Err: fmt.Errorf("%s", workerErr)}
	}
	return payload, nil
}

// wrapWorkerErr attaches captured stderr to pipe-level failures, since a
// crashed interpreter reports the interesting part there.
func (w *Worker) wrapWorkerErr(err error) error {
	if w.stderr != nil {
		if msg := strings.TrimSpace(w.stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
	}
	return err
}

// Close shuts down the worker process, if one was started.
func (w *Worker) Close() error {
	if w.cmd == nil {
		return nil
	}
	if err := w.stdin.Close(); err != nil {
		_ = w.cmd.Process.Kill()
		_ = w.cmd.Wait()
		return err
	}
	err := w.cmd.Wait()
	w.cmd = nil
	return err
}

func writeRequest(dst io.Writer, source []byte, name string, level pyres.OptimizationLevel, mode Mode) error {
	nameBytes := []byte(name)
	header := make([]byte, 10)
	binary.BigEndian.PutUint32(header[0:4], uint32(len(nameBytes)))
	binary.BigEndian.PutUint32(header[4:8], uint32(len(source)))
	header[8] = byte(level)
	header[9] = byte(mode)
	for _, chunk := range [][]byte{header, nameBytes, source} {
		if _, err := dst.Write(chunk); err != nil {
			return fmt.Errorf("failed to write compile request: %w", err)
		}
	}
	return nil
}

func readResponse(src io.Reader) (payload []byte, workerErr string, err error) {
	header := make([]byte, 5)
	if _, err := io.ReadFull(src, header); err != nil {
		return nil, "", fmt.Errorf("failed to read compile response: %w", err)
	}
	size := binary.BigEndian.Uint32(header[1:5])
	body := make([]byte, size)
	if _, err := io.ReadFull(src, body); err != nil {
		return nil, "", fmt.Errorf("failed to read compile payload: %w", err)
	}
	if header[0] != 0 {
		return nil, string(body), nil
	}
	return body, "", nil
}
