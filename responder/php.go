package responder

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/nodewire/originserver/metrics"
	xerrors "github.com/nodewire/originserver/pkg/errors"
	xhttp "github.com/nodewire/originserver/pkg/x/http"
)

// PhpRequest carries everything the interpreter needs via its CGI
// environment, per spec §4.G.
type PhpRequest struct {
	ScriptFilename string
	DocumentRoot   string
	Method         string
	QueryString    string
	RemoteAddr     string
	Headers        map[string]string // lower-cased field name -> value, mirrored as HTTP_*
	DenyHeaders    []string
}

// PhpOptions configures the interpreter invocation.
type PhpOptions struct {
	Interpreter    string
	Timeout        time.Duration
	MaxOutputBytes int64
	ExtraEnv       map[string]string
	// EnvDenyHeaders names client headers (case-insensitive) that are
	// never mirrored into the child's HTTP_* environment, so operators
	// can keep e.g. Cookie/Authorization out of the CGI environment
	// without losing the rest of the passthrough contract.
	EnvDenyHeaders []string
}

// ServePhp spawns the interpreter as a child process and maps its CGI
// output to an HTTP response. PHP responses are never cache-eligible.
func ServePhp(ctx context.Context, req PhpRequest, opts PhpOptions) (*Response, *xerrors.Error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if len(opts.EnvDenyHeaders) > 0 {
		req.DenyHeaders = opts.EnvDenyHeaders
	}

	requestID := metrics.FromContext(ctx).RequestID
	env := opts.ExtraEnv
	if requestID != "" {
		env = make(map[string]string, len(opts.ExtraEnv)+1)
		for k, v := range opts.ExtraEnv {
			env[k] = v
		}
		env["REQUEST_ID"] = requestID
	}

	cmd := exec.CommandContext(ctx, opts.Interpreter, req.ScriptFilename)
	cmd.Env = buildCGIEnv(req, env)

	var stdout, stderr bytes.Buffer
	maxOutput := opts.MaxOutputBytes
	if maxOutput <= 0 {
		maxOutput = 8 << 20
	}
	cmd.Stdout = &limitedWriter{w: &stdout, limit: maxOutput}
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	metrics.PhpInvocationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if os.IsNotExist(err) || isExecNotFound(err) {
			return nil, xerrors.UpstreamUnavailable()
		}
		if ctx.Err() == context.DeadlineExceeded {
			return nil, xerrors.UpstreamTimeout()
		}
		if ow, ok := cmd.Stdout.(*limitedWriter); ok && ow.exceeded {
			return nil, xerrors.UpstreamOverflow()
		}
		// Non-zero exit from a script that still wrote a body is
		// treated as a valid CGI response; only a hard spawn/runtime
		// failure with no output becomes an internal error.
		if stdout.Len() == 0 {
			return nil, xerrors.Internal().WithCause(err)
		}
	}

	if lw, ok := cmd.Stdout.(*limitedWriter); ok && lw.exceeded {
		return nil, xerrors.UpstreamOverflow()
	}

	return parseCGIOutput(stdout.Bytes())
}

func isExecNotFound(err error) bool {
	return strings.Contains(err.Error(), "executable file not found") ||
		strings.Contains(err.Error(), "no such file or directory")
}

// limitedWriter caps the number of bytes written, matching spec §4.G's
// hard size cap rather than letting a runaway script exhaust memory.
type limitedWriter struct {
	w        io.Writer
	limit    int64
	written  int64
	exceeded bool
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	if l.exceeded {
		return len(p), nil
	}
	if l.written+int64(len(p)) > l.limit {
		l.exceeded = true
		return len(p), nil
	}
	n, err := l.w.Write(p)
	l.written += int64(n)
	return n, err
}

func buildCGIEnv(req PhpRequest, extra map[string]string) []string {
	env := []string{
		"GATEWAY_INTERFACE=CGI/1.1",
		"SERVER_PROTOCOL=HTTP/1.1",
		"REQUEST_METHOD=" + req.Method,
		"QUERY_STRING=" + req.QueryString,
		"SCRIPT_FILENAME=" + req.ScriptFilename,
		"DOCUMENT_ROOT=" + req.DocumentRoot,
		"REMOTE_ADDR=" + req.RemoteAddr,
		"REDIRECT_STATUS=200",
	}

	deny := make(map[string]bool, len(req.DenyHeaders))
	for _, h := range req.DenyHeaders {
		deny[strings.ToLower(h)] = true
	}

	for name, value := range req.Headers {
		if deny[name] {
			continue
		}
		env = append(env, "HTTP_"+headerEnvName(name)+"="+value)
	}

	for k, v := range extra {
		env = append(env, k+"="+v)
	}

	return env
}

func headerEnvName(name string) string {
	b := []byte(strings.ToUpper(name))
	for i, c := range b {
		if c == '-' {
			b[i] = '_'
		}
	}
	return string(b)
}

// parseCGIOutput splits the optional CGI header block from the body and
// maps Status:/Location: per spec §4.G and the documented open-question
// resolution (a bare Location: with no Status: is promoted to 302).
func parseCGIOutput(output []byte) (*Response, *xerrors.Error) {
	headerEnd := bytes.Index(output, []byte("\r\n\r\n"))
	sep := 4
	if headerEnd < 0 {
		headerEnd = bytes.Index(output, []byte("\n\n"))
		sep = 2
	}

	resp := &Response{
		Status:      200,
		ContentType: "text/html; charset=utf-8",
		Headers:     map[string]string{},
		Cacheable:   false,
	}

	if headerEnd < 0 {
		resp.Body = output
		return resp, nil
	}

	headerBlock := string(output[:headerEnd])
	resp.Body = output[headerEnd+sep:]

	hasStatus := false
	for _, line := range strings.Split(headerBlock, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		name := strings.TrimSpace(line[:colon])
		value := strings.TrimSpace(line[colon+1:])

		switch strings.ToLower(name) {
		case "status":
			hasStatus = true
			code := value
			if sp := strings.IndexByte(value, ' '); sp > 0 {
				code = value[:sp]
			}
			if n, err := strconv.Atoi(code); err == nil {
				resp.Status = n
			}
		case "content-type":
			resp.ContentType = value
		default:
			resp.Headers[name] = value
		}
	}

	if !hasStatus {
		for name := range resp.Headers {
			if strings.EqualFold(name, "Location") {
				resp.Status = 302
				break
			}
		}
	}

	// A misbehaving script could emit Connection:/Transfer-Encoding:
	// and corrupt our own framing of the response; strip anything
	// hop-by-hop before it reaches the client.
	h := http.Header{}
	for name, value := range resp.Headers {
		h.Set(name, value)
	}
	xhttp.RemoveHopByHopHeaders(h)
	resp.Headers = make(map[string]string, len(h))
	for name := range h {
		resp.Headers[name] = h.Get(name)
	}

	return resp, nil
}
