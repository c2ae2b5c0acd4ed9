package httpcore

import (
	"context"
	"io"
	"strconv"
	"testing"
)

func TestParseMultipartBoundary(t *testing.T) {
	cases := []struct {
		contentType string
		wantOK      bool
		wantValue   string
	}{
		{`multipart/form-data; boundary=X-Y-Z`, true, "X-Y-Z"},
		{`multipart/form-data; boundary="quoted-value"`, true, "quoted-value"},
		{`multipart/form-data; charset=utf-8; boundary=abc; foo=bar`, true, "abc"},
		{`MULTIPART/FORM-DATA; BOUNDARY=abc`, true, "abc"},
		{`application/json`, false, ""},
		{`multipart/form-data`, false, ""},
		{`multipart/form-data; boundary=`, false, ""},
	}

	for _, c := range cases {
		got, ok := ParseMultipartBoundary(c.contentType)
		if ok != c.wantOK || got != c.wantValue {
			t.Errorf("ParseMultipartBoundary(%q) = (%q, %v), want (%q, %v)",
				c.contentType, got, ok, c.wantValue, c.wantOK)
		}
	}
}

func multipartRequest(t *testing.T, body string) *Request {
	t.Helper()
	raw := "POST /upload HTTP/1.1\r\n" +
		"Host: h\r\n" +
		"Content-Type: multipart/form-data; boundary=X-BOUNDARY\r\n" +
		"Content-Length: " + strconv.Itoa(len(body)) + "\r\n" +
		"\r\n" + body

	p := NewParser(newSource(raw), DefaultConfig())
	req, err := p.ReadRequest(context.Background())
	if err != nil {
		t.Fatalf("ReadRequest: %v", err)
	}
	return req
}

func readAllBody(t *testing.T, b Body) string {
	t.Helper()
	var got []byte
	buf := make([]byte, 4)
	for {
		n, err := b.Read(context.Background(), buf)
		got = append(got, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
	}
	return string(got)
}

func TestSniffMultipartBoundaryMatches(t *testing.T) {
	body := "--X-BOUNDARY\r\nContent-Disposition: form-data; name=\"f\"\r\n\r\nv\r\n--X-BOUNDARY--\r\n"
	req := multipartRequest(t, body)

	boundary, ok, matched, err := SniffMultipartBoundary(context.Background(), req)
	if err != nil {
		t.Fatalf("SniffMultipartBoundary: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true: Content-Type declared a boundary and the body supports rewinding")
	}
	if !matched {
		t.Fatal("expected matched=true: body starts with its declared boundary marker")
	}
	if boundary != "X-BOUNDARY" {
		t.Errorf("boundary = %q, want X-BOUNDARY", boundary)
	}

	// The handler must still see every byte of the body after sniffing.
	if got := readAllBody(t, req.Body); got != body {
		t.Errorf("body after sniff = %q, want %q", got, body)
	}
}

func TestSniffMultipartBoundaryMismatch(t *testing.T) {
	body := "not-a-multipart-payload"
	req := multipartRequest(t, body)

	_, ok, matched, err := SniffMultipartBoundary(context.Background(), req)
	if err != nil {
		t.Fatalf("SniffMultipartBoundary: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true: a boundary was declared and the body is rewindable")
	}
	if matched {
		t.Fatal("expected matched=false: body doesn't start with its declared boundary")
	}

	if got := readAllBody(t, req.Body); got != body {
		t.Errorf("body after sniff = %q, want %q", got, body)
	}
}

func TestSniffMultipartBoundaryDeclinesNonMultipart(t *testing.T) {
	raw := "POST /x HTTP/1.1\r\nHost: h\r\nContent-Type: application/json\r\nContent-Length: 2\r\n\r\n{}"
	p := NewParser(newSource(raw), DefaultConfig())
	req, err := p.ReadRequest(context.Background())
	if err != nil {
		t.Fatalf("ReadRequest: %v", err)
	}

	boundary, ok, matched, err := SniffMultipartBoundary(context.Background(), req)
	if err != nil {
		t.Fatalf("SniffMultipartBoundary: %v", err)
	}
	if ok || matched || boundary != "" {
		t.Fatalf("expected a no-op decline for non-multipart Content-Type, got (%q, %v, %v)", boundary, ok, matched)
	}

	if got := readAllBody(t, req.Body); got != "{}" {
		t.Errorf("body after sniff = %q, want %q", got, "{}")
	}
}
