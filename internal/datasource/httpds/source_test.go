package httpds

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSourceOpen(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Token") != "abc" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		switch r.URL.Path {
		case "/2001.tab":
			_, _ = io.WriteString(w, "STATE\tSEX\n06\t2\n")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(Config{Timeout: 5 * time.Second, MaxRetries: 0})
	hdr := http.Header{"X-Token": []string{"abc"}}

	src := NewSource(c, srv.URL+"/2001.tab", hdr)
	if src.Name() != srv.URL+"/2001.tab" {
		t.Fatalf("Name() = %q", src.Name())
	}
	rc, err := src.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	b, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(b) != "STATE\tSEX\n06\t2\n" {
		t.Fatalf("body = %q", b)
	}

	_, err = NewSource(c, srv.URL+"/missing.tab", hdr).Open(context.Background())
	if err == nil || !strings.Contains(err.Error(), "status 404") {
		t.Fatalf("err = %v; want status 404", err)
	}
	_, err = NewSource(c, srv.URL+"/2001.tab", nil).Open(context.Background())
	if err == nil || !strings.Contains(err.Error(), "status 403") {
		t.Fatalf("err = %v; want status 403", err)
	}
}

func TestSourceHeader(t *testing.T) {
	t.Parallel()

	srv := extractServer(t, map[string]string{
		"/FC2002v5.tab": "RECNUMBR\tSTFCID\tFCMNTPAY\n1\tCA01\t250\n",
	})
	src := NewSource(NewClient(Config{}), srv.URL+"/FC2002v5.tab", nil)
	hl, err := src.Header(context.Background())
	if err != nil {
		t.Fatalf("Header: %v", err)
	}
	if hl.Comma != '\t' || strings.Join(hl.Fields, "|") != "RECNUMBR|STFCID|FCMNTPAY" {
		t.Fatalf("header = %+v", hl)
	}
}
