package payment

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func TestSanitizeMessage(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Jan Novák - Přátelé", "JAN NOVAK - PRATELE"},
		{"  žluťoučký   kůň  ", "ZLUTOUCKY KUN"},
		{"LAN #3 (2026) – účet!", "LAN 3 2026 UCET"},
		{"a/b:c.d,e", "A/B:C.D,E"},
		{"", ""},
		{"tab\tand\nnewline", "TAB AND NEWLINE"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := SanitizeMessage(tt.in); got != tt.want {
				t.Errorf("SanitizeMessage(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeMessage_Truncates(t *testing.T) {
	got := SanitizeMessage(strings.Repeat("ř", 100))
	if len(got) != MaxMessageLen {
		t.Fatalf("len = %d, want %d", len(got), MaxMessageLen)
	}
	if strings.Trim(got, "R") != "" {
		t.Errorf("unexpected content %q", got)
	}

	// a space landing on the cut is kept, the cut is exact
	in := strings.Repeat("A", MaxMessageLen-1) + " B"
	if got := SanitizeMessage(in); got != strings.Repeat("A", MaxMessageLen-1)+" " {
		t.Errorf("SanitizeMessage = %q", got)
	}
}

func TestRequestQuery(t *testing.T) {
	req, err := NewRequest(Account{AccountNumber: "123456789", BankCode: "0800"},
		decimal.RequireFromString("1300.5"), "2026007", "Jan Novák - Přátelé")
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	want := "accountNumber=123456789&bankCode=0800&amount=1300.50&currency=CZK&vs=2026007&message=JAN+NOVAK+-+PRATELE"
	if got := req.Query(); got != want {
		t.Errorf("Query() = %q\nwant      %q", got, want)
	}
	if got := req.ImageURL("https://api.example/qr"); got != "https://api.example/qr?"+want {
		t.Errorf("ImageURL() = %q", got)
	}
}

func TestNewRequest_IncompleteAccount(t *testing.T) {
	if _, err := NewRequest(Account{}, decimal.Zero, "1", "x"); !errors.Is(err, ErrIncompleteAccount) {
		t.Errorf("expected ErrIncompleteAccount, got %v", err)
	}
}

func TestClientFetchImage(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("PNG"))
	}))
	defer srv.Close()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	c := NewClient(srv.URL, time.Second, logger)
	req, _ := NewRequest(Account{AccountNumber: "1", BankCode: "2"}, decimal.NewFromInt(10), "5", "hi")

	img, err := c.FetchImage(context.Background(), req)
	if err != nil {
		t.Fatalf("FetchImage: %v", err)
	}
	if string(img.Body) != "PNG" || img.ContentType != "image/png" {
		t.Errorf("unexpected image %+v", img)
	}
	if gotQuery != req.Query() {
		t.Errorf("server saw %q, want %q", gotQuery, req.Query())
	}
}

func TestClientFetchImage_BreakerOpens(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	c := NewClient(srv.URL, time.Second, logger)
	req, _ := NewRequest(Account{AccountNumber: "1", BankCode: "2"}, decimal.NewFromInt(10), "5", "hi")

	for i := 0; i < 3; i++ {
		if _, err := c.FetchImage(context.Background(), req); err == nil || errors.Is(err, ErrUnavailable) {
			t.Fatalf("call %d: expected upstream error, got %v", i, err)
		}
	}
	if _, err := c.FetchImage(context.Background(), req); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable once open, got %v", err)
	}
	if calls != 3 {
		t.Errorf("upstream calls = %d, want 3", calls)
	}
}
