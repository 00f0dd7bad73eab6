package payment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/iliyamo/lanparty/internal/metrics"
)

const maxImageBytes = 1 << 20

// ErrUnavailable is returned while the circuit to the image API is open.
var ErrUnavailable = errors.New("payment: QR image service unavailable")

// Client fetches rendered QR images through a circuit breaker so a dead
// image API fails fast instead of tying up request goroutines.
type Client struct {
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
	logger  *logrus.Logger
}

// NewClient returns a client for the image API at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *Client {
	if logger == nil {
		panic("payment: nil logger")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "qr-image",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 2
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).
					Warn("circuit breaker state changed")
			},
		}),
		logger: logger,
	}
}

// BaseURL is the image API endpoint.
func (c *Client) BaseURL() string { return c.baseURL }

// Image is a fetched QR image.
type Image struct {
	ContentType string
	Body        []byte
}

// FetchImage downloads the QR image for req.
func (c *Client) FetchImage(ctx context.Context, req Request) (*Image, error) {
	out, err := c.cb.Execute(func() (interface{}, error) {
		return c.fetch(ctx, req.ImageURL(c.baseURL))
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.QRImageFetches.WithLabelValues("open").Inc()
			return nil, ErrUnavailable
		}
		metrics.QRImageFetches.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.QRImageFetches.WithLabelValues("ok").Inc()
	return out.(*Image), nil
}

func (c *Client) fetch(ctx context.Context, u string) (*Image, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("qr image request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("qr image request: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("qr image read: %w", err)
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "image/png"
	}
	return &Image{ContentType: ct, Body: body}, nil
}
