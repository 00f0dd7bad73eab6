// Package apiclient talks to the billing REST API on behalf of kiosk
// clients.  Client implements syncer.Backend.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/lanparty/internal/model"
	"github.com/iliyamo/lanparty/internal/syncer"
)

// APIError is a non-2xx answer of the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == http.StatusNotFound
}

// Client is a thin JSON client.  Token, when set, is sent as a bearer token.
type Client struct {
	baseURL string
	http    *http.Client
	Token   string
}

// New returns a client for the API rooted at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// CreateConsumption records one purchase.
func (c *Client) CreateConsumption(ctx context.Context, req syncer.NewConsumption) (model.ConsumptionRecord, error) {
	var out struct {
		Consumption model.ConsumptionRecord `json:"consumption"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/consumption", req, &out); err != nil {
		return model.ConsumptionRecord{}, err
	}
	return out.Consumption, nil
}

// DeleteConsumption removes one record.
func (c *Client) DeleteConsumption(ctx context.Context, recordID uint64) error {
	q := url.Values{"id": {strconv.FormatUint(recordID, 10)}}
	return c.do(ctx, http.MethodDelete, "/v1/consumption?"+q.Encode(), nil, nil)
}

// FetchSnapshot reads the event, its guests with consumption and its
// products concurrently.
func (c *Client) FetchSnapshot(ctx context.Context, eventID uint64) (*syncer.Snapshot, error) {
	prefix := "/v1/events/" + strconv.FormatUint(eventID, 10)
	var (
		ev struct {
			Event model.Event `json:"event"`
		}
		guests struct {
			Guests []model.GuestConsumption `json:"guests"`
		}
		products struct {
			Products []model.Product `json:"products"`
		}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.do(gctx, http.MethodGet, prefix, nil, &ev) })
	g.Go(func() error { return c.do(gctx, http.MethodGet, prefix+"/guests", nil, &guests) })
	g.Go(func() error { return c.do(gctx, http.MethodGet, prefix+"/products", nil, &products) })
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &syncer.Snapshot{Event: ev.Event, Guests: guests.Guests, Products: products.Products}, nil
}

// Login exchanges credentials for an access token and stores it on c.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var out struct {
		Access struct {
			Token string `json:"token"`
		} `json:"access"`
	}
	in := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/v1/auth/login", in, &out); err != nil {
		return err
	}
	c.Token = out.Access.Token
	return nil
}

var _ syncer.Backend = (*Client)(nil)
