// Package netbox implements cmdb.Client on top of the NetBox REST API.
package netbox

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"meshgen/internal/cmdb"
)

const (
	devicesPath     = "/api/dcim/devices/"
	interfacesPath  = "/api/dcim/interfaces/"
	ipAddressesPath = "/api/ipam/ip-addresses/"
	prefixesPath    = "/api/ipam/prefixes/"

	defaultPageSize = 1000
	// maxFilterValues bounds how many values of one filter go into a single
	// request so query strings stay within proxy limits
	maxFilterValues = 100
)

var log = logrus.New()

// SetLogger replaces the package logger
func SetLogger(l *logrus.Logger) {
	if l != nil {
		log = l
	}
}

// Options configures the client
type Options struct {
	URL      string
	Token    string
	Insecure bool
	Timeout  time.Duration
	PageSize int
}

// Client talks to a NetBox instance
type Client struct {
	baseURL    *url.URL
	token      string
	pageSize   int
	httpClient *http.Client
}

var _ cmdb.Client = (*Client)(nil)

// NewClient creates a NetBox client
func NewClient(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("netbox url is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse netbox url: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	return &Client{
		baseURL:  base,
		token:    opts.Token,
		pageSize: pageSize,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
	}, nil
}

// page is one page of a NetBox list response
type page[T any] struct {
	Count   int     `json:"count"`
	Next    *string `json:"next"`
	Results []T     `json:"results"`
}

// ListDevices lists devices matching the filter
func (c *Client) ListDevices(ctx context.Context, f cmdb.Filter) ([]cmdb.Device, error) {
	q := url.Values{}
	addStrings(q, "name__ie", f.Name)
	addStrings(q, "name__ic", f.NameIC)
	addInts(q, "id", f.ID)
	devices, err := list[cmdb.Device](ctx, c, devicesPath, q)
	if err != nil {
		return nil, err
	}
	// substring filters split over several requests can match a device twice
	return lo.UniqBy(devices, func(d cmdb.Device) int { return d.ID }), nil
}

// ListInterfaces lists interfaces matching the filter
func (c *Client) ListInterfaces(ctx context.Context, f cmdb.Filter) ([]cmdb.Interface, error) {
	q := url.Values{}
	addInts(q, "id", f.ID)
	addInts(q, "device_id", f.DeviceID)
	return list[cmdb.Interface](ctx, c, interfacesPath, q)
}

// ListIPAddresses lists IP addresses matching the filter
func (c *Client) ListIPAddresses(ctx context.Context, f cmdb.Filter) ([]cmdb.IPAddress, error) {
	q := url.Values{}
	addInts(q, "id", f.ID)
	addInts(q, "interface_id", f.InterfaceID)
	return list[cmdb.IPAddress](ctx, c, ipAddressesPath, q)
}

// ListPrefixes lists prefixes matching the filter
func (c *Client) ListPrefixes(ctx context.Context, f cmdb.Filter) ([]cmdb.Prefix, error) {
	q := url.Values{}
	addInts(q, "id", f.ID)
	addStrings(q, "prefix", f.Prefix)
	return list[cmdb.Prefix](ctx, c, prefixesPath, q)
}

// GetDevice fetches a single device by id
func (c *Client) GetDevice(ctx context.Context, id int) (*cmdb.Device, error) {
	endpoint := c.baseURL.JoinPath(devicesPath, strconv.Itoa(id)).String() + "/"
	var device cmdb.Device
	if err := c.get(ctx, devicesPath, endpoint, &device); err != nil {
		return nil, fmt.Errorf("get device %d: %w", id, err)
	}
	return &device, nil
}

// list fetches every page of a collection, splitting long filters into
// several requests
func list[T any](ctx context.Context, c *Client, path string, q url.Values) ([]T, error) {
	var results []T
	for _, chunk := range chunkQuery(q, maxFilterValues) {
		chunk.Set("limit", strconv.Itoa(c.pageSize))
		u := *c.baseURL.JoinPath(path)
		u.Path = strings.TrimRight(u.Path, "/") + "/"
		u.RawQuery = chunk.Encode()
		next := u.String()

		for next != "" {
			var p page[T]
			if err := c.get(ctx, path, next, &p); err != nil {
				return nil, fmt.Errorf("list %s: %w", path, err)
			}
			results = append(results, p.Results...)

			next = ""
			if p.Next != nil && *p.Next != "" {
				resolved, err := c.resolve(*p.Next)
				if err != nil {
					return nil, fmt.Errorf("list %s: bad next link: %w", path, err)
				}
				next = resolved
			}
		}
	}
	return results, nil
}

// get performs one GET request and decodes the JSON body into target
func (c *Client) get(ctx context.Context, endpoint, rawURL string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Token %s", c.token))
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	log.WithFields(logrus.Fields{
		"url":      rawURL,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("netbox request")

	if resp.StatusCode == http.StatusNotFound {
		return cmdb.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// resolve turns a possibly relative next link into an absolute URL
func (c *Client) resolve(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", err
	}
	return c.baseURL.ResolveReference(u).String(), nil
}

func addStrings(q url.Values, key string, values []string) {
	for _, v := range values {
		q.Add(key, v)
	}
}

func addInts(q url.Values, key string, values []int) {
	for _, v := range values {
		q.Add(key, strconv.Itoa(v))
	}
}

// chunkQuery splits the longest multi-valued parameter into groups of at most
// size values. Other parameters are copied into every chunk.
func chunkQuery(q url.Values, size int) []url.Values {
	longest := ""
	for key, values := range q {
		if len(values) > size && len(values) > len(q[longest]) {
			longest = key
		}
	}
	if longest == "" {
		return []url.Values{cloneValues(q)}
	}

	values := q[longest]
	var chunks []url.Values
	for start := 0; start < len(values); start += size {
		end := min(start+size, len(values))
		chunk := cloneValues(q)
		chunk[longest] = append([]string(nil), values[start:end]...)
		chunks = append(chunks, chunk)
	}
	return chunks
}

func cloneValues(q url.Values) url.Values {
	out := make(url.Values, len(q))
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}
	return out
}

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meshgen",
		Subsystem: "cmdb",
		Name:      "requests_total",
		Help:      "Total number of CMDB API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "meshgen",
		Subsystem: "cmdb",
		Name:      "request_duration_seconds",
		Help:      "CMDB API request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})
)

