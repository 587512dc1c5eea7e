package docstore

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shelfsyncapp/shelfsync-server/internal/domain"
	"github.com/shelfsyncapp/shelfsync-server/internal/errors"
)

const (
	remoteTimeout    = 30 * time.Second
	wsHandshakeWait  = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingInterval   = 30 * time.Second
	documentBasePath = "/v1/documents/"
)

// Remote talks to a hosted document store: JSON over HTTP for point
// operations, a WebSocket per subscription for push. Each push frame carries
// the full document.
type Remote struct {
	endpoint string
	apiKey   string
	http     *http.Client
	dialer   *websocket.Dialer
	logger   *slog.Logger
}

// NewRemote creates a remote document store client.
func NewRemote(endpoint, apiKey string, logger *slog.Logger) *Remote {
	return &Remote{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: remoteTimeout},
		dialer:   &websocket.Dialer{HandshakeTimeout: wsHandshakeWait},
		logger:   logger,
	}
}

// documentURL builds the HTTP URL for a document key.
func (r *Remote) documentURL(key string) string {
	return r.endpoint + documentBasePath + url.PathEscape(key)
}

// watchURL builds the WebSocket URL for a document key.
func (r *Remote) watchURL(key string) string {
	u := r.documentURL(key) + "/watch"
	u = strings.Replace(u, "https://", "wss://", 1)
	return strings.Replace(u, "http://", "ws://", 1)
}

func (r *Remote) authorize(h http.Header) http.Header {
	if h == nil {
		h = http.Header{}
	}
	if r.apiKey != "" {
		h.Set("Authorization", "Bearer "+r.apiKey)
	}
	h.Set("Accept", "application/json")
	return h
}

// do executes one HTTP request and maps status codes to domain errors.
func (r *Remote) do(ctx context.Context, method, target string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header = r.authorize(req.Header)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, errors.ErrUnavailable.WithCause(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.ErrUnavailable.WithCause(err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return data, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return nil, ErrAlreadyExists
	case resp.StatusCode >= 500:
		return nil, errors.Unavailable(fmt.Sprintf("document store returned %d", resp.StatusCode))
	default:
		return nil, errors.Internal(fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(data)))
	}
}

// Get implements Client.
func (r *Remote) Get(ctx context.Context, key string) (*domain.UserSnapshot, error) {
	data, err := r.do(ctx, http.MethodGet, r.documentURL(key), nil)
	if err != nil {
		return nil, err
	}

	var snap domain.UserSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	snap.Normalize()
	return &snap, nil
}

// Create implements Client. The server rejects creation of an existing
// document with 409, which maps to ErrAlreadyExists.
func (r *Remote) Create(ctx context.Context, key string, doc *domain.UserSnapshot) error {
	_, err := r.do(ctx, http.MethodPost, r.documentURL(key), doc)
	return err
}

// UpdateFields implements Client via PATCH with partial-update semantics.
func (r *Remote) UpdateFields(ctx context.Context, key string, fields map[string]any) error {
	_, err := r.do(ctx, http.MethodPatch, r.documentURL(key), fields)
	return err
}

// Subscribe implements Client. A dedicated WebSocket carries full-document
// frames in server order until Unsubscribe closes it.
func (r *Remote) Subscribe(ctx context.Context, key string, onChange func(*domain.UserSnapshot), onError func(error)) (Unsubscribe, error) {
	conn, resp, err := r.dialer.DialContext(ctx, r.watchURL(key), r.authorize(nil))
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, errors.ErrUnavailable.WithCause(err)
	}
	if resp != nil {
		resp.Body.Close()
	}

	var once sync.Once
	closed := make(chan struct{})
	stop := func() {
		once.Do(func() {
			close(closed)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		})
	}

	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	// Keepalive pings so intermediaries don't drop an idle watch.
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
					return
				}
			case <-closed:
				return
			}
		}
	}()

	// Read loop: frames are applied in delivery order.
	go func() {
		defer stop()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				select {
				case <-closed:
					// Deliberate teardown, not an error.
				default:
					if onError != nil {
						onError(errors.ErrUnavailable.WithCause(err))
					}
				}
				return
			}

			var snap domain.UserSnapshot
			if err := json.Unmarshal(data, &snap); err != nil {
				r.logger.Warn("discarding malformed document frame", "key", key, "error", err)
				continue
			}
			snap.Normalize()
			onChange(&snap)
		}
	}()

	return stop, nil
}
