package notify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	protoerr "github.com/alxayo/go-galaxy-sia/internal/errors"
)

// sendTimeout bounds one complete delivery attempt, connect included.
const sendTimeout = 10 * time.Second

// Sender delivers one notification. Implementations must treat any non-2xx
// response as failure.
type Sender interface {
	Send(ctx context.Context, n *Notification) error
}

// HTTPSender posts notifications to the topic URL with the ntfy header
// convention: Title and Priority headers, UTF-8 text body.
type HTTPSender struct {
	client *http.Client
}

// NewHTTPSender builds a sender with the delivery timeout baked into its
// client.
func NewHTTPSender() *HTTPSender {
	return &HTTPSender{client: &http.Client{Timeout: sendTimeout}}
}

// Send performs one delivery attempt.
func (s *HTTPSender) Send(ctx context.Context, n *Notification) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.TopicURL, strings.NewReader(n.Body))
	if err != nil {
		return protoerr.NewDispatchError("notify.request", 0, err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Title", n.Title)
	req.Header.Set("Priority", strconv.Itoa(n.Priority))
	if n.Auth != nil {
		switch n.Auth.Method {
		case "token":
			req.Header.Set("Authorization", "Bearer "+n.Auth.Token)
		case "userpass":
			req.SetBasicAuth(n.Auth.User, n.Auth.Pass)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return protoerr.NewDispatchError("notify.post", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return protoerr.NewDispatchError("notify.post", resp.StatusCode,
			fmt.Errorf("endpoint %s", n.TopicURL))
	}
	return nil
}
